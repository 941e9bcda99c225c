// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package activ

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
)

// SSMProvisioner issues hybrid activations through AWS Systems Manager.
type SSMProvisioner struct {
	client ssmiface.SSMAPI
}

// NewSSMProvisioner wraps an SSM client.
func NewSSMProvisioner(client ssmiface.SSMAPI) *SSMProvisioner {
	return &SSMProvisioner{client: client}
}

// DialSSM creates an SSM client for region, credentials come from the default chain.
func DialSSM(region string) (*SSMProvisioner, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return NewSSMProvisioner(ssm.New(sess)), nil
}

// CreateActivation creates an activation valid for a single registration.
func (p *SSMProvisioner) CreateActivation(ctx context.Context, in ActivationInput) (string, string, error) {
	input := &ssm.CreateActivationInput{
		DefaultInstanceName: aws.String(in.InstanceName),
		Description:         aws.String(in.Description),
		RegistrationLimit:   aws.Int64(1),
		ExpirationDate:      in.Expiration,
		Tags:                ssmTags(in.Tags),
	}
	if in.IamRole != "" {
		input.IamRole = aws.String(in.IamRole)
	}

	out, err := p.client.CreateActivationWithContext(ctx, input)
	if err != nil {
		return "", "", err
	}
	code, id := aws.StringValue(out.ActivationCode), aws.StringValue(out.ActivationId)
	if code == "" || id == "" {
		return "", "", errors.New("activation returned without code or id")
	}
	return code, id, nil
}

// ssmTags converts tags to the SSM form, sorted by key.
func ssmTags(tags map[string]string) []*ssm.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := make([]*ssm.Tag, 0, len(keys))
	for _, k := range keys {
		res = append(res, &ssm.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return res
}
