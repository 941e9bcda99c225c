// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package conf

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// policyFile is the layout of an access policy file:
//
//	roles:
//	  operator: [Query.getAllEvents, Mutation.addEvent]
type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadPolicyFile reads a role to operation paths table.
func LoadPolicyFile(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf policyFile
	if err = yaml.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	if len(pf.Roles) == 0 {
		return nil, errors.New("policy file declares no role")
	}
	return pf.Roles, nil
}

// WatchPolicy reloads the policy file each time it is written or recreated
// and hands the new table to onChange. A file that fails to load is logged
// and onChange is not called, so the previous table stays in force.
// It returns when ctx is done.
func WatchPolicy(ctx context.Context, path string, onChange func(map[string][]string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// watch the directory, editors often replace the file instead of writing it
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err = watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	log.Infof("Monitoring policy file: %s", abs)
	for {
		select {
		case <-ctx.Done():
			log.Debug("Policy watcher stop requested.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				roles, err := LoadPolicyFile(abs)
				if err != nil {
					log.Errorf("Policy reload failed, keeping the current policy: %v", err)
					continue
				}
				log.Infof("Policy reloaded with %d roles", len(roles))
				onChange(roles)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Error watching the policy file: %v", err)
		}
	}
}
