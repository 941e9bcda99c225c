// Copyright 2024 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package conf

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable overriding the configuration file,
// e.g. CATALOG_PORT, CATALOG_DSN, CATALOG_JWT_SECRET_KEY.
const EnvPrefix = "catalog"

// Event Catalog configuration
type Config struct {
	LogLevel         string            `yaml:"log_level" split_words:"true"`  // "debug", "info", "warn", "error"
	LogFormat        string            `yaml:"log_format" split_words:"true"` // "text" || "json"
	PublicBaseUrl    string            `yaml:"public_base_url" split_words:"true"`
	Port             int               `yaml:"port"`
	Dsn              string            `yaml:"dsn"`
	OperationTimeout time.Duration     `yaml:"operation_timeout" split_words:"true"`
	JWT              JWT               `yaml:"jwt"`
	Policy           Policy            `yaml:"policy"`
	Activation       Activation        `yaml:"activation"`
	Broadcast        Broadcast         `yaml:"broadcast"`
	Pagination       Pagination        `yaml:"pagination"`
	Cors             Cors              `yaml:"cors"`
	Links            map[string]string `yaml:"links"`
}

type JWT struct {
	SecretKey string             `yaml:"secret_key" split_words:"true"`
	Lifetime  time.Duration      `yaml:"lifetime"`
	Accounts  map[string]Account `yaml:"accounts" ignored:"true"`
}

// Account is a caller identity allowed to log in, with the roles it is granted.
type Account struct {
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

type Policy struct {
	File  string              `yaml:"file"`
	Roles map[string][]string `yaml:"roles" ignored:"true"`
}

type Activation struct {
	Region          string `yaml:"region"`
	IamRole         string `yaml:"iam_role" split_words:"true"`
	Description     string `yaml:"description"`
	ExpirationHours int    `yaml:"expiration_hours" split_words:"true"`
}

type Broadcast struct {
	Buffer          int    `yaml:"buffer"`
	Shards          int    `yaml:"shards"`
	RedisAddr       string `yaml:"redis_addr" split_words:"true"`
	RedisChannel    string `yaml:"redis_channel" split_words:"true"`
	MQTTBroker      string `yaml:"mqtt_broker" envconfig:"mqtt_broker"`
	MQTTClientID    string `yaml:"mqtt_client_id" envconfig:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix" envconfig:"mqtt_topic_prefix"`
}

type Pagination struct {
	DefaultPerPage int `yaml:"default_per_page" split_words:"true"`
	MaxPerPage     int `yaml:"max_per_page" split_words:"true"`
}

type Cors struct {
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
}

// Init reads the configuration file if any, then applies environment overrides and defaults.
func Init(configFile string) (*Config, error) {

	var c Config

	if configFile != "" {
		f, _ := filepath.Abs(configFile)
		yamlData, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		err = yaml.Unmarshal(yamlData, &c)
		if err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return nil, err
	}

	c.setDefaults()

	if c.Policy.File != "" {
		roles, err := LoadPolicyFile(c.Policy.File)
		if err != nil {
			return nil, err
		}
		c.Policy.Roles = roles
	}

	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 8081
	}
	if c.Dsn == "" {
		c.Dsn = "sqlite3://file::memory:?cache=shared"
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 30 * time.Second
	}
	if c.JWT.Lifetime == 0 {
		c.JWT.Lifetime = time.Hour
	}
	if c.Activation.Description == "" {
		c.Activation.Description = "Hybrid activation for DREM"
	}
	if c.Activation.Region == "" {
		c.Activation.Region = "eu-west-1"
	}
	if c.Broadcast.Buffer == 0 {
		c.Broadcast.Buffer = 16
	}
	if c.Broadcast.Shards == 0 {
		c.Broadcast.Shards = 16
	}
	if c.Broadcast.RedisChannel == "" {
		c.Broadcast.RedisChannel = "event-catalog"
	}
	if c.Broadcast.MQTTTopicPrefix == "" {
		c.Broadcast.MQTTTopicPrefix = "drem/events"
	}
	if c.Pagination.DefaultPerPage == 0 {
		c.Pagination.DefaultPerPage = 20
	}
	if c.Pagination.MaxPerPage == 0 {
		c.Pagination.MaxPerPage = 1000
	}
	if c.Links == nil {
		c.Links = make(map[string]string)
	}
	if _, ok := c.Links["event"]; !ok {
		c.Links["event"] = "{+base}/events/{eventId}"
	}
}
