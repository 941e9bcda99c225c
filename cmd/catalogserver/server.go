// Copyright 2024 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The Event Catalog server manages race events, broadcasts their changes
// and issues device activations.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/drem/event-catalog/pkg/activ"
	"github.com/drem/event-catalog/pkg/bcast"
	"github.com/drem/event-catalog/pkg/conf"
	"github.com/drem/event-catalog/pkg/events"
	"github.com/drem/event-catalog/pkg/ops"
	"github.com/drem/event-catalog/pkg/policy"
	"github.com/drem/event-catalog/pkg/stor"
)

// Server context
type Server struct {
	*conf.Config
	stor.Store
	Hub      *bcast.Hub
	Policy   *policy.Enforcer
	Ops      *ops.Registry
	Router   *chi.Mux
	redis    *redis.Client
	mqtt     mqtt.Client
	cancel   context.CancelFunc
	services context.Context
}

func main() {

	s := Server{}

	// Initialize the configuration from a config file or/and environment variables
	c, err := conf.Init(os.Getenv("CATALOG_CONFIG"))
	if err != nil {
		log.Println("Configuration failed: " + err.Error())
		os.Exit(1)
	}
	s.Config = c

	setLogger(c)

	if err = s.initialize(); err != nil {
		log.Errorf("Initialization failed: %v", err)
		os.Exit(1)
	}
	defer s.close()

	// Graceful shutdown
	server := &http.Server{
		Addr:    ":" + strconv.Itoa(c.Port),
		Handler: s.Router,
	}

	// System signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Println("Server starting on port " + strconv.Itoa(c.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutdown requested, initiating graceful shutdown...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Error during shutdown: %v", err)
	}
	log.Println("Server halted.")
}

// setLogger sets the log level and format
func setLogger(c *conf.Config) {
	if c.LogLevel != "" {
		level, err := log.ParseLevel(c.LogLevel)
		if err != nil {
			log.Println("Invalid log level specified, defaulting to debug")
			level = log.DebugLevel
		}
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{})
	}
}

// initialize builds the services once, in dependency order:
// store, broadcasters, resolver, activation, policy, operations and routes.
func (s *Server) initialize() error {
	var err error

	// every activation would fail without a role
	if s.Config.Activation.IamRole == "" {
		return errors.New("activation.iam_role is not configured")
	}
	s.services, s.cancel = context.WithCancel(context.Background())

	// Init database
	s.Store, err = stor.Init(s.Config.Dsn)
	if err != nil {
		return err
	}

	// Init broadcasters
	s.Hub = bcast.NewHub(s.Config.Broadcast.Shards, s.Config.Broadcast.Buffer)
	broadcaster, err := s.broadcaster()
	if err != nil {
		return err
	}

	// Init services
	resolver := events.New(s.Store.Event(), broadcaster, events.WithMaxPerPage(s.Config.Pagination.MaxPerPage))
	prov, err := activ.DialSSM(s.Config.Activation.Region)
	if err != nil {
		return err
	}
	activation := activ.New(prov, s.Config.Activation)

	// Init access policy
	roles := s.Config.Policy.Roles
	if len(roles) == 0 {
		log.Info("No access policy configured, using the default roles")
		roles = policy.DefaultRoles()
	}
	s.Policy = policy.New(roles)
	if s.Config.Policy.File != "" {
		go func() {
			err := conf.WatchPolicy(s.services, s.Config.Policy.File, func(table map[string][]string) {
				s.Policy.Replace(table)
				log.Info("Access policy reloaded")
			})
			if err != nil {
				log.Errorf("Policy watcher failed: %v", err)
			}
		}()
	}

	// Init operations
	s.Ops = ops.NewRegistry(s.Policy, s.Config.OperationTimeout)
	if err = ops.Bootstrap(s.Ops, resolver, activation, s.Config.Pagination.DefaultPerPage); err != nil {
		return err
	}

	// Init routes
	s.Router = s.setRoutes()
	return nil
}

// broadcaster returns the local hub, fanned out to redis and MQTT when configured.
func (s *Server) broadcaster() (bcast.Broadcaster, error) {
	var out bcast.Multi

	if addr := s.Config.Broadcast.RedisAddr; addr != "" {
		ctx, cancel := context.WithTimeout(s.services, 5*time.Second)
		defer cancel()
		client, err := bcast.DialRedis(ctx, addr)
		if err != nil {
			return nil, err
		}
		s.redis = client
		relay := bcast.NewRedisRelay(client, s.Config.Broadcast.RedisChannel, s.Hub)
		go func() {
			if err := relay.Run(s.services); err != nil {
				log.Errorf("Redis relay stopped: %v", err)
			}
		}()
		// the relay feeds remote publications into the hub
		out = append(out, s.Hub, relay)
	} else {
		out = append(out, s.Hub)
	}

	if broker := s.Config.Broadcast.MQTTBroker; broker != "" {
		client, err := bcast.DialMQTT(broker, s.Config.Broadcast.MQTTClientID)
		if err != nil {
			return nil, err
		}
		s.mqtt = client
		out = append(out, bcast.NewMQTTSink(client, s.Config.Broadcast.MQTTTopicPrefix))
	}

	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// close stops the background services and releases connections.
func (s *Server) close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect(250)
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}
