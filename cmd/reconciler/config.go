// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/adapter/kinds"
	"github.com/resourceforge/reconciler/internal/broker"
	"github.com/resourceforge/reconciler/internal/checkpoint"
	"github.com/resourceforge/reconciler/internal/cloudapi"
	"github.com/resourceforge/reconciler/internal/store"
)

// defaultOperatorTaskTimeout is used by do_transition when the
// resolved adapter doesn't override RetryParams.TimeLimit for the
// phase being forced.
const defaultOperatorTaskTimeout = 3 * time.Minute

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// envConfig is the "minimal" set of environment variables spec.md
// §6 calls for: broker URL, pool type, credentials file paths.
type envConfig struct {
	PostgresDSN       string
	NATSURL           string
	RedisAddr         string
	CloudPoolType     string // "fake" or "gcp"
	CredentialsFile   string
}

func loadEnvConfig() envConfig {
	return envConfig{
		PostgresDSN:     envOr("RECONCILER_PG_DSN", "postgres://localhost:5432/reconciler?sslmode=disable"),
		NATSURL:         envOr("RECONCILER_NATS_URL", "nats://localhost:4222"),
		RedisAddr:       envOr("RECONCILER_REDIS_ADDR", "localhost:6379"),
		CloudPoolType:   envOr("RECONCILER_CLOUD_POOL_TYPE", "fake"),
		CredentialsFile: os.Getenv("RECONCILER_CREDENTIALS_FILE"),
	}
}

func openStore(cfg envConfig) (*store.Store, error) {
	return store.Open(cfg.PostgresDSN)
}

func openBroker(cfg envConfig) (*broker.Broker, error) {
	return broker.Connect(cfg.NATSURL)
}

func openCheckpointCache(cfg envConfig) *checkpoint.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return checkpoint.New(rdb)
}

// buildAdapterRegistry wires the four concrete kind adapters against
// a single shared cloudapi.Client. RECONCILER_CLOUD_POOL_TYPE=fake (the
// default) uses an in-memory client so hcl_apply/do_transition can run
// against nothing but Postgres + NATS + Redis in a local dry run; any
// other value is rejected since real provider SDKs are out of scope
// (spec.md §1 Non-goals).
func buildAdapterRegistry(cfg envConfig) (*adapter.Registry, error) {
	var client cloudapi.Client
	switch cfg.CloudPoolType {
	case "fake", "":
		client = cloudapi.NewFake()
	default:
		return nil, fmt.Errorf("unsupported RECONCILER_CLOUD_POOL_TYPE %q (only \"fake\" is built in)", cfg.CloudPoolType)
	}

	return adapter.NewRegistry(
		&kinds.VPCNetwork{Client: client},
		&kinds.Firewall{Client: client},
		&kinds.Subnet{Client: client},
		&kinds.Instance{Client: client},
	), nil
}
