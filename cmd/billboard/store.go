package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/thematters/contracts/pkg/config"
	"github.com/thematters/contracts/pkg/merkle"
	"github.com/thematters/contracts/pkg/persistence"
	"github.com/thematters/contracts/pkg/persistence/badger"
	"github.com/thematters/contracts/pkg/persistence/file"
	"github.com/thematters/contracts/pkg/persistence/memory"
	"github.com/thematters/contracts/pkg/persistence/redis"
)

func storeConfigFromContext(c *cli.Context) config.StoreConfig {
	return config.StoreConfig{
		Type:           config.StoreType(c.String("store")),
		Path:           c.String("store-path"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}
}

func treeConfigFromContext(c *cli.Context) *config.TreeConfig {
	return &config.TreeConfig{
		AllocationsPath:   c.String("allocations"),
		TreeName:          c.String("tree-name"),
		Hash:              merkle.HashAlgorithm(c.String("hash")),
		RequireFullShares: c.Bool("require-full-shares"),
		Store:             storeConfigFromContext(c),
		Debug:             c.Bool("debug"),
	}
}

// newTreeStore opens the configured backend and checks it is usable.
func newTreeStore(cfg *config.StoreConfig, logger *zap.Logger) (persistence.ITreeStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	var (
		store persistence.ITreeStore
		err   error
	)
	switch cfg.Type {
	case config.StoreTypeFile:
		store, err = file.NewFilePersistence(cfg.Path, logger)
	case config.StoreTypeMemory:
		store = memory.NewMemoryPersistence(logger)
	case config.StoreTypeBadger:
		store, err = badger.NewBadgerPersistence(cfg.Path, logger)
	case config.StoreTypeRedis:
		store, err = redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Type, err)
	}

	if err := store.HealthCheck(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s store health check failed: %w", cfg.Type, err)
	}

	logger.Sugar().Debugw("Opened tree store", "type", cfg.Type, "path", cfg.Path)
	return store, nil
}
