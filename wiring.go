package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/maven-mirror/maven-mirror/internal/cache"
	"github.com/maven-mirror/maven-mirror/internal/config"
	"github.com/maven-mirror/maven-mirror/internal/flight"
	"github.com/maven-mirror/maven-mirror/internal/proxy"
	"github.com/maven-mirror/maven-mirror/internal/secret"
	"github.com/maven-mirror/maven-mirror/internal/server"
	"github.com/maven-mirror/maven-mirror/internal/server/routes"
	"github.com/maven-mirror/maven-mirror/internal/upstream"
	"github.com/maven-mirror/maven-mirror/internal/visibility"
)

// buildApp 装配全部依赖并返回 Fiber 应用；cleanup 释放外部连接。
func buildApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*fiber.App, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, closeStore)

	secrets := secret.NewProvider(cfg.Mirror.SecretDir, store)

	timeout := cfg.Global.UpstreamTimeout.DurationValue()
	gate, err := visibility.NewGate(visibility.Options{
		Endpoint:      cfg.Mirror.MetadataAPIURL,
		Organization:  cfg.Mirror.Organization,
		RootNamespace: cfg.Mirror.RootNamespace,
		Timeout:       timeout,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("visibility gate: %w", err)
	}

	fetcher, err := upstream.NewFetcher(upstream.Options{
		RegistryURL:  cfg.Mirror.RegistryURL,
		Organization: cfg.Mirror.Organization,
		Username:     cfg.Mirror.RegistryUsername,
		Client:       upstream.NewClient(timeout),
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("upstream fetcher: %w", err)
	}

	var locker flight.Locker = flight.NoopLocker{}
	if cfg.Redis.Enabled() {
		redisLocker, err := flight.NewRedisLocker(ctx, cfg.Redis.URL, cfg.Redis.LockExpiry.DurationValue())
		if err != nil {
			return nil, cleanup, fmt.Errorf("redis fill lock: %w", err)
		}
		closers = append(closers, func() { _ = redisLocker.Close() })
		locker = redisLocker
	}

	handler, err := proxy.NewHandler(proxy.Options{
		Cache:         cache.NewCache(store, cache.NewFreshnessPolicy(cfg.Mirror.MetadataTTL.DurationValue()), logger),
		Secrets:       secrets,
		Gate:          gate,
		Fetcher:       fetcher,
		Flight:        flight.NewGroup(locker),
		Logger:        logger,
		TokenName:     cfg.Mirror.TokenSecretName,
		Organization:  cfg.Mirror.Organization,
		RootNamespace: cfg.Mirror.RootNamespace,
	})
	if err != nil {
		return nil, cleanup, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:        logger,
		Proxy:         proxy.NewModeForwarder(handler, logger),
		ReservedPaths: []string{routes.DebugPath},
	})
	if err != nil {
		return nil, cleanup, err
	}
	routes.RegisterDebugRoutes(app, secrets, cfg.Mirror.DebugSecretName, logger)

	return app, cleanup, nil
}

// openStore 根据 Storage.Backend 打开对象存储。
func openStore(ctx context.Context, cfg config.StorageConfig) (cache.Store, func(), error) {
	switch cfg.Backend {
	case config.StorageBackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, func() {}, fmt.Errorf("gcs client: %w", err)
		}
		store, err := cache.NewGCSStore(client, cfg.Bucket)
		if err != nil {
			_ = client.Close()
			return nil, func() {}, err
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := cache.NewFileStore(cfg.Path)
		if err != nil {
			return nil, func() {}, fmt.Errorf("初始化存储目录失败: %w", err)
		}
		return store, func() {}, nil
	}
}
