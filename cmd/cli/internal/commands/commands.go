package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/polifeed/internal/client"
	"github.com/wolfeidau/polifeed/internal/config"
	"github.com/wolfeidau/polifeed/internal/session"
	"github.com/wolfeidau/polifeed/internal/storage"
)

type Globals struct {
	Debug   bool
	Version string

	// Config is the path of an optional YAML config file.
	Config string
	// EnvFile is loaded into the environment before config is resolved.
	EnvFile string
	// Server overrides the API base URL.
	Server string
	// Storage overrides the storage backend.
	Storage string
	// StorageDir overrides the file storage directory.
	StorageDir string

	Stdout io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// app holds everything a command needs to talk to the backend.
type app struct {
	cfg     *config.Config
	backend storage.Backend
	store   *storage.AuthStorage
	manager *session.Manager
	closeFn func() error
}

func (a *app) Close() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

// loadConfig resolves configuration and applies command-line overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config, g.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if g.Server != "" {
		cfg.API.BaseURL = g.Server
	}
	if g.Storage != "" {
		cfg.Storage.Backend = g.Storage
	}
	if g.StorageDir != "" {
		cfg.Storage.Dir = g.StorageDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// newApp wires config, storage, the API client and the session manager.
func (g *Globals) newApp() (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	backend, closeFn, err := newBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	httpClient, err := client.NewHTTPClient(client.TransportOptions{
		Cache:    cfg.API.Cache,
		CacheDir: cfg.API.CacheDir,
	})
	if err != nil {
		return nil, err
	}

	api, err := client.New(client.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	log.Debug().
		Str("baseURL", cfg.API.BaseURL).
		Str("storage", cfg.Storage.Backend).
		Dur("timeout", cfg.API.Timeout).
		Msg("client configured")

	store := storage.NewAuthStorage(backend)

	return &app{
		cfg:     cfg,
		backend: backend,
		store:   store,
		manager: session.New(api, store, cfg.Endpoints),
		closeFn: closeFn,
	}, nil
}

func newBackend(cfg config.StorageConfig) (storage.Backend, func() error, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return storage.NewMemoryBackend(), nil, nil
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return storage.NewRedisBackend(rdb, cfg.RedisPrefix, cfg.RedisTTL), rdb.Close, nil
	default:
		fb, err := storage.NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return fb, nil, nil
	}
}

// withSession runs fn against an initialized session manager.
func (g *Globals) withSession(ctx context.Context, fn func(a *app) error) error {
	a, err := g.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.manager.Initialize(ctx)

	return fn(a)
}
