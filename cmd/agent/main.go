package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/Hkhorsha1359/KoachCalltakerAgent/internal/adapter/cache"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/config"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/dispatch"
	httptransport "github.com/Hkhorsha1359/KoachCalltakerAgent/internal/http"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/http/handler"
	httpmiddleware "github.com/Hkhorsha1359/KoachCalltakerAgent/internal/http/middleware"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/jwt"
	apimiddleware "github.com/Hkhorsha1359/KoachCalltakerAgent/internal/middleware"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/repository"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/server"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/service"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/telemetry"
	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/tenant"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newTenantResolver,
			newDispatchHTTPClient,
			newTokenCache,
			newAccountCache,
			newLookup,
			newCallLogRepository,
			newSessionStore,
			newAdminVerifier,
			newAuthMiddleware,
			newRateLimiter,
			service.NewAgentService,
			handler.NewAgentHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, ensureCallLogSchema, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newTenantResolver(cfg config.Config) *tenant.Resolver {
	return tenant.NewResolver(tenant.ParseAliases(cfg.TenantAliases))
}

func newDispatchHTTPClient() *http.Client {
	return dispatch.DefaultHTTPClient()
}

func newTokenCache(client *http.Client, resolver *tenant.Resolver, cfg config.Config, logger *zap.Logger) *dispatch.TokenCache {
	return dispatch.NewTokenCache(client, resolver, cfg.TokenTTL, logger)
}

func newAccountCache(tokens *dispatch.TokenCache, client *http.Client, resolver *tenant.Resolver, cfg config.Config, logger *zap.Logger) *dispatch.AccountCache {
	return dispatch.NewAccountCache(tokens, client, resolver, cfg.AccountCacheTTL, logger)
}

func newLookup(tokens *dispatch.TokenCache, client *http.Client, cfg config.Config, logger *zap.Logger) *dispatch.Lookup {
	return dispatch.NewLookup(tokens, client, cfg.RawDetailLimit, logger)
}

func newCallLogRepository(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.CallLogRepository, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("no DATABASE_URL configured, call log held in memory")
		return repository.NewMemoryCallLogRepo(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return repository.NewPostgresCallLogRepo(pool), nil
}

func newSessionStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.SessionStore, error) {
	if cfg.RedisAddr == "" {
		logger.Info("no REDIS_ADDR configured, call sessions held in memory")
		return cacheadapter.NewMemorySessionStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return cacheadapter.NewRedisSessionStore(client), nil
}

func newAdminVerifier(cfg config.Config) *jwt.AdminVerifier {
	return jwt.NewAdminVerifier(cfg.AdminAPISecret)
}

func newAuthMiddleware(verifier *jwt.AdminVerifier) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Verifier: verifier}
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func ensureCallLogSchema(repo repository.CallLogRepository, logger *zap.Logger) error {
	pg, ok := repo.(*repository.PostgresCallLogRepo)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info("call log schema ensured")
	return nil
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
