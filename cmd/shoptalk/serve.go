package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/shoptalk/shoptalk/internal/accounts"
	"github.com/shoptalk/shoptalk/internal/autoreply"
	"github.com/shoptalk/shoptalk/internal/chat"
	"github.com/shoptalk/shoptalk/internal/config"
	"github.com/shoptalk/shoptalk/internal/connection"
	"github.com/shoptalk/shoptalk/internal/customer"
	"github.com/shoptalk/shoptalk/internal/db"
	"github.com/shoptalk/shoptalk/internal/handlers"
	"github.com/shoptalk/shoptalk/internal/inbound"
	"github.com/shoptalk/shoptalk/internal/logger"
	"github.com/shoptalk/shoptalk/internal/platform"
	"github.com/shoptalk/shoptalk/internal/platform/adapters/facebook"
	"github.com/shoptalk/shoptalk/internal/platform/adapters/instagram"
	"github.com/shoptalk/shoptalk/internal/platform/adapters/whatsapp"
	"github.com/shoptalk/shoptalk/internal/platform/graph"
	"github.com/shoptalk/shoptalk/internal/platform/sandbox"
	"github.com/shoptalk/shoptalk/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideDBTX,
			provideGraphClient,
			provideRegistry,
			provideSender,
			provideAccountsService,
			provideConnectionService,
			provideCustomerService,
			provideChatService,
			provideAutoReplyTrigger,
			provideInboundProcessor,
			handlers.NewPingHandler,
			provideAuthHandler,
			provideWebhookHandler,
			provideChatsHandler,
			handlers.NewCustomersHandler,
			handlers.NewConnectionsHandler,
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrate() error {
	cfg, err := provideConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err := db.Migrate(cfg.Postgres); err != nil {
		return err
	}
	logger.L.Info("migrations applied")
	return nil
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBTX(conn *pgxpool.Pool) db.DBTX { return conn }

func provideGraphClient(log *slog.Logger, cfg config.Config) *graph.Client {
	timeout := time.Duration(cfg.Graph.TimeoutSeconds) * time.Second
	return graph.NewClient(log, cfg.Graph.BaseURL, cfg.Graph.Version, timeout)
}

func provideRegistry(log *slog.Logger, client *graph.Client) *platform.Registry {
	registry := platform.NewRegistry()
	registry.MustRegister(whatsapp.NewAdapter(log, client))
	registry.MustRegister(instagram.NewAdapter(log, client))
	registry.MustRegister(facebook.NewAdapter(log, client))
	return registry
}

func provideSender(log *slog.Logger, cfg config.Config, registry *platform.Registry) platform.Sender {
	if cfg.Graph.Sandbox {
		log.Warn("graph sandbox enabled; outbound messages will not reach platforms")
		return sandbox.NewSender(log)
	}
	return platform.NewRegistrySender(registry)
}

func provideAccountsService(dbtx db.DBTX, log *slog.Logger) *accounts.Service {
	return accounts.NewService(dbtx, log)
}

func provideConnectionService(dbtx db.DBTX, log *slog.Logger) *connection.Service {
	return connection.NewService(dbtx, log)
}

func provideCustomerService(dbtx db.DBTX, log *slog.Logger) *customer.Service {
	return customer.NewService(dbtx, log)
}

func provideChatService(dbtx db.DBTX, log *slog.Logger) *chat.Service {
	return chat.NewService(dbtx, log)
}

func provideAutoReplyTrigger(log *slog.Logger, cfg config.Config, sender platform.Sender, chatService *chat.Service) *autoreply.Trigger {
	rules := autoreply.NewRules(cfg.AutoReply.Templates)
	return autoreply.NewTrigger(cfg.AutoReply.Enabled, rules, sender, chatService, log)
}

func provideInboundProcessor(log *slog.Logger, connectionService *connection.Service, customerService *customer.Service, chatService *chat.Service, trigger *autoreply.Trigger) *inbound.Processor {
	return inbound.NewProcessor(connectionService, customerService, chatService, trigger, log)
}

func provideAuthHandler(log *slog.Logger, accountService *accounts.Service, cfg config.Config) (*handlers.AuthHandler, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt_secret required in config.toml")
	}
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse auth.jwt_expires_in: %w", err)
	}
	return handlers.NewAuthHandler(log, accountService, secret, expiresIn), nil
}

func provideWebhookHandler(log *slog.Logger, registry *platform.Registry, processor *inbound.Processor, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, registry, processor, cfg.Webhook.VerifyToken)
}

func provideChatsHandler(log *slog.Logger, chatService *chat.Service, customerService *customer.Service, connectionService *connection.Service, sender platform.Sender) *handlers.ChatsHandler {
	return handlers.NewChatsHandler(log, chatService, customerService, connectionService, sender)
}

func provideServer(log *slog.Logger, cfg config.Config, pingHandler *handlers.PingHandler, authHandler *handlers.AuthHandler, webhookHandler *handlers.WebhookHandler, chatsHandler *handlers.ChatsHandler, customersHandler *handlers.CustomersHandler, connectionsHandler *handlers.ConnectionsHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret, pingHandler, authHandler, webhookHandler, chatsHandler, customersHandler, connectionsHandler)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, accountService *accounts.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Migrate(cfg.Postgres); err != nil {
				return err
			}
			if cfg.Admin.Password == "change-your-password-here" {
				log.Warn("admin password uses default placeholder; please update config.toml")
			}
			if err := accountService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
