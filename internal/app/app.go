package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/ecetin/wedsys/internal/clock"
	"github.com/ecetin/wedsys/internal/config"
	"github.com/ecetin/wedsys/internal/postgres"
	redisx "github.com/ecetin/wedsys/internal/redis"
	postgresrepo "github.com/ecetin/wedsys/internal/repository/postgres"
	redisrepo "github.com/ecetin/wedsys/internal/repository/redis"
	"github.com/ecetin/wedsys/internal/seating"
	"github.com/ecetin/wedsys/internal/service"
	"github.com/ecetin/wedsys/internal/service/admin"
	"github.com/ecetin/wedsys/internal/service/notify"
	"github.com/ecetin/wedsys/internal/service/roster"
	"github.com/ecetin/wedsys/internal/service/rsvp"
	httpgin "github.com/ecetin/wedsys/internal/transport/http/gin"
	"github.com/ecetin/wedsys/internal/whatsapp"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	outbox     *notify.Outbox
	wa         *whatsapp.Dispatcher
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewEventsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rsvp", 10, 1*time.Minute)
	locks := redisrepo.NewSubmitLockStore(rdb, 30*time.Second)

	clk := clock.Real{}

	// Outbound messaging: the live WhatsApp client, or a dry-run logger
	// when disabled.
	var dispatcher notify.Dispatcher
	var wa *whatsapp.Dispatcher
	if cfg.WhatsApp.Enabled {
		wa, err = whatsapp.NewDispatcher(context.Background(), whatsapp.Config{
			DataDir:            cfg.WhatsApp.DataDir,
			DefaultCountryCode: cfg.WhatsApp.DefaultCountryCode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize whatsapp: %w", err)
		}
		dispatcher = wa
	} else {
		dispatcher = notify.NewLogDispatcher(logger)
	}

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		logger.Warn("unparseable locale, using default", "locale", cfg.Locale)
		locale = language.Tag{}
	}

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, locks, dispatcher, clk, service.Config{
		Roster: roster.Config{Locale: locale},
		Notify: notify.Config{Spacing: cfg.Notify.Spacing},
		Admin: admin.Config{
			MasterSecretHash: cfg.Admin.MasterSecretHash,
			PublicBaseURL:    cfg.Admin.PublicBaseURL,
		},
		RSVP: rsvp.Config{SubmitTimeout: cfg.RSVP.SubmitTimeout},
	}, logger)

	sessions := seating.NewManager(store.Seating(), pubsub, clk, logger)

	// Initialize Gin router
	router := httpgin.NewRouter(services, sessions, pubsub, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		outbox: services.Notify.Outbox(),
		wa:     wa,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Connect WhatsApp before serving; first run blocks on QR pairing.
	if a.wa != nil {
		if err := a.wa.Connect(gCtx); err != nil {
			return fmt.Errorf("failed to connect whatsapp: %w", err)
		}
	}

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Outbox worker: dispatches queued notifications with spacing.
	g.Go(func() error {
		if err := a.outbox.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		if a.wa != nil {
			a.wa.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
