package service

import (
	"log/slog"

	"github.com/ecetin/wedsys/internal/clock"
	redisx "github.com/ecetin/wedsys/internal/redis"
	postgres "github.com/ecetin/wedsys/internal/repository/postgres"
	redis "github.com/ecetin/wedsys/internal/repository/redis"
	"github.com/ecetin/wedsys/internal/service/admin"
	"github.com/ecetin/wedsys/internal/service/notify"
	"github.com/ecetin/wedsys/internal/service/roster"
	"github.com/ecetin/wedsys/internal/service/rsvp"
)

type Services struct {
	Roster *roster.Service
	Notify *notify.Service
	Admin  *admin.Service
	RSVP   *rsvp.Service
}

type Config struct {
	Roster roster.Config
	Notify notify.Config
	Admin  admin.Config
	RSVP   rsvp.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.EventsPubSub,
	limiter *redis.SlidingWindowLimiter,
	locks *redis.SubmitLockStore,
	dispatcher notify.Dispatcher,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Services {
	return &Services{
		Roster: roster.New(store.Guests(), cfg.Roster, logger),
		Notify: notify.New(store.Guests(), store.Notifications(), store.Seating(), dispatcher, clk, cfg.Notify, logger),
		Admin:  admin.New(store, cache, pubsub, cfg.Admin),
		RSVP:   rsvp.New(store, locks, limiter, pubsub, clk, cfg.RSVP, logger),
	}
}
