package service

import (
	"context"

	"arena-ace/internal/service/admin"
	"arena-ace/internal/service/advisory"
	"arena-ace/internal/service/notification"
	"arena-ace/internal/service/outbox"
	"arena-ace/internal/service/result"
	"arena-ace/internal/service/settings"
	"arena-ace/internal/service/tournament"
	"arena-ace/internal/service/user"
	"arena-ace/internal/service/wallet"
	"arena-ace/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Admin        *admin.Service
	Advisory     *advisory.Service
	Notification *notification.Service
	Outbox       *outbox.Dispatcher
	Redis        *redis.Client
	Result       *result.Service
	Settings     *settings.Service
	Tournament   *tournament.Service
	User         *user.Service
	Wallet       *wallet.Service
}

type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Uploader  storage.Uploader
	Generator advisory.TextGenerator
	Outbox    outbox.Options
}

func NewContainer(deps Deps) *Container {
	notifier := notification.NewService(deps.DB, deps.Redis)
	settingsSvc := settings.NewService(deps.DB)
	return &Container{
		Admin:        admin.NewService(deps.DB),
		Advisory:     advisory.NewService(deps.Generator),
		Notification: notifier,
		Outbox:       outbox.NewDispatcher(deps.DB, deps.Redis, notifier, deps.Outbox),
		Redis:        deps.Redis,
		Result:       result.NewService(deps.DB, notifier),
		Settings:     settingsSvc,
		Tournament:   tournament.NewService(deps.DB, deps.Uploader),
		User:         user.NewService(deps.DB),
		Wallet:       wallet.NewService(deps.DB, settingsSvc),
	}
}

// Start seeds the default admin and starts the outbox dispatcher, which stops with ctx.
func (c *Container) Start(ctx context.Context) error {
	if err := c.Admin.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}
	_, err := c.Outbox.Start(ctx)
	return err
}
