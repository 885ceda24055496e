package outbox

import (
	"context"
	"fmt"
	"time"

	"arena-ace/internal/model"
	"arena-ace/pkg/logger"
	"arena-ace/pkg/utils/random"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	leaseKey   = "outbox:dispatch:lease"
	maxBackoff = 10 * time.Minute
)

// Handler delivers one event inside tx and returns the notifications it created.
type Handler func(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) ([]*model.Notification, error)

type Publisher interface {
	PublishNotification(ctx context.Context, n *model.Notification)
}

type Options struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
}

type Dispatcher struct {
	db        *gorm.DB
	rdb       *redis.Client
	publisher Publisher
	handlers  map[string]Handler
	opts      Options
	owner     string
	now       func() time.Time
}

func NewDispatcher(db *gorm.DB, rdb *redis.Client, publisher Publisher, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 2 * time.Second
	}
	d := &Dispatcher{
		db:        db,
		rdb:       rdb,
		publisher: publisher,
		handlers:  make(map[string]Handler),
		opts:      opts,
		owner:     random.Code(16),
		now:       time.Now,
	}
	d.Register(KindJoinAdminAlert, handleJoinAdminAlert)
	d.Register(KindUserNotify, handleUserNotify)
	return d
}

func (d *Dispatcher) Register(kind string, h Handler) {
	d.handlers[kind] = h
}

// SetClock replaces the time source used for due checks and backoff.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Start runs Dispatch on a gocron schedule until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(d.opts.Interval),
		gocron.NewTask(func() {
			if _, err := d.Dispatch(ctx, d.opts.BatchSize); err != nil {
				logger.Log.Error("outbox dispatch failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	sched.Start()

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			logger.Log.Warn("outbox scheduler shutdown", zap.Error(err))
		}
	}()
	return sched, nil
}

// Dispatch delivers up to limit due events and reports how many were delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (int, error) {
	release, ok, err := d.acquireLease(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	defer release()

	var events []model.OutboxEvent
	if err := d.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", model.OutboxPending, d.now()).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return 0, err
	}

	delivered := 0
	for i := range events {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if err := d.deliver(ctx, &events[i]); err != nil {
			d.reschedule(ctx, &events[i], err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, event *model.OutboxEvent) error {
	handler, ok := d.handlers[event.Kind]
	if !ok {
		return fmt.Errorf("no handler for event kind %q", event.Kind)
	}

	var created []*model.Notification
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = handler(ctx, tx, event)
		if err != nil {
			return err
		}
		now := d.now()
		return tx.Model(&model.OutboxEvent{}).
			Where("id = ? AND status = ?", event.ID, model.OutboxPending).
			Updates(map[string]interface{}{
				"status":       model.OutboxDelivered,
				"delivered_at": now,
				"last_error":   "",
			}).Error
	})
	if err != nil {
		return err
	}

	if d.publisher != nil {
		for _, n := range created {
			d.publisher.PublishNotification(ctx, n)
		}
	}
	return nil
}

func (d *Dispatcher) reschedule(ctx context.Context, event *model.OutboxEvent, cause error) {
	attempts := event.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": cause.Error(),
	}
	if attempts >= d.opts.MaxAttempts {
		updates["status"] = model.OutboxFailed
	} else {
		updates["next_attempt_at"] = d.now().Add(d.backoff(attempts))
	}

	if err := d.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", event.ID).
		Updates(updates).Error; err != nil {
		logger.Log.Error("outbox reschedule failed",
			zap.String("eventID", event.ID),
			zap.Error(err))
		return
	}
	logger.Log.Warn("outbox delivery failed",
		zap.String("eventID", event.ID),
		zap.String("kind", event.Kind),
		zap.Int("attempts", attempts),
		zap.Error(cause))
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	wait := d.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}

func (d *Dispatcher) acquireLease(ctx context.Context) (func(), bool, error) {
	if d.rdb == nil {
		return func() {}, true, nil
	}
	ttl := 4 * d.opts.Interval
	ok, err := d.rdb.SetNX(ctx, leaseKey, d.owner, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		if err := releaseLease(context.Background(), d.rdb, d.owner); err != nil {
			logger.Log.Warn("outbox lease release failed", zap.Error(err))
		}
	}, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// releaseLease deletes the lease only while owner still holds it, in one atomic step.
func releaseLease(ctx context.Context, rdb redis.Scripter, owner string) error {
	return releaseScript.Run(ctx, rdb, []string{leaseKey}, owner).Err()
}
