package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"arena-ace/internal/model"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const channelPrefix = "notify:"

type Service struct {
	db  *gorm.DB
	rdb *redis.Client
}

// Item is the user-facing view shared by direct notifications and broadcasts.
type Item struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"isRead"`
	IsBroadcast bool      `json:"isBroadcast"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

// Channel is the redis pub/sub channel that carries pushes for one user, or for everyone.
func Channel(userID string) string {
	return channelPrefix + userID
}

// Insert stores a direct notification in the caller's transaction. A notification whose
// source key already exists is skipped and reported as not created.
func Insert(tx *gorm.DB, n *model.Notification) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_key"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) Send(ctx context.Context, target, title, message, actorID string) (*Item, error) {
	target = strings.TrimSpace(target)
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if target == "" || title == "" || message == "" {
		return nil, fmt.Errorf("%w: userId, title and message are required", appErr.ErrInvalidNotification)
	}

	if target == model.BroadcastTarget {
		broadcast := &model.Broadcast{Title: title, Message: message, CreatedBy: actorID}
		if err := s.db.WithContext(ctx).Create(broadcast).Error; err != nil {
			return nil, err
		}
		item := broadcastItem(*broadcast, nil)
		s.publish(ctx, model.BroadcastTarget, item)
		return &item, nil
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", target).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, appErr.ErrUserNotFound
	}

	n := &model.Notification{UserID: target, Title: title, Message: message}
	if _, err := Insert(s.db.WithContext(ctx), n); err != nil {
		return nil, err
	}
	item := directItem(*n)
	s.publish(ctx, target, item)
	return &item, nil
}

// PublishNotification pushes an already committed direct notification to live listeners.
func (s *Service) PublishNotification(ctx context.Context, n *model.Notification) {
	s.publish(ctx, n.UserID, directItem(*n))
}

func (s *Service) publish(ctx context.Context, userID string, item Item) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, Channel(userID), payload).Err(); err != nil {
		logger.Log.Warn("notification publish failed",
			zap.String("userID", userID),
			zap.String("notificationID", item.ID),
			zap.Error(err))
	}
}

// List returns the user's direct notifications merged with visible broadcasts, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	var direct []model.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&direct).Error; err != nil {
		return nil, err
	}

	broadcasts, receipts, err := s.loadBroadcasts(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(direct)+len(broadcasts))
	for _, n := range direct {
		items = append(items, directItem(n))
	}
	for _, b := range broadcasts {
		receipt := receipts[b.ID]
		if receipt != nil && receipt.Hidden {
			continue
		}
		items = append(items, broadcastItem(b, receipt))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	var n model.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if err == nil {
		return s.db.WithContext(ctx).Model(&n).Update("is_read", true).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	receipt, err := s.visibleBroadcast(ctx, id, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	receipt.ReadAt = &now
	return upsertReceipts(s.db.WithContext(ctx), []model.BroadcastReceipt{*receipt}, "read_at")
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	broadcasts, receipts, err := s.loadBroadcasts(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	var pending []model.BroadcastReceipt
	for _, b := range broadcasts {
		receipt := receipts[b.ID]
		if receipt != nil && (receipt.Hidden || receipt.ReadAt != nil) {
			continue
		}
		pending = append(pending, model.BroadcastReceipt{UserID: userID, BroadcastID: b.ID, ReadAt: &now})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Update("is_read", true).Error; err != nil {
			return err
		}
		return upsertReceipts(tx, pending, "read_at")
	})
}

// Delete removes an owned direct notification, or hides a broadcast for this user only.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	receipt, err := s.visibleBroadcast(ctx, id, userID)
	if err != nil {
		return err
	}
	receipt.Hidden = true
	return upsertReceipts(s.db.WithContext(ctx), []model.BroadcastReceipt{*receipt}, "hidden")
}

func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	broadcasts, receipts, err := s.loadBroadcasts(ctx, userID)
	if err != nil {
		return err
	}

	var hide []model.BroadcastReceipt
	for _, b := range broadcasts {
		if receipt := receipts[b.ID]; receipt != nil && receipt.Hidden {
			continue
		}
		hide = append(hide, model.BroadcastReceipt{UserID: userID, BroadcastID: b.ID, Hidden: true})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Notification{}).Error; err != nil {
			return err
		}
		return upsertReceipts(tx, hide, "hidden")
	})
}

func (s *Service) loadBroadcasts(ctx context.Context, userID string) ([]model.Broadcast, map[string]*model.BroadcastReceipt, error) {
	var broadcasts []model.Broadcast
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&broadcasts).Error; err != nil {
		return nil, nil, err
	}

	var rows []model.BroadcastReceipt
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	receipts := make(map[string]*model.BroadcastReceipt, len(rows))
	for i := range rows {
		receipts[rows[i].BroadcastID] = &rows[i]
	}
	return broadcasts, receipts, nil
}

func (s *Service) visibleBroadcast(ctx context.Context, id, userID string) (*model.BroadcastReceipt, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.Broadcast{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, appErr.ErrNotificationNotFound
	}

	receipt := model.BroadcastReceipt{UserID: userID, BroadcastID: id}
	err := s.db.WithContext(ctx).Where("user_id = ? AND broadcast_id = ?", userID, id).First(&receipt).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if receipt.Hidden {
		return nil, appErr.ErrNotificationNotFound
	}
	return &receipt, nil
}

func upsertReceipts(tx *gorm.DB, receipts []model.BroadcastReceipt, column string) error {
	if len(receipts) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "broadcast_id"}},
		DoUpdates: clause.AssignmentColumns([]string{column, "updated_at"}),
	}).Create(&receipts).Error
}

func directItem(n model.Notification) Item {
	return Item{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func broadcastItem(b model.Broadcast, receipt *model.BroadcastReceipt) Item {
	return Item{
		ID:          b.ID,
		UserID:      model.BroadcastTarget,
		Title:       b.Title,
		Message:     b.Message,
		IsRead:      receipt != nil && receipt.ReadAt != nil,
		IsBroadcast: true,
		CreatedAt:   b.CreatedAt,
	}
}
