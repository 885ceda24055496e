package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"arena-ace/internal/model"
	"arena-ace/internal/service/notification"

	"gorm.io/gorm"
)

func handleJoinAdminAlert(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) ([]*model.Notification, error) {
	var p JoinAlertPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return nil, err
	}

	var admins []model.User
	if err := tx.Where("role = ?", model.RoleAdmin).Find(&admins).Error; err != nil {
		return nil, err
	}

	name := p.UserName
	if name == "" {
		name = p.UserID
	}
	message := fmt.Sprintf("%s joined %s (entry fee %s).", name, p.TournamentTitle, p.EntryFee)

	var created []*model.Notification
	for _, admin := range admins {
		n, err := insertFor(tx, event, admin.ID, "New tournament entry", message)
		if err != nil {
			return nil, err
		}
		if n != nil {
			created = append(created, n)
		}
	}
	return created, nil
}

func handleUserNotify(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) ([]*model.Notification, error) {
	var p NotifyPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user.notify event %s has no recipient", event.ID)
	}

	n, err := insertFor(tx, event, p.UserID, p.Title, p.Message)
	if err != nil || n == nil {
		return nil, err
	}
	return []*model.Notification{n}, nil
}

// insertFor returns nil when this event already delivered to the recipient.
func insertFor(tx *gorm.DB, event *model.OutboxEvent, userID, title, message string) (*model.Notification, error) {
	key := event.ID + ":" + userID
	n := &model.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		SourceKey: &key,
	}
	created, err := notification.Insert(tx, n)
	if err != nil || !created {
		return nil, err
	}
	return n, nil
}
