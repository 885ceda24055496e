// Package outbox stores side effects in the same transaction as the state change that
// causes them and delivers them later, at least once, through per-kind handlers.
package outbox

import (
	"encoding/json"
	"time"

	"arena-ace/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KindJoinAdminAlert = "join.admin_alert"
	KindUserNotify     = "user.notify"
)

type JoinAlertPayload struct {
	TournamentID    string `json:"tournamentId"`
	TournamentTitle string `json:"tournamentTitle"`
	UserID          string `json:"userId"`
	UserName        string `json:"userName"`
	EntryFee        string `json:"entryFee"`
}

type NotifyPayload struct {
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Enqueue records an event inside tx. An event whose dedup key already exists is left untouched.
func Enqueue(tx *gorm.DB, kind, dedupKey string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := &model.OutboxEvent{
		Kind:          kind,
		DedupKey:      dedupKey,
		Payload:       datatypes.JSON(raw),
		Status:        model.OutboxPending,
		NextAttemptAt: time.Now(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(event).Error
}
