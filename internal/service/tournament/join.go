package tournament

import (
	"context"
	"errors"
	"fmt"

	"arena-ace/internal/model"
	"arena-ace/internal/service/ledger"
	"arena-ace/internal/service/outbox"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func lockTournament(tx *gorm.DB, id string, t *model.Tournament) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appErr.ErrTournamentNotFound
	}
	return err
}

// Join enrols a user, charging the entry fee. Cheap checks run first so common failures
// skip the transaction; everything is checked again under row locks inside it.
func (s *Service) Join(ctx context.Context, tournamentID, userID string) (*model.Entry, error) {
	if err := s.precheckJoin(ctx, tournamentID, userID); err != nil {
		return nil, err
	}

	entryID := model.EntryID(tournamentID, userID)
	var entry *model.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Tournament
		if err := lockTournament(tx, tournamentID, &t); err != nil {
			return err
		}
		if t.Status != model.TournamentPublished {
			return appErr.ErrTournamentClosed
		}
		user, err := ledger.LockUser(tx, userID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&model.Entry{}).Where("id = ?", entryID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return appErr.ErrAlreadyJoined
		}

		var joined int64
		if err := tx.Model(&model.Entry{}).
			Where("tournament_id = ? AND status <> ?", t.ID, model.EntryCancelled).
			Count(&joined).Error; err != nil {
			return err
		}
		if joined >= int64(t.Slots) {
			return appErr.ErrTournamentFull
		}

		if t.EntryFee.IsPositive() {
			if _, err := ledger.Debit(tx, ledger.Posting{
				UserID:      user.ID,
				Amount:      t.EntryFee,
				Kind:        model.KindEntryFee,
				Description: "Entry fee for " + t.Title,
				RefID:       entryID,
			}); err != nil {
				return err
			}
		}

		entry = &model.Entry{
			ID:           entryID,
			TournamentID: t.ID,
			UserID:       user.ID,
			Status:       model.EntryConfirmed,
			PaidAmount:   t.EntryFee,
		}
		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return appErr.ErrAlreadyJoined
			}
			return err
		}

		return outbox.Enqueue(tx, outbox.KindJoinAdminAlert, "join:"+entryID, outbox.JoinAlertPayload{
			TournamentID:    t.ID,
			TournamentTitle: t.Title,
			UserID:          user.ID,
			UserName:        user.Name,
			EntryFee:        t.EntryFee.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("tournament joined",
		zap.String("tournamentID", tournamentID),
		zap.String("userID", userID),
		zap.String("fee", entry.PaidAmount.StringFixed(2)))
	return entry, nil
}

func (s *Service) precheckJoin(ctx context.Context, tournamentID, userID string) error {
	db := s.db.WithContext(ctx)

	var users int64
	if err := db.Model(&model.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
		return err
	}
	if users == 0 {
		return appErr.ErrUserNotFound
	}

	var t model.Tournament
	if err := db.Select("id", "status").First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.ErrTournamentNotFound
		}
		return err
	}
	if t.Status != model.TournamentPublished {
		return fmt.Errorf("%w: status is %s", appErr.ErrTournamentClosed, t.Status)
	}

	var existing int64
	if err := db.Model(&model.Entry{}).
		Where("id = ?", model.EntryID(tournamentID, userID)).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return appErr.ErrAlreadyJoined
	}
	return nil
}
