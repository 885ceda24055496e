package result

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"arena-ace/internal/model"
	"arena-ace/internal/service/ledger"
	"arena-ace/internal/service/notification"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	notifier *notification.Service
}

type PlayerScore struct {
	UserID string
	Name   string
	Points int64
}

type DeclareParams struct {
	TournamentID string
	Title        string
	IsMega       bool
	Results      []PlayerScore
}

func NewService(db *gorm.DB, notifier *notification.Service) *Service {
	return &Service{db: db, notifier: notifier}
}

// Rank orders scores by points, highest first. Equal scores keep their submitted order and
// still receive distinct consecutive ranks.
func Rank(scores []PlayerScore) []model.RankedResult {
	ordered := make([]PlayerScore, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Points > ordered[j].Points
	})

	ranked := make([]model.RankedResult, len(ordered))
	for i, s := range ordered {
		ranked[i] = model.RankedResult{
			UserID: s.UserID,
			Name:   s.Name,
			Rank:   i + 1,
			Points: s.Points,
			Prize:  decimal.Zero,
		}
	}
	return ranked
}

// PrizeFor returns the payout for a rank. Mega tournaments pay from the per-rank table,
// everything else pays the single prize to rank 1.
func PrizeFor(t *model.Tournament, isMega bool, rank int) decimal.Decimal {
	if isMega {
		if rank >= 1 && rank <= len(t.WinnerPrizes) {
			return t.WinnerPrizes[rank-1]
		}
		return decimal.Zero
	}
	if rank == 1 {
		return t.Prize
	}
	return decimal.Zero
}

func (p *DeclareParams) validate() error {
	if len(p.Results) == 0 {
		return fmt.Errorf("%w: results must not be empty", appErr.ErrInvalidResults)
	}
	seen := make(map[string]struct{}, len(p.Results))
	for i := range p.Results {
		r := &p.Results[i]
		r.UserID = strings.TrimSpace(r.UserID)
		if r.UserID == "" {
			return fmt.Errorf("%w: results[%d] has no userId", appErr.ErrInvalidResults, i)
		}
		if r.Points < 0 {
			return fmt.Errorf("%w: results[%d] has negative points", appErr.ErrInvalidResults, i)
		}
		if _, dup := seen[r.UserID]; dup {
			return fmt.Errorf("%w: user %s listed twice", appErr.ErrInvalidResults, r.UserID)
		}
		seen[r.UserID] = struct{}{}
	}
	return nil
}

// requireEntrants checks that every scored player holds a non-cancelled entry in the tournament.
func requireEntrants(tx *gorm.DB, tournamentID string, scores []PlayerScore) error {
	ids := make([]string, 0, len(scores))
	for _, sc := range scores {
		ids = append(ids, model.EntryID(tournamentID, sc.UserID))
	}
	var held []string
	if err := tx.Model(&model.Entry{}).
		Where("id IN ? AND status <> ?", ids, model.EntryCancelled).
		Pluck("user_id", &held).Error; err != nil {
		return err
	}
	entered := make(map[string]struct{}, len(held))
	for _, id := range held {
		entered[id] = struct{}{}
	}
	for _, sc := range scores {
		if _, ok := entered[sc.UserID]; !ok {
			return fmt.Errorf("%w: user %s has no entry in this tournament", appErr.ErrInvalidResults, sc.UserID)
		}
	}
	return nil
}

// Declare ranks the players, pays prizes, notifies winners and completes the tournament
// in one transaction. A tournament can be declared once.
func (s *Service) Declare(ctx context.Context, params DeclareParams, actorID string) (*model.TournamentResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	var (
		declared *model.TournamentResult
		notes    []*model.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Tournament
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", params.TournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrTournamentNotFound
			}
			return err
		}
		if t.Status != model.TournamentLive && t.Status != model.TournamentCompleted {
			return fmt.Errorf("%w: results need a live or completed tournament, got %s", appErr.ErrTournamentClosed, t.Status)
		}

		var existing int64
		if err := tx.Model(&model.TournamentResult{}).Where("id = ?", t.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return appErr.ErrResultAlreadyDeclared
		}

		if err := requireEntrants(tx, t.ID, params.Results); err != nil {
			return err
		}

		title := strings.TrimSpace(params.Title)
		if title == "" {
			title = t.Title
		}

		ranked := Rank(params.Results)
		for i := range ranked {
			r := &ranked[i]
			r.Prize = PrizeFor(&t, params.IsMega, r.Rank)
			if !r.Prize.IsPositive() {
				continue
			}
			if _, err := ledger.Credit(tx, ledger.Posting{
				UserID:      r.UserID,
				Amount:      r.Prize,
				Kind:        model.KindPrize,
				Description: fmt.Sprintf("Prize for rank %d in %s", r.Rank, title),
				RefID:       t.ID,
			}); err != nil {
				return err
			}
			n := &model.Notification{
				UserID:  r.UserID,
				Title:   "You won a prize!",
				Message: fmt.Sprintf("You finished #%d in %s and won Rs %s.", r.Rank, title, r.Prize.StringFixed(2)),
			}
			if _, err := notification.Insert(tx, n); err != nil {
				return err
			}
			notes = append(notes, n)
		}

		declared = &model.TournamentResult{
			ID:         t.ID,
			Title:      title,
			IsMega:     params.IsMega,
			Results:    ranked,
			DeclaredBy: actorID,
			DeclaredAt: time.Now(),
		}
		if err := tx.Create(declared).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return appErr.ErrResultAlreadyDeclared
			}
			return err
		}

		now := time.Now()
		if err := tx.Model(&model.Tournament{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
			"status":     model.TournamentCompleted,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Entry{}).
			Where("tournament_id = ? AND status = ?", t.ID, model.EntryConfirmed).
			Updates(map[string]interface{}{
				"status":     model.EntryCompleted,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		for _, n := range notes {
			s.notifier.PublishNotification(ctx, n)
		}
	}
	logger.Log.Info("tournament result declared",
		zap.String("tournamentID", declared.ID),
		zap.Int("players", len(declared.Results)),
		zap.Int("winners", len(notes)))
	return declared, nil
}

func (s *Service) Get(ctx context.Context, tournamentID string) (*model.TournamentResult, error) {
	var res model.TournamentResult
	if err := s.db.WithContext(ctx).First(&res, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrResultNotFound
		}
		return nil, err
	}
	return &res, nil
}
