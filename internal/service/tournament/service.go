package tournament

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"arena-ace/internal/model"
	"arena-ace/internal/service/ledger"
	"arena-ace/internal/storage"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/logger"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	imageFolder     = "tournaments"
)

type Service struct {
	db       *gorm.DB
	uploader storage.Uploader
}

type UpsertParams struct {
	ID           string
	Title        string
	Game         string
	Date         string
	Time         string
	EntryFee     decimal.Decimal
	Slots        int
	Prize        decimal.Decimal
	Rules        []string
	Status       string
	IsMega       bool
	RoomID       string
	RoomPassword string
	WinnerPrizes []decimal.Decimal
}

type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type ListFilter struct {
	Page   int
	Size   int
	Game   string
	Status string
	// Public restricts the listing to what players may browse and strips room credentials.
	Public bool
}

type ListResult struct {
	Items []model.Tournament `json:"items"`
	Total int64              `json:"total"`
}

func NewService(db *gorm.DB, uploader storage.Uploader) *Service {
	return &Service{db: db, uploader: uploader}
}

func (f *ListFilter) sanitize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 {
		f.Size = defaultPageSize
	}
	if f.Size > maxPageSize {
		f.Size = maxPageSize
	}
	f.Game = strings.TrimSpace(f.Game)
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
}

func (p *UpsertParams) normalize() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Game = strings.TrimSpace(p.Game)
	p.Date = strings.TrimSpace(p.Date)
	p.Time = strings.TrimSpace(p.Time)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	if p.Status == "" {
		p.Status = model.TournamentDraft
	}

	switch {
	case p.Title == "":
		return fmt.Errorf("%w: title is required", appErr.ErrInvalidTournament)
	case p.Game == "":
		return fmt.Errorf("%w: game is required", appErr.ErrInvalidTournament)
	case p.EntryFee.IsNegative():
		return fmt.Errorf("%w: entryFee must be >= 0", appErr.ErrInvalidTournament)
	case p.Prize.IsNegative():
		return fmt.Errorf("%w: prize must be >= 0", appErr.ErrInvalidTournament)
	case !ledger.WithinScale(p.EntryFee) || !ledger.WithinScale(p.Prize):
		return fmt.Errorf("%w: amounts allow at most %d decimal places", appErr.ErrInvalidTournament, ledger.Scale)
	case p.Slots < 1:
		return fmt.Errorf("%w: slots must be >= 1", appErr.ErrInvalidTournament)
	case !ValidStatus(p.Status):
		return fmt.Errorf("%w: unknown status %q", appErr.ErrInvalidTournament, p.Status)
	}
	for i, prize := range p.WinnerPrizes {
		if prize.IsNegative() || !ledger.WithinScale(prize) {
			return fmt.Errorf("%w: winnerPrizes[%d] must be >= 0 with at most %d decimal places", appErr.ErrInvalidTournament, i, ledger.Scale)
		}
	}

	rules := make([]string, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r = strings.TrimSpace(r); r != "" {
			rules = append(rules, r)
		}
	}
	p.Rules = rules
	return nil
}

// Schedule parses a YYYY-MM-DD date and HH:MM time in the server's local zone.
func Schedule(date, clock string) (*time.Time, error) {
	if date == "" && clock == "" {
		return nil, nil
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: %q %q", appErr.ErrInvalidSchedule, date, clock)
	}
	return &at, nil
}

// CreateOrUpdate creates a tournament when params.ID is empty and updates it otherwise.
func (s *Service) CreateOrUpdate(ctx context.Context, params UpsertParams, image *Image) (*model.Tournament, error) {
	if err := params.normalize(); err != nil {
		return nil, err
	}
	scheduledAt, err := Schedule(params.Date, params.Time)
	if err != nil {
		return nil, err
	}
	if scheduledAt == nil && params.Status != model.TournamentDraft {
		return nil, fmt.Errorf("%w: date and time are required unless the tournament is a draft", appErr.ErrInvalidSchedule)
	}

	var t model.Tournament
	if params.ID != "" {
		if err := s.db.WithContext(ctx).First(&t, "id = ?", params.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, appErr.ErrTournamentNotFound
			}
			return nil, err
		}
		if !CanTransition(t.Status, params.Status) {
			return nil, fmt.Errorf("%w: %s to %s", appErr.ErrInvalidStatusTransition, t.Status, params.Status)
		}
	}

	t.Title = params.Title
	t.Game = params.Game
	t.Slug = slug.Make(params.Title)
	t.Date = params.Date
	t.Time = params.Time
	t.ScheduledAt = scheduledAt
	t.EntryFee = params.EntryFee
	t.Slots = params.Slots
	t.Prize = params.Prize
	t.Rules = params.Rules
	t.Status = params.Status
	t.IsMega = params.IsMega
	t.RoomID = strings.TrimSpace(params.RoomID)
	t.RoomPassword = strings.TrimSpace(params.RoomPassword)
	t.WinnerPrizes = params.WinnerPrizes

	if image != nil && image.Body != nil {
		if s.uploader == nil {
			return nil, errors.New("image storage is not configured")
		}
		key := storage.ObjectKey(imageFolder, params.Title, image.Filename)
		url, err := s.uploader.Upload(ctx, key, image.Body, image.ContentType)
		if err != nil {
			logger.Log.Error("tournament image upload failed",
				zap.String("key", key),
				zap.Error(err))
			return nil, err
		}
		t.ImageURL = url
	}

	if err := s.db.WithContext(ctx).Save(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (*model.Tournament, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", appErr.ErrInvalidTournament, status)
	}

	var t model.Tournament
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTournament(tx, id, &t); err != nil {
			return err
		}
		if !CanTransition(t.Status, status) {
			return fmt.Errorf("%w: %s to %s", appErr.ErrInvalidStatusTransition, t.Status, status)
		}
		if status != model.TournamentDraft && t.ScheduledAt == nil {
			return appErr.ErrInvalidSchedule
		}
		t.Status = status
		return tx.Model(&t).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Tournament{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appErr.ErrTournamentNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	filter.sanitize()

	query := func() *gorm.DB {
		db := s.db.WithContext(ctx).Model(&model.Tournament{})
		if filter.Public {
			db = db.Where("status IN ?", []string{
				model.TournamentPublished, model.TournamentLive, model.TournamentCompleted,
			})
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.Game != "" {
			db = db.Where("game = ?", filter.Game)
		}
		return db
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, err
	}
	var items []model.Tournament
	if err := query().
		Order("scheduled_at IS NULL, scheduled_at ASC, created_at DESC").
		Offset((filter.Page - 1) * filter.Size).
		Limit(filter.Size).
		Find(&items).Error; err != nil {
		return nil, err
	}

	if err := s.fillJoinedCounts(ctx, items); err != nil {
		return nil, err
	}
	if filter.Public {
		for i := range items {
			hideRoom(&items[i])
		}
	}
	return &ListResult{Items: items, Total: total}, nil
}

// Get returns a tournament as seen by a player. Room credentials are only revealed to
// entrants once the tournament is live.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*model.Tournament, error) {
	t, err := s.AdminGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleToUsers(t.Status) && t.Status != model.TournamentCancelled {
		return nil, appErr.ErrTournamentNotFound
	}

	reveal := false
	if t.Status == model.TournamentLive && viewerID != "" {
		var held int64
		if err := s.db.WithContext(ctx).Model(&model.Entry{}).
			Where("id = ? AND status <> ?", model.EntryID(t.ID, viewerID), model.EntryCancelled).
			Count(&held).Error; err != nil {
			return nil, err
		}
		reveal = held > 0
	}
	if !reveal {
		hideRoom(t)
	}
	return t, nil
}

func (s *Service) AdminGet(ctx context.Context, id string) (*model.Tournament, error) {
	var t model.Tournament
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrTournamentNotFound
		}
		return nil, err
	}
	items := []model.Tournament{t}
	if err := s.fillJoinedCounts(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Entries lists every entry of a tournament, oldest first.
func (s *Service) Entries(ctx context.Context, tournamentID string) ([]model.Entry, error) {
	var entries []model.Entry
	if err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) fillJoinedCounts(ctx context.Context, items []model.Tournament) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, t := range items {
		ids[i] = t.ID
	}

	var rows []struct {
		TournamentID string
		Joined       int64
	}
	if err := s.db.WithContext(ctx).Model(&model.Entry{}).
		Select("tournament_id, COUNT(*) AS joined").
		Where("tournament_id IN ? AND status <> ?", ids, model.EntryCancelled).
		Group("tournament_id").
		Scan(&rows).Error; err != nil {
		return err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.TournamentID] = r.Joined
	}
	for i := range items {
		items[i].JoinedCount = counts[items[i].ID]
	}
	return nil
}

func hideRoom(t *model.Tournament) {
	t.RoomID = ""
	t.RoomPassword = ""
}
