package result_test

import (
	"context"
	"testing"

	"arena-ace/internal/model"
	"arena-ace/internal/service/notification"
	"arena-ace/internal/service/result"
	"arena-ace/internal/testutil"
	appErr "arena-ace/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, *result.Service) {
	t.Helper()
	db := testutil.NewDB(t)
	return db, result.NewService(db, notification.NewService(db, nil))
}

func TestRankIsStableForTies(t *testing.T) {
	ranked := result.Rank([]result.PlayerScore{
		{UserID: "a", Points: 30},
		{UserID: "b", Points: 50},
		{UserID: "c", Points: 50},
		{UserID: "d", Points: 10},
	})

	require.Len(t, ranked, 4)
	order := []string{ranked[0].UserID, ranked[1].UserID, ranked[2].UserID, ranked[3].UserID}
	assert.Equal(t, []string{"b", "c", "a", "d"}, order)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestDeclarePaysSingleWinnerOnTie(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	a := testutil.SeedUser(t, db, "Aman", "0", model.RoleUser)
	b := testutil.SeedUser(t, db, "Bela", "0", model.RoleUser)
	c := testutil.SeedUser(t, db, "Chet", "0", model.RoleUser)
	d := testutil.SeedUser(t, db, "Dia", "0", model.RoleUser)
	tour := testutil.SeedTournament(t, db, func(t *model.Tournament) { t.Status = model.TournamentLive })
	for _, u := range []*model.User{a, b, c, d} {
		testutil.SeedEntry(t, db, tour.ID, u.ID, model.EntryConfirmed)
	}

	declared, err := svc.Declare(ctx, result.DeclareParams{
		TournamentID: tour.ID,
		Results: []result.PlayerScore{
			{UserID: a.ID, Points: 30},
			{UserID: b.ID, Points: 50},
			{UserID: c.ID, Points: 50},
			{UserID: d.ID, Points: 10},
		},
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, tour.Title, declared.Title)
	assert.Equal(t, b.ID, declared.Results[0].UserID)
	assert.True(t, declared.Results[0].Prize.Equal(testutil.Money("100")))
	assert.True(t, declared.Results[1].Prize.IsZero())

	assert.True(t, testutil.Balance(t, db, b.ID).Equal(testutil.Money("100")))
	assert.True(t, testutil.Balance(t, db, c.ID).IsZero())

	txs := testutil.Transactions(t, db, b.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, model.KindPrize, txs[0].Kind)

	var notes []model.Notification
	require.NoError(t, db.Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, b.ID, notes[0].UserID)

	var stored model.Tournament
	require.NoError(t, db.First(&stored, "id = ?", tour.ID).Error)
	assert.Equal(t, model.TournamentCompleted, stored.Status)

	var completed int64
	require.NoError(t, db.Model(&model.Entry{}).Where("status = ?", model.EntryCompleted).Count(&completed).Error)
	assert.EqualValues(t, 4, completed)

	got, err := svc.Get(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, got.Results, 4)
	assert.Equal(t, 4, got.Results[3].Rank)
	assert.Equal(t, d.ID, got.Results[3].UserID)
}

func TestDeclareMegaUsesWinnerPrizes(t *testing.T) {
	db, svc := newTestService(t)
	a := testutil.SeedUser(t, db, "Aman", "0", model.RoleUser)
	b := testutil.SeedUser(t, db, "Bela", "0", model.RoleUser)
	c := testutil.SeedUser(t, db, "Chet", "0", model.RoleUser)
	tour := testutil.SeedTournament(t, db, func(t *model.Tournament) {
		t.Status = model.TournamentLive
		t.IsMega = true
		t.WinnerPrizes = []decimal.Decimal{testutil.Money("300"), testutil.Money("150")}
	})
	for _, u := range []*model.User{a, b, c} {
		testutil.SeedEntry(t, db, tour.ID, u.ID, model.EntryConfirmed)
	}

	_, err := svc.Declare(context.Background(), result.DeclareParams{
		TournamentID: tour.ID,
		Title:        "Mega Final",
		IsMega:       true,
		Results: []result.PlayerScore{
			{UserID: a.ID, Points: 5},
			{UserID: b.ID, Points: 9},
			{UserID: c.ID, Points: 7},
		},
	}, "admin-1")
	require.NoError(t, err)

	assert.True(t, testutil.Balance(t, db, b.ID).Equal(testutil.Money("300")))
	assert.True(t, testutil.Balance(t, db, c.ID).Equal(testutil.Money("150")))
	assert.True(t, testutil.Balance(t, db, a.ID).IsZero())
}

func TestDeclareOnlyOnce(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	a := testutil.SeedUser(t, db, "Aman", "0", model.RoleUser)
	tour := testutil.SeedTournament(t, db, func(t *model.Tournament) { t.Status = model.TournamentLive })
	testutil.SeedEntry(t, db, tour.ID, a.ID, model.EntryConfirmed)

	params := result.DeclareParams{TournamentID: tour.ID, Results: []result.PlayerScore{{UserID: a.ID, Points: 1}}}
	_, err := svc.Declare(ctx, params, "admin")
	require.NoError(t, err)

	_, err = svc.Declare(ctx, params, "admin")
	assert.ErrorIs(t, err, appErr.ErrResultAlreadyDeclared)
	assert.True(t, testutil.Balance(t, db, a.ID).Equal(testutil.Money("100")))
}

func TestDeclareValidationAndRollback(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	a := testutil.SeedUser(t, db, "Aman", "0", model.RoleUser)
	tour := testutil.SeedTournament(t, db, func(t *model.Tournament) { t.Status = model.TournamentLive })
	testutil.SeedEntry(t, db, tour.ID, a.ID, model.EntryConfirmed)
	// an entry whose user row is gone makes the prize credit fail mid-transaction
	testutil.SeedEntry(t, db, tour.ID, "ghost", model.EntryConfirmed)

	_, err := svc.Declare(ctx, result.DeclareParams{TournamentID: tour.ID}, "admin")
	assert.ErrorIs(t, err, appErr.ErrInvalidResults)

	_, err = svc.Declare(ctx, result.DeclareParams{TournamentID: tour.ID, Results: []result.PlayerScore{
		{UserID: a.ID, Points: 1}, {UserID: a.ID, Points: 2},
	}}, "admin")
	assert.ErrorIs(t, err, appErr.ErrInvalidResults)

	_, err = svc.Declare(ctx, result.DeclareParams{TournamentID: tour.ID, Results: []result.PlayerScore{
		{UserID: a.ID, Points: -1},
	}}, "admin")
	assert.ErrorIs(t, err, appErr.ErrInvalidResults)

	_, err = svc.Declare(ctx, result.DeclareParams{TournamentID: "missing", Results: []result.PlayerScore{
		{UserID: a.ID, Points: 1},
	}}, "admin")
	assert.ErrorIs(t, err, appErr.ErrTournamentNotFound)

	// The winner does not exist, so the prize credit fails and nothing is kept.
	_, err = svc.Declare(ctx, result.DeclareParams{TournamentID: tour.ID, Results: []result.PlayerScore{
		{UserID: "ghost", Points: 9}, {UserID: a.ID, Points: 1},
	}}, "admin")
	assert.ErrorIs(t, err, appErr.ErrUserNotFound)

	_, err = svc.Get(ctx, tour.ID)
	assert.ErrorIs(t, err, appErr.ErrResultNotFound)
	var stored model.Tournament
	require.NoError(t, db.First(&stored, "id = ?", tour.ID).Error)
	assert.Equal(t, model.TournamentLive, stored.Status)
	assert.True(t, testutil.Balance(t, db, a.ID).IsZero())
}

func TestDeclareRequiresLiveOrCompletedTournament(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	a := testutil.SeedUser(t, db, "Aman", "0", model.RoleUser)

	for _, status := range []string{model.TournamentDraft, model.TournamentPublished, model.TournamentCancelled} {
		tour := testutil.SeedTournament(t, db, func(t *model.Tournament) { t.Status = status })
		testutil.SeedEntry(t, db, tour.ID, a.ID, model.EntryConfirmed)

		_, err := svc.Declare(ctx, result.DeclareParams{TournamentID: tour.ID, Results: []result.PlayerScore{
			{UserID: a.ID, Points: 10},
		}}, "admin")
		assert.ErrorIs(t, err, appErr.ErrTournamentClosed, status)

		var stored model.Tournament
		require.NoError(t, db.First(&stored, "id = ?", tour.ID).Error)
		assert.Equal(t, status, stored.Status)
	}
	assert.True(t, testutil.Balance(t, db, a.ID).IsZero())
	assert.Empty(t, testutil.Transactions(t, db, a.ID))
}

func TestDeclareRejectsPlayersWithoutEntry(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	entrant := testutil.SeedUser(t, db, "Aman", "0", model.RoleUser)
	outsider := testutil.SeedUser(t, db, "Bela", "0", model.RoleUser)
	dropped := testutil.SeedUser(t, db, "Chet", "0", model.RoleUser)
	tour := testutil.SeedTournament(t, db, func(t *model.Tournament) { t.Status = model.TournamentLive })
	testutil.SeedEntry(t, db, tour.ID, entrant.ID, model.EntryConfirmed)
	testutil.SeedEntry(t, db, tour.ID, dropped.ID, model.EntryCancelled)

	for _, player := range []*model.User{outsider, dropped} {
		_, err := svc.Declare(ctx, result.DeclareParams{TournamentID: tour.ID, Results: []result.PlayerScore{
			{UserID: player.ID, Points: 50},
			{UserID: entrant.ID, Points: 10},
		}}, "admin")
		assert.ErrorIs(t, err, appErr.ErrInvalidResults, player.Name)
		assert.True(t, testutil.Balance(t, db, player.ID).IsZero())
	}
	assert.True(t, testutil.Balance(t, db, entrant.ID).IsZero())

	_, err := svc.Get(ctx, tour.ID)
	assert.ErrorIs(t, err, appErr.ErrResultNotFound)
}
