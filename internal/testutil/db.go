package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"arena-ace/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory sqlite database for one test and migrates every model.
// A single connection keeps transactions serialised the way row locks would on postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}
	return db
}

func Money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func SeedUser(t *testing.T, db *gorm.DB, name, balance, role string) *model.User {
	t.Helper()

	user := &model.User{
		Name:          name,
		Email:         strings.ToLower(name) + "@example.com",
		WalletBalance: Money(balance),
		Role:          role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func SeedTournament(t *testing.T, db *gorm.DB, mutate func(*model.Tournament)) *model.Tournament {
	t.Helper()

	at := time.Now().Add(48 * time.Hour).Truncate(time.Minute)
	tournament := &model.Tournament{
		Title:        "Sunday Squad Cup",
		Game:         "BGMI",
		Date:         at.Format("2006-01-02"),
		Time:         at.Format("15:04"),
		ScheduledAt:  &at,
		EntryFee:     Money("40"),
		Slots:        100,
		Prize:        Money("100"),
		Rules:        []string{"no emulators"},
		Status:       model.TournamentPublished,
		RoomID:       "room-1",
		RoomPassword: "secret",
	}
	if mutate != nil {
		mutate(tournament)
	}
	if err := db.Create(tournament).Error; err != nil {
		t.Fatalf("failed to seed tournament: %v", err)
	}
	return tournament
}

func Balance(t *testing.T, db *gorm.DB, userID string) decimal.Decimal {
	t.Helper()

	var user model.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return user.WalletBalance
}

func Transactions(t *testing.T, db *gorm.DB, userID string) []model.Transaction {
	t.Helper()

	var txs []model.Transaction
	if err := db.Where("user_id = ?", userID).Order("created_at ASC").Find(&txs).Error; err != nil {
		t.Fatalf("failed to load transactions: %v", err)
	}
	return txs
}

func SeedEntry(t *testing.T, db *gorm.DB, tournamentID, userID, status string) *model.Entry {
	t.Helper()

	entry := &model.Entry{
		ID:           model.EntryID(tournamentID, userID),
		TournamentID: tournamentID,
		UserID:       userID,
		Status:       status,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}
	return entry
}
