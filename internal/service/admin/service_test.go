package admin_test

import (
	"context"
	"errors"
	"testing"

	"arena-ace/internal/config"
	"arena-ace/internal/model"
	adminsvc "arena-ace/internal/service/admin"
	"arena-ace/internal/testutil"
	pkgAuth "arena-ace/pkg/auth"
	appErr "arena-ace/pkg/errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, *adminsvc.Service) {
	t.Helper()

	db := testutil.NewDB(t)
	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{
			Secret: "test-secret",
			Expire: 1,
		},
		Admin: config.AdminSeedConfig{
			DefaultEmail:    "bootstrap@arena.test",
			DefaultPassword: "Bootstrap@123",
		},
	}

	return db, adminsvc.NewService(db)
}

func createAdmin(t *testing.T, db *gorm.DB, email, password, role string) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	admin := &model.User{
		Name:         "Tester",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("failed to insert admin: %v", err)
	}
	return admin
}

func TestLoginSuccess(t *testing.T) {
	db, svc := newTestService(t)
	record := createAdmin(t, db, "root@arena.test", "Secret@123", model.RoleAdmin)

	resp, err := svc.Login(context.Background(), " ROOT@arena.test ", "Secret@123")
	if err != nil {
		t.Fatalf("expected login to succeed, got error: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected token in response")
	}
	if resp.Admin.ID != record.ID {
		t.Fatalf("expected admin id %s, got %s", record.ID, resp.Admin.ID)
	}

	claims, err := pkgAuth.ParseAdminToken(resp.Token)
	if err != nil {
		t.Fatalf("expected admin-scoped token, got %v", err)
	}
	if claims.SubjectID != record.ID {
		t.Fatalf("expected subject %s, got %s", record.ID, claims.SubjectID)
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	db, svc := newTestService(t)
	createAdmin(t, db, "root@arena.test", "Secret@123", model.RoleAdmin)

	_, err := svc.Login(context.Background(), "root@arena.test", "wrong-password")
	if !errors.Is(err, appErr.ErrInvalidAdminPassword) {
		t.Fatalf("expected invalid password error, got: %v", err)
	}
}

func TestLoginNonAdmin(t *testing.T) {
	db, svc := newTestService(t)
	player := createAdmin(t, db, "player@arena.test", "Secret@123", model.RoleUser)

	_, err := svc.Login(context.Background(), "player@arena.test", "Secret@123")
	if !errors.Is(err, appErr.ErrAdminDisabled) {
		t.Fatalf("expected disabled error, got: %v", err)
	}
	if err := svc.Verify(context.Background(), player.ID); !errors.Is(err, appErr.ErrAdminDisabled) {
		t.Fatalf("expected verify to reject non-admin, got: %v", err)
	}
}

func TestLoginAdminNotFound(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Login(context.Background(), "ghost@arena.test", "whatever")
	if !errors.Is(err, appErr.ErrAdminNotFound) {
		t.Fatalf("expected not found error, got: %v", err)
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	db, svc := newTestService(t)

	ctx := context.Background()
	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	var count int64
	if err := db.Model(&model.User{}).
		Where("email = ? AND role = ?", config.GlobalConfig.Admin.DefaultEmail, model.RoleAdmin).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count admins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 default admin, got %d", count)
	}

	// Running bootstrap again should be idempotent.
	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if err := db.Model(&model.User{}).
		Where("email = ?", config.GlobalConfig.Admin.DefaultEmail).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count admins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected idempotent bootstrap, got %d admins", count)
	}

	if _, err := svc.Login(ctx, "bootstrap@arena.test", "Bootstrap@123"); err != nil {
		t.Fatalf("expected bootstrap admin to log in, got %v", err)
	}
}
