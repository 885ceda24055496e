package user_test

import (
	"context"
	"strings"
	"testing"

	"arena-ace/internal/model"
	usersvc "arena-ace/internal/service/user"
	"arena-ace/internal/testutil"
	appErr "arena-ace/pkg/errors"
)

func TestEnsureProfileIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	svc := usersvc.NewService(db)
	ctx := context.Background()

	first, err := svc.EnsureProfile(ctx, "uid-1", "Asha", "Asha@Example.com")
	if err != nil {
		t.Fatalf("expected profile creation to succeed, got %v", err)
	}
	if first.Role != model.RoleUser || !first.WalletBalance.IsZero() {
		t.Fatalf("unexpected defaults: role=%s balance=%s", first.Role, first.WalletBalance)
	}
	if first.Email != "asha@example.com" {
		t.Fatalf("expected lower-cased email, got %s", first.Email)
	}

	if err := db.Model(&model.User{}).Where("id = ?", "uid-1").Update("wallet_balance", testutil.Money("70")).Error; err != nil {
		t.Fatalf("failed to seed balance: %v", err)
	}

	again, err := svc.EnsureProfile(ctx, "uid-1", "Someone Else", "other@example.com")
	if err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
	if again.Name != "Asha" || !again.WalletBalance.Equal(testutil.Money("70")) {
		t.Fatalf("existing profile must not be overwritten, got name=%s balance=%s", again.Name, again.WalletBalance)
	}
}

func TestUpdateName(t *testing.T) {
	db := testutil.NewDB(t)
	svc := usersvc.NewService(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)

	updated, err := svc.UpdateName(ctx, user.ID, "  Asha K  ")
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
	if updated.Name != "Asha K" {
		t.Fatalf("expected trimmed name, got %q", updated.Name)
	}

	for _, bad := range []string{"", " A ", strings.Repeat("x", 51)} {
		if _, err := svc.UpdateName(ctx, user.ID, bad); err != appErr.ErrInvalidName {
			t.Fatalf("expected ErrInvalidName for %q, got %v", bad, err)
		}
	}

	if _, err := svc.UpdateName(ctx, "ghost", "Valid"); err != appErr.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetRole(t *testing.T) {
	db := testutil.NewDB(t)
	svc := usersvc.NewService(db)
	ctx := context.Background()
	admin := testutil.SeedUser(t, db, "Root", "0", model.RoleAdmin)
	user := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)

	if _, err := svc.SetRole(ctx, admin.ID, admin.ID, model.RoleUser); err != appErr.ErrSelfRoleChange {
		t.Fatalf("expected ErrSelfRoleChange, got %v", err)
	}
	if _, err := svc.SetRole(ctx, admin.ID, user.ID, "superuser"); err != appErr.ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.SetRole(ctx, admin.ID, "ghost", model.RoleAdmin); err != appErr.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	promoted, err := svc.SetRole(ctx, admin.ID, user.ID, "ADMIN")
	if err != nil {
		t.Fatalf("expected promotion to succeed, got %v", err)
	}
	if promoted.Role != model.RoleAdmin {
		t.Fatalf("expected admin role, got %s", promoted.Role)
	}
}

func TestAdminListUsersFilters(t *testing.T) {
	db := testutil.NewDB(t)
	svc := usersvc.NewService(db)
	ctx := context.Background()
	testutil.SeedUser(t, db, "Root", "0", model.RoleAdmin)
	testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)
	testutil.SeedUser(t, db, "Ashok", "0", model.RoleUser)

	res, err := svc.AdminListUsers(ctx, usersvc.AdminListUsersFilter{Keyword: "ash"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if res.Total != 2 || len(res.Items) != 2 {
		t.Fatalf("expected 2 users for keyword, got total=%d items=%d", res.Total, len(res.Items))
	}

	res, err = svc.AdminListUsers(ctx, usersvc.AdminListUsersFilter{Role: "admin"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("expected 1 admin, got %d", res.Total)
	}

	res, err = svc.AdminListUsers(ctx, usersvc.AdminListUsersFilter{Page: 2, Size: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if res.Total != 3 || len(res.Items) != 1 {
		t.Fatalf("expected second page with 1 item, got total=%d items=%d", res.Total, len(res.Items))
	}
}
