package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"arena-ace/internal/config"
	"arena-ace/internal/model"
	pkgAuth "arena-ace/pkg/auth"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type LoginResult struct {
	Token    string    `json:"token"`
	ExpireAt time.Time `json:"expireAt"`
	Admin    AdminInfo `json:"admin"`
}

type AdminInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, appErr.ErrInvalidAdminPassword
	}

	var admin model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrAdminNotFound
		}
		return nil, err
	}
	if admin.Role != model.RoleAdmin {
		return nil, appErr.ErrAdminDisabled
	}
	if admin.PasswordHash == "" {
		return nil, appErr.ErrInvalidAdminPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, appErr.ErrInvalidAdminPassword
	}

	token, err := pkgAuth.GenerateAdminToken(admin.ID)
	if err != nil {
		return nil, err
	}
	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)

	logger.Log.Info("admin logged in", zap.String("adminID", admin.ID))
	return &LoginResult{
		Token:    token,
		ExpireAt: expireAt,
		Admin:    sanitizeAdmin(admin),
	}, nil
}

// Verify confirms that a token subject still holds the admin role.
func (s *Service) Verify(ctx context.Context, adminID string) error {
	var admin model.User
	if err := s.db.WithContext(ctx).Select("id", "role").First(&admin, "id = ?", adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.ErrAdminNotFound
		}
		return err
	}
	if admin.Role != model.RoleAdmin {
		return appErr.ErrAdminDisabled
	}
	return nil
}

func (s *Service) EnsureDefaultAdmin(ctx context.Context) error {
	cfg := config.GlobalConfig.Admin
	email := strings.ToLower(strings.TrimSpace(cfg.DefaultEmail))
	if email == "" || cfg.DefaultPassword == "" {
		logger.Log.Warn("default admin credentials not configured; skipping bootstrap")
		return nil
	}

	var exists int64
	if err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ? AND role = ?", email, model.RoleAdmin).
		Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.User{
		Name:         "Administrator",
		Email:        email,
		Role:         model.RoleAdmin,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	logger.Log.Info("default admin account created",
		zap.String("email", email))
	return nil
}

func sanitizeAdmin(admin model.User) AdminInfo {
	return AdminInfo{
		ID:        admin.ID,
		Name:      admin.Name,
		Email:     admin.Email,
		CreatedAt: admin.CreatedAt,
	}
}
