package user

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"arena-ace/internal/model"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultAdminUserPageSize = 20
	maxAdminUserPageSize     = 100

	minNameLength = 2
	maxNameLength = 50
)

type Service struct {
	db *gorm.DB
}

type AdminListUsersFilter struct {
	Page    int
	Size    int
	Role    string
	Keyword string
}

type AdminListUsersResult struct {
	Items []model.User `json:"items"`
	Total int64        `json:"total"`
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (f *AdminListUsersFilter) sanitize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 {
		f.Size = defaultAdminUserPageSize
	}
	if f.Size > maxAdminUserPageSize {
		f.Size = maxAdminUserPageSize
	}
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	f.Keyword = strings.TrimSpace(f.Keyword)
}

func applyAdminUserFilters(db *gorm.DB, filter AdminListUsersFilter) *gorm.DB {
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.Keyword != "" {
		like := "%" + strings.ToLower(filter.Keyword) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	return db
}

// EnsureProfile creates the profile on first sign-in and returns the stored one afterwards.
func (s *Service) EnsureProfile(ctx context.Context, userID, name, email string) (*model.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, appErr.ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}

	user := model.User{
		ID:    userID,
		Name:  name,
		Email: strings.ToLower(strings.TrimSpace(email)),
		Role:  model.RoleUser,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Log.Info("user profile created", zap.String("userID", userID))
	}
	return s.GetProfile(ctx, userID)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateName(ctx context.Context, userID, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return nil, appErr.ErrInvalidName
	}

	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"name":       name,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, appErr.ErrUserNotFound
	}
	return s.GetProfile(ctx, userID)
}

func (s *Service) AdminListUsers(ctx context.Context, filter AdminListUsersFilter) (*AdminListUsersResult, error) {
	filter.sanitize()

	countQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	result := &AdminListUsersResult{
		Items: make([]model.User, 0),
		Total: total,
	}
	if total == 0 {
		return result, nil
	}

	dataQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	if err := dataQuery.
		Order("created_at DESC").
		Limit(filter.Size).
		Offset((filter.Page - 1) * filter.Size).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// SetRole changes another user's role. Admins cannot change their own.
func (s *Service) SetRole(ctx context.Context, actorID, userID, role string) (*model.User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, appErr.ErrInvalidRole
	}
	if actorID == userID {
		return nil, appErr.ErrSelfRoleChange
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).
		Updates(map[string]interface{}{
			"role":       role,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return nil, err
	}
	user.Role = role

	logger.Log.Info("admin updated user role",
		zap.String("actorID", actorID),
		zap.String("userID", userID),
		zap.String("role", role))
	return user, nil
}
