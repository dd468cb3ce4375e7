package services

import (
	"context"
	"errors"
	"time"

	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserExists = errors.New("user_already_exists")

type UserService interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUUID(ctx context.Context, uuid string) (*models.User, error)
	TouchLastAccess(ctx context.Context, userID uint) error
	GrantedScopes(ctx context.Context, userID uint, clientID string) ([]models.ScopeGrant, error)
	GrantScopes(ctx context.Context, userID uint, clientID string, scopes []models.ApplicationScope) error
}

type userService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db, now: time.Now}
}

func (s *userService) CreateUser(ctx context.Context, user *models.User) error {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", user.Email).First(&existing).Error; err == nil {
		return ErrUserExists
	}

	return s.db.WithContext(ctx).Create(user).Error
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *userService) GetUserByUUID(ctx context.Context, uuid string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *userService) TouchLastAccess(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_access", s.now()).Error
}

// GrantedScopes returns the user's granted scope records for one client, scope loaded
func (s *userService) GrantedScopes(ctx context.Context, userID uint, clientID string) ([]models.ScopeGrant, error) {
	var grants []models.ScopeGrant
	err := s.db.WithContext(ctx).
		Preload("Scope").
		Where("user_id = ? AND client_id = ? AND granted = ?", userID, clientID, true).
		Order("scope_id").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// GrantScopes upserts a granted row for every scope
func (s *userService) GrantScopes(ctx context.Context, userID uint, clientID string, scopes []models.ApplicationScope) error {
	if len(scopes) == 0 {
		return nil
	}
	grants := make([]models.ScopeGrant, 0, len(scopes))
	for _, scope := range scopes {
		grants = append(grants, models.ScopeGrant{
			UserID:   userID,
			ClientID: clientID,
			ScopeID:  scope.ID,
			Granted:  true,
		})
	}
	return s.db.WithContext(ctx).
		Omit("Scope").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "client_id"}, {Name: "scope_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"granted", "updated_at"}),
		}).
		Create(&grants).Error
}
