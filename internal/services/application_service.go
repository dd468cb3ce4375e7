package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrInvalidScope is returned for scope names outside <category>_<read|readwrite|notify>
	ErrInvalidScope = errors.New("invalid scope")
)

type ApplicationService interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, clientID string) (*models.Application, error)
	GetApplicationsByOwner(ctx context.Context, ownerID string) ([]models.Application, error)
	SetActive(ctx context.Context, clientID string, active bool) error
	UpdateScopes(ctx context.Context, clientID string, scopes []models.ApplicationScope) error
}

type applicationService struct {
	db *gorm.DB
}

func NewApplicationService(db *gorm.DB) ApplicationService {
	return &applicationService{db: db}
}

// CreateApplication stores app and its scopes. A missing client ID or secret is generated.
func (s *applicationService) CreateApplication(ctx context.Context, app *models.Application) error {
	if app.ClientID == "" {
		app.ClientID = uuid.NewString()
	}
	if app.ApplicationSecret == "" {
		app.ApplicationSecret = uuid.NewString() + uuid.NewString()
	}
	if err := validateScopes(app.Scopes); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(app).Error
}

// GetApplication loads an application with its declared scopes
func (s *applicationService) GetApplication(ctx context.Context, clientID string) (*models.Application, error) {
	var app models.Application
	err := s.db.WithContext(ctx).
		Preload("Scopes", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("client_id = ?", clientID).
		First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *applicationService) GetApplicationsByOwner(ctx context.Context, ownerID string) ([]models.Application, error) {
	var apps []models.Application
	if err := s.db.WithContext(ctx).Preload("Scopes").Where("owner_id = ?", ownerID).Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *applicationService) SetActive(ctx context.Context, clientID string, active bool) error {
	result := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("client_id = ?", clientID).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// UpdateScopes replaces the declared scopes of an application. Scopes kept by name
// retain their ID so existing grants stay valid; removed scopes lose their grants.
// The IDs of the stored rows are written back into scopes.
func (s *applicationService) UpdateScopes(ctx context.Context, clientID string, scopes []models.ApplicationScope) error {
	if err := validateScopes(scopes); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.Application
		if err := tx.Preload("Scopes").Where("client_id = ?", clientID).First(&app).Error; err != nil {
			return translate(err)
		}

		existing := make(map[string]models.ApplicationScope, len(app.Scopes))
		for _, scope := range app.Scopes {
			existing[scope.Scope] = scope
		}

		for i := range scopes {
			scopes[i].ClientID = clientID
			current, ok := existing[scopes[i].Scope]
			if !ok {
				scopes[i].ID = 0
				if err := tx.Create(&scopes[i]).Error; err != nil {
					return err
				}
				continue
			}
			delete(existing, scopes[i].Scope)
			scopes[i].ID = current.ID
			if current.Required != scopes[i].Required {
				err := tx.Model(&models.ApplicationScope{}).
					Where("id = ?", current.ID).
					Update("required", scopes[i].Required).Error
				if err != nil {
					return err
				}
			}
		}

		if len(existing) == 0 {
			return nil
		}
		removed := make([]uint, 0, len(existing))
		for _, scope := range existing {
			removed = append(removed, scope.ID)
		}
		if err := tx.Where("scope_id IN ?", removed).Delete(&models.ScopeGrant{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", removed).Delete(&models.ApplicationScope{}).Error
	})
}

func validateScopes(scopes []models.ApplicationScope) error {
	seen := make(map[string]bool, len(scopes))
	for _, scope := range scopes {
		if !models.IsValidScope(scope.Scope) {
			return fmt.Errorf("%w %q: expected <category>_<read|readwrite|notify>", ErrInvalidScope, scope.Scope)
		}
		if seen[scope.Scope] {
			return fmt.Errorf("%w %q: declared twice", ErrInvalidScope, scope.Scope)
		}
		seen[scope.Scope] = true
	}
	return nil
}
