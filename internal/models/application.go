package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Application is a client registered to use the device flow. ApplicationSecret
// is the HMAC key for the application's access tokens, so it is stored as issued.
type Application struct {
	ClientID          string             `gorm:"primaryKey" json:"clientId"`
	ApplicationSecret string             `gorm:"not null" json:"-"`
	DisplayName       string             `gorm:"not null" json:"displayName"`
	OwnerID           string             `gorm:"index" json:"ownerId"` // User.UUID of the owner
	Domain            string             `json:"domain"`
	Active            bool               `gorm:"not null" json:"active"`
	Scopes            []ApplicationScope `gorm:"foreignKey:ClientID;references:ClientID" json:"scopes"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt     `gorm:"index" json:"-"`
}

func (Application) TableName() string {
	return "applications"
}

// GetID, GetSecret, GetDomain, IsPublic and GetUserID implement oauth2.ClientInfo

func (a *Application) GetID() string     { return a.ClientID }
func (a *Application) GetSecret() string { return a.ApplicationSecret }
func (a *Application) GetDomain() string { return a.Domain }
func (a *Application) IsPublic() bool    { return false }
func (a *Application) GetUserID() string { return a.OwnerID }

// RequiredScopes returns the scopes the user must grant before tokens are issued
func (a *Application) RequiredScopes() []ApplicationScope {
	var required []ApplicationScope
	for _, s := range a.Scopes {
		if s.Required {
			required = append(required, s)
		}
	}
	return required
}

// ScopeNames returns the declared scope names in declaration order
func (a *Application) ScopeNames() []string {
	names := make([]string, 0, len(a.Scopes))
	for _, s := range a.Scopes {
		names = append(names, s.Scope)
	}
	return names
}

// ScopeType is the access level suffix of a scope name
type ScopeType string

const (
	ScopeRead      ScopeType = "read"
	ScopeReadWrite ScopeType = "readwrite"
	ScopeNotify    ScopeType = "notify"
)

// ApplicationScope is a scope an application declares, e.g. "email_read"
type ApplicationScope struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClientID  string    `gorm:"not null;index" json:"clientId"`
	Scope     string    `gorm:"not null" json:"scope"`
	Required  bool      `gorm:"not null" json:"required"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (ApplicationScope) TableName() string {
	return "application_scopes"
}

// Category returns the attribute group prefix ("email" for "email_read").
// Names without an underscore have no category.
func (s ApplicationScope) Category() string {
	return ScopeCategory(s.Scope)
}

// ScopeCategory returns the text before the first underscore of a scope name,
// or "" if there is none.
func ScopeCategory(scope string) string {
	category, _, found := strings.Cut(scope, "_")
	if !found {
		return ""
	}
	return category
}

// IsValidScope reports whether name has the form <category>_<read|readwrite|notify>
func IsValidScope(name string) bool {
	category, level, found := strings.Cut(name, "_")
	if !found || category == "" {
		return false
	}
	switch ScopeType(level) {
	case ScopeRead, ScopeReadWrite, ScopeNotify:
		return true
	default:
		return false
	}
}
