package models

import (
	"time"
)

// ScopeGrant records a user's consent decision for one application scope.
// There is at most one row per (UserID, ClientID, ScopeID).
type ScopeGrant struct {
	ID        uint             `gorm:"primaryKey"`
	UserID    uint             `gorm:"not null;uniqueIndex:idx_user_client_scope"`
	ClientID  string           `gorm:"not null;uniqueIndex:idx_user_client_scope"`
	ScopeID   uint             `gorm:"not null;uniqueIndex:idx_user_client_scope"`
	Granted   bool             `gorm:"not null"`
	Scope     ApplicationScope `gorm:"foreignKey:ScopeID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ScopeGrant) TableName() string {
	return "scope_grants"
}
