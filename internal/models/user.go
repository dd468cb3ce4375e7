package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	UUID         string `gorm:"uniqueIndex;not null"` // exposed as the "oid" claim
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string
	LastName     string
	Phone        string
	Address      string
	Address2     string
	City         string
	State        string
	Zip          string
	Birthday     *time.Time
	Avatar       string
	LastAccess   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BeforeCreate assigns the public subject identifier
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == "" {
		u.UUID = uuid.NewString()
	}
	return nil
}

// SetPassword stores the bcrypt hash of password
func (u *User) SetPassword(password string, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}
