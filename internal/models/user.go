package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrUserExists is returned when a username or email is already registered.
var ErrUserExists = errors.New("user already exists")

// User is a practice account. It is the unit of tenant isolation: every
// patient and past appointment row carries the owning user's ID as tenant_id.
type User struct {
	BaseModel
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string    `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	PracticeName string    `gorm:"size:255" json:"practice_name"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations (not preloaded)
	Patients         []Patient         `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
	PastAppointments []PastAppointment `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PracticeName string    `json:"practice_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PracticeName: u.PracticeName,
		CreatedAt:    u.CreatedAt,
	}
}
