package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("users: user not found")
	ErrUsernameExists     = errors.New("users: username already taken")
	ErrInvalidCredentials = errors.New("users: invalid credentials")
)

// Staff roles. Role gates what parts of the portal a user can reach.
const (
	RoleAdmin     = "admin"
	RolePhysician = "physician"
	RoleNurse     = "nurse"
	RoleLab       = "lab"
	RoleReception = "reception"
)

// ValidRole reports whether role is one of the portal's staff roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RolePhysician, RoleNurse, RoleLab, RoleReception:
		return true
	}
	return false
}

// User is a staff account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Specialty    string    `json:"specialty,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// SetPassword hashes and stores the given plaintext password.
func (u *User) SetPassword(plain string) error {
	if len(plain) < 8 {
		return errors.New("users: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}
