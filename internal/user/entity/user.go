package entity

import (
	"time"

	"github.com/AlessandraU03/stylepin-api/internal/auth"
)

type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderNonBinary      Gender = "non_binary"
	GenderPreferNotToSay Gender = "prefer_not_to_say"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNonBinary, GenderPreferNotToSay:
		return true
	}
	return false
}

// User represents an account row in the `users` table. PasswordHash never
// leaves the service layer; handlers only see the profile projections below.
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	FullName        string
	Bio             *string
	AvatarURL       *string
	Gender          Gender
	PreferredStyles []string
	IsVerified      bool
	IsActive        bool
	Role            auth.Role
	LoginAttempts   int
	LockedUntil     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastLogin       *time.Time
}

// IsLocked reports whether a lock is in force at now. Locks are never cleared
// by time; the predicate just stops holding once now passes locked_until.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// PublicProfile is what anyone may see about an account.
type PublicProfile struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	FullName        string    `json:"full_name"`
	Bio             *string   `json:"bio"`
	AvatarURL       *string   `json:"avatar_url"`
	PreferredStyles []string  `json:"preferred_styles"`
	IsVerified      bool      `json:"is_verified"`
	CreatedAt       time.Time `json:"created_at"`
	TotalPins       *int      `json:"total_pins,omitempty"`
}

// MeProfile is the owner's own view. It adds contact and account fields but
// still carries no security state.
type MeProfile struct {
	PublicProfile
	Email     string     `json:"email"`
	Gender    Gender     `json:"gender"`
	Role      auth.Role  `json:"role"`
	IsActive  bool       `json:"is_active"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login"`
}

func (u *User) Public() PublicProfile {
	styles := u.PreferredStyles
	if styles == nil {
		styles = []string{}
	}
	return PublicProfile{
		ID:              u.ID,
		Username:        u.Username,
		FullName:        u.FullName,
		Bio:             u.Bio,
		AvatarURL:       u.AvatarURL,
		PreferredStyles: styles,
		IsVerified:      u.IsVerified,
		CreatedAt:       u.CreatedAt,
	}
}

func (u *User) Me() MeProfile {
	return MeProfile{
		PublicProfile: u.Public(),
		Email:         u.Email,
		Gender:        u.Gender,
		Role:          u.Role,
		IsActive:      u.IsActive,
		UpdatedAt:     u.UpdatedAt,
		LastLogin:     u.LastLogin,
	}
}

// Clone returns a deep copy so stores can hand out rows without sharing state.
func (u *User) Clone() *User {
	c := *u
	c.PreferredStyles = append([]string(nil), u.PreferredStyles...)
	c.Bio = clonePtr(u.Bio)
	c.AvatarURL = clonePtr(u.AvatarURL)
	c.LockedUntil = clonePtr(u.LockedUntil)
	c.LastLogin = clonePtr(u.LastLogin)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
