package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AlessandraU03/stylepin-api/internal/user/entity"
)

// MemoryRepo is an in-process account store with the same contract as
// UserRepo. Every method runs under one mutex, so the read-modify-write in
// IncrementLoginAttempts is atomic.
type MemoryRepo struct {
	mu         sync.Mutex
	byID       map[string]*entity.User
	byEmail    map[string]string
	byUsername map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:       map[string]*entity.User{},
		byEmail:    map[string]string{},
		byUsername: map[string]string{},
	}
}

func (m *MemoryRepo) Create(ctx context.Context, u *entity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := m.byEmail[email]; ok {
		return ErrEmailTaken
	}
	if _, ok := m.byUsername[u.Username]; ok {
		return ErrUsernameTaken
	}
	c := u.Clone()
	c.Email = email
	m.byID[c.ID] = c
	m.byEmail[email] = c.ID
	m.byUsername[c.Username] = c.ID
	return nil
}

func (m *MemoryRepo) lookup(ctx context.Context, id string, ok bool) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	u, found := m.byID[id]
	if !found {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (m *MemoryRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(ctx, id, true)
}

// IsActive reports whether id names an existing, active account.
func (m *MemoryRepo) IsActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	return ok && u.IsActive
}

func (m *MemoryRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return m.lookup(ctx, id, ok)
}

func (m *MemoryRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUsername[strings.TrimSpace(username)]
	return m.lookup(ctx, id, ok)
}

func (m *MemoryRepo) GetByIdentity(ctx context.Context, identity string) (*entity.User, error) {
	if strings.Contains(identity, "@") {
		return m.GetByEmail(ctx, identity)
	}
	return m.GetByUsername(ctx, identity)
}

func (m *MemoryRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return ok, nil
}

func (m *MemoryRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byUsername[strings.TrimSpace(username)]
	return ok, nil
}

// mutate applies fn to the stored row under the lock.
func (m *MemoryRepo) mutate(ctx context.Context, id string, fn func(u *entity.User)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(u)
	return nil
}

func (m *MemoryRepo) Update(ctx context.Context, u *entity.User) error {
	src := u.Clone()
	return m.mutate(ctx, u.ID, func(dst *entity.User) {
		dst.FullName = src.FullName
		dst.Bio = src.Bio
		dst.AvatarURL = src.AvatarURL
		dst.Gender = src.Gender
		dst.PreferredStyles = src.PreferredStyles
		dst.UpdatedAt = src.UpdatedAt
	})
}

func (m *MemoryRepo) UpdateLoginAttempts(ctx context.Context, id string, attempts int, lockedUntil *time.Time, at time.Time) error {
	return m.mutate(ctx, id, func(u *entity.User) {
		u.LoginAttempts = attempts
		u.LockedUntil = copyTime(lockedUntil)
		u.UpdatedAt = at
	})
}

func (m *MemoryRepo) IncrementLoginAttempts(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (int, *time.Time, error) {
	var (
		attempts int
		locked   *time.Time
	)
	err := m.mutate(ctx, id, func(u *entity.User) {
		u.LoginAttempts++
		if u.LoginAttempts >= threshold {
			u.LockedUntil = copyTime(&lockUntil)
		}
		u.UpdatedAt = at
		attempts, locked = u.LoginAttempts, copyTime(u.LockedUntil)
	})
	return attempts, locked, err
}

func (m *MemoryRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.mutate(ctx, id, func(u *entity.User) {
		t := at
		u.LastLogin = &t
		u.UpdatedAt = at
	})
}

// RecordLogin clears the failure state and stamps last_login in one step.
func (m *MemoryRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return m.mutate(ctx, id, func(u *entity.User) {
		t := at
		u.LoginAttempts = 0
		u.LockedUntil = nil
		u.LastLogin = &t
		u.UpdatedAt = at
	})
}

func (m *MemoryRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return m.mutate(ctx, id, func(u *entity.User) {
		u.PasswordHash = hash
		u.UpdatedAt = at
	})
}

func (m *MemoryRepo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return m.mutate(ctx, id, func(u *entity.User) {
		u.IsActive = active
		u.UpdatedAt = at
	})
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
