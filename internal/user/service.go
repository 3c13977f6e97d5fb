package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/user/entity"
	userrepo "github.com/AlessandraU03/stylepin-api/internal/user/repo"
	"github.com/AlessandraU03/stylepin-api/internal/validate"
	"github.com/AlessandraU03/stylepin-api/pkg/patch"
)

// AccountStore is the persistence contract of the account flows. Not-found is
// userrepo.ErrNotFound; duplicate keys are userrepo.ErrEmailTaken and
// userrepo.ErrUsernameTaken.
type AccountStore interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByIdentity(ctx context.Context, identity string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdateLoginAttempts(ctx context.Context, id string, attempts int, lockedUntil *time.Time, at time.Time) error
	IncrementLoginAttempts(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (int, *time.Time, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subject string, role auth.Role, now time.Time) (auth.Token, error)
}

// PinCounter reports how many pins an account owns.
type PinCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

type Options struct {
	MaxAttempts int
	LockWindow  time.Duration
	Now         func() time.Time
	NewID       func() string
	Pins        PinCounter
}

// Service orchestrates registration, login and account lifecycle flows.
type Service struct {
	store       AccountStore
	hasher      auth.PasswordHasher
	tokens      TokenIssuer
	pins        PinCounter
	now         func() time.Time
	newID       func() string
	maxAttempts int
	lockWindow  time.Duration
	logger      *zap.SugaredLogger
}

func NewService(store AccountStore, hasher auth.PasswordHasher, tokens TokenIssuer, logger *zap.SugaredLogger, opts Options) *Service {
	s := &Service{
		store:       store,
		hasher:      hasher,
		tokens:      tokens,
		pins:        opts.Pins,
		now:         opts.Now,
		newID:       opts.NewID,
		maxAttempts: opts.MaxAttempts,
		lockWindow:  opts.LockWindow,
		logger:      logger,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 5
	}
	if s.lockWindow <= 0 {
		s.lockWindow = 15 * time.Minute
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	return s
}

type RegisterInput struct {
	Username        string   `json:"username" validate:"required,username"`
	Email           string   `json:"email" validate:"required,email,max=254"`
	Password        string   `json:"password" validate:"required,password"`
	FullName        string   `json:"full_name" validate:"required,notblank,max=100"`
	Gender          string   `json:"gender" validate:"omitempty,oneof=male female non_binary prefer_not_to_say"`
	PreferredStyles []string `json:"preferred_styles" validate:"omitempty,max=10,dive,notblank,max=50"`
}

type LoginInput struct {
	Identity string `json:"identity" validate:"required_without=Email,max=254"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by both registration and login.
type AuthResult struct {
	User      entity.PublicProfile `json:"user"`
	Token     string               `json:"token"`
	TokenType string               `json:"token_type"`
	ExpiresAt time.Time            `json:"expires_at"`
}

type UpdateProfileInput struct {
	FullName        patch.Field[string]   `json:"full_name" validate:"omitempty,notblank,max=100"`
	Bio             patch.Field[string]   `json:"bio" validate:"omitempty,max=500"`
	AvatarURL       patch.Field[string]   `json:"avatar_url" validate:"omitempty,http_url,max=500"`
	Gender          patch.Field[string]   `json:"gender" validate:"omitempty,oneof=male female non_binary prefer_not_to_say"`
	PreferredStyles patch.Field[[]string] `json:"preferred_styles" validate:"omitempty,max=10,dive,notblank,max=50"`
}

// Register creates an account and signs the caller in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)

	var details []apperror.FieldError
	if !validate.ValidUsername(username) {
		details = append(details, apperror.FieldError{Field: "username", Message: "must be 3-30 characters of letters, numbers, dots and underscores"})
	}
	if email == "" {
		details = append(details, apperror.FieldError{Field: "email", Message: "field required"})
	}
	if err := auth.CheckPasswordPolicy(in.Password); err != nil {
		details = append(details, apperror.FieldError{Field: "password", Message: err.Error()})
	}
	if fullName == "" {
		details = append(details, apperror.FieldError{Field: "full_name", Message: "field required"})
	}
	gender := entity.GenderPreferNotToSay
	if in.Gender != "" {
		gender = entity.Gender(in.Gender)
		if !gender.Valid() {
			details = append(details, apperror.FieldError{Field: "gender", Message: "unknown gender"})
		}
	}
	if len(details) > 0 {
		return nil, apperror.Validation(details...)
	}

	if taken, err := s.store.ExistsByEmail(ctx, email); err != nil {
		return nil, internal(err)
	} else if taken {
		return nil, apperror.Conflict(userrepo.ErrEmailTaken.Error())
	}
	if taken, err := s.store.ExistsByUsername(ctx, username); err != nil {
		return nil, internal(err)
	} else if taken {
		return nil, apperror.Conflict(userrepo.ErrUsernameTaken.Error())
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internal(err)
	}
	now := s.now()
	u := &entity.User{
		ID:              s.newID(),
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		FullName:        fullName,
		Gender:          gender,
		PreferredStyles: cleanList(in.PreferredStyles),
		IsVerified:      false,
		IsActive:        true,
		Role:            auth.RoleUser,
		LoginAttempts:   0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// the unique constraint still decides if a concurrent registration won the race
	if err := s.store.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrEmailTaken), errors.Is(err, userrepo.ErrUsernameTaken):
			return nil, apperror.Conflict(err.Error())
		default:
			return nil, internal(err)
		}
	}
	s.logger.Infow("account registered", "user_id", u.ID, "username", u.Username)
	return s.authResult(u, now)
}

// Login runs the credential check in a fixed order: lookup, active, lock,
// password. Lookup misses and wrong passwords produce the same failure.
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		identity = strings.TrimSpace(in.Email)
	}
	if identity == "" || in.Password == "" {
		return nil, apperror.InvalidCredentials()
	}
	now := s.now()

	u, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, internal(err)
	}
	if !u.IsActive {
		s.logger.Infow("login rejected: deactivated", "user_id", u.ID)
		return nil, apperror.AccountDeactivated()
	}
	if u.IsLocked(now) {
		s.logger.Infow("login rejected: locked", "user_id", u.ID, "locked_until", *u.LockedUntil)
		return nil, apperror.AccountLocked(*u.LockedUntil)
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		attempts, lockedUntil, err := s.store.IncrementLoginAttempts(ctx, u.ID, s.maxAttempts, now.Add(s.lockWindow), now)
		if err != nil {
			return nil, internal(err)
		}
		if lockedUntil != nil && attempts >= s.maxAttempts && now.Before(*lockedUntil) {
			s.logger.Warnw("account locked", "user_id", u.ID, "attempts", attempts, "locked_until", *lockedUntil)
		} else {
			s.logger.Infow("login failed", "user_id", u.ID, "attempts", attempts)
		}
		return nil, apperror.InvalidCredentials()
	}

	if err := s.store.RecordLogin(ctx, u.ID, now); err != nil {
		return nil, internal(err)
	}
	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.LastLogin = &now
	u.UpdatedAt = now

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if hash, err := s.hasher.Hash(in.Password); err != nil {
			s.logger.Warnw("password rehash failed", "user_id", u.ID, "err", err)
		} else if err := s.store.UpdatePassword(ctx, u.ID, hash, now); err != nil {
			s.logger.Warnw("password rehash not stored", "user_id", u.ID, "err", err)
		} else {
			s.logger.Infow("password rehashed", "user_id", u.ID)
		}
	}
	return s.authResult(u, now)
}

func (s *Service) authResult(u *entity.User, now time.Time) (*AuthResult, error) {
	tok, err := s.tokens.Issue(u.ID, u.Role, now)
	if err != nil {
		return nil, internal(err)
	}
	return &AuthResult{
		User:      u.Public(),
		Token:     tok.Value,
		TokenType: "bearer",
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

// GetMe returns the caller's own profile. Deactivated accounts read as missing.
func (s *Service) GetMe(ctx context.Context, id string) (*entity.MeProfile, error) {
	u, err := s.activeUser(ctx, id)
	if err != nil {
		return nil, err
	}
	me := u.Me()
	return &me, nil
}

// GetPublicProfile returns the public projection plus the owner's pin count.
func (s *Service) GetPublicProfile(ctx context.Context, id string) (*entity.PublicProfile, error) {
	u, err := s.activeUser(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	if s.pins != nil {
		n, err := s.pins.CountByUser(ctx, u.ID)
		if err != nil {
			return nil, internal(err)
		}
		p.TotalPins = &n
	}
	return &p, nil
}

// UpdateProfile applies a partial update. Absent fields are left alone; null
// clears optional fields and is rejected for required ones.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*entity.MeProfile, error) {
	var details []apperror.FieldError
	if in.FullName.Null {
		details = append(details, apperror.FieldError{Field: "full_name", Message: "cannot be null"})
	}
	if in.Gender.Null {
		details = append(details, apperror.FieldError{Field: "gender", Message: "cannot be null"})
	}
	if v, ok := in.FullName.Get(); ok && strings.TrimSpace(v) == "" {
		details = append(details, apperror.FieldError{Field: "full_name", Message: "field required"})
	}
	if v, ok := in.Gender.Get(); ok && !entity.Gender(v).Valid() {
		details = append(details, apperror.FieldError{Field: "gender", Message: "unknown gender"})
	}
	if len(details) > 0 {
		return nil, apperror.Validation(details...)
	}

	u, err := s.activeUser(ctx, id)
	if err != nil {
		return nil, err
	}
	changed := false
	if v, ok := in.FullName.Get(); ok {
		u.FullName = strings.TrimSpace(v)
		changed = true
	}
	if v, ok := in.Gender.Get(); ok {
		u.Gender = entity.Gender(v)
		changed = true
	}
	changed = in.Bio.ApplyNullable(&u.Bio) || changed
	changed = in.AvatarURL.ApplyNullable(&u.AvatarURL) || changed
	if in.PreferredStyles.Set {
		u.PreferredStyles = cleanList(in.PreferredStyles.Value)
		changed = true
	}
	if changed {
		u.UpdatedAt = s.now()
		if err := s.store.Update(ctx, u); err != nil {
			return nil, storeErr(err)
		}
	}
	me := u.Me()
	return &me, nil
}

// DeactivateSelf soft-deletes the caller's account.
func (s *Service) DeactivateSelf(ctx context.Context, id string) error {
	if _, err := s.activeUser(ctx, id); err != nil {
		return err
	}
	if err := s.store.SetActive(ctx, id, false, s.now()); err != nil {
		return storeErr(err)
	}
	s.logger.Infow("account deactivated", "user_id", id, "by", "self")
	return nil
}

// Unlock resets the failure counter and clears any lock.
func (s *Service) Unlock(ctx context.Context, adminID, id string) error {
	if err := s.store.UpdateLoginAttempts(ctx, id, 0, nil, s.now()); err != nil {
		return storeErr(err)
	}
	s.logger.Infow("account unlocked", "user_id", id, "by", adminID)
	return nil
}

func (s *Service) SetActive(ctx context.Context, adminID, id string, active bool) error {
	if err := s.store.SetActive(ctx, id, active, s.now()); err != nil {
		return storeErr(err)
	}
	if active {
		s.logger.Infow("account reactivated", "user_id", id, "by", adminID)
	} else {
		s.logger.Infow("account deactivated", "user_id", id, "by", adminID)
	}
	return nil
}

// ResolveIdentity maps a token subject onto its stored account. Missing and
// deactivated accounts yield auth.ErrUnknownAccount.
func (s *Service) ResolveIdentity(ctx context.Context, accountID string) (auth.Identity, error) {
	u, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return auth.Identity{}, auth.ErrUnknownAccount
		}
		return auth.Identity{}, err
	}
	if !u.IsActive {
		return auth.Identity{}, auth.ErrUnknownAccount
	}
	return auth.Identity{AccountID: u.ID, Role: u.Role}, nil
}

func (s *Service) activeUser(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if !u.IsActive {
		return nil, apperror.NotFound("User not found")
	}
	return u, nil
}

func storeErr(err error) error {
	if errors.Is(err, userrepo.ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	return internal(err)
}

func internal(err error) error {
	return apperror.Wrap(err, apperror.KindInternal, "Internal server error")
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
