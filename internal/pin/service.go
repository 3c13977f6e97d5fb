package pin

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/pin/entity"
	pinrepo "github.com/AlessandraU03/stylepin-api/internal/pin/repo"
	userentity "github.com/AlessandraU03/stylepin-api/internal/user/entity"
	userrepo "github.com/AlessandraU03/stylepin-api/internal/user/repo"
	"github.com/AlessandraU03/stylepin-api/pkg/patch"
)

// Store is the persistence contract for pins. Not-found is pinrepo.ErrNotFound.
type Store interface {
	Create(ctx context.Context, p *entity.Pin) error
	GetByID(ctx context.Context, id string) (*entity.Pin, error)
	List(ctx context.Context, f entity.Filter) ([]*entity.Pin, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*entity.Pin, error)
	Update(ctx context.Context, p *entity.Pin) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) (int, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Owners resolves pin owners for display.
type Owners interface {
	GetByID(ctx context.Context, id string) (*userentity.User, error)
}

type Service struct {
	store  Store
	owners Owners
	newID  func() string
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewService(store Store, owners Owners, newID func() string, now func() time.Time, logger *zap.SugaredLogger) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, owners: owners, newID: newID, now: now, logger: logger}
}

const enumCategory = "outfit_completo prenda_individual accesorio calzado"

type CreateInput struct {
	ImageURL     string   `json:"image_url" validate:"required,http_url,max=500"`
	Title        string   `json:"title" validate:"required,notblank,max=200"`
	Description  *string  `json:"description" validate:"omitempty,max=2000"`
	Category     string   `json:"category" validate:"required,oneof=outfit_completo prenda_individual accesorio calzado"`
	Styles       []string `json:"styles" validate:"omitempty,max=20,dive,notblank,max=50"`
	Occasions    []string `json:"occasions" validate:"omitempty,max=20,dive,notblank,max=50"`
	Season       string   `json:"season" validate:"omitempty,oneof=primavera verano otono invierno todo_el_ano"`
	Brands       []string `json:"brands" validate:"omitempty,max=20,dive,notblank,max=100"`
	PriceRange   string   `json:"price_range" validate:"omitempty,oneof=bajo_500 500_1000 1000_2000 mas_2000"`
	WhereToBuy   *string  `json:"where_to_buy" validate:"omitempty,max=200"`
	PurchaseLink *string  `json:"purchase_link" validate:"omitempty,http_url,max=500"`
	Colors       []string `json:"colors" validate:"omitempty,max=10,dive,hexcolor"`
	Tags         []string `json:"tags" validate:"omitempty,max=30,dive,notblank,max=50"`
	IsPrivate    bool     `json:"is_private"`
}

type UpdateInput struct {
	Title        patch.Field[string]   `json:"title" validate:"omitempty,notblank,max=200"`
	Description  patch.Field[string]   `json:"description" validate:"omitempty,max=2000"`
	Category     patch.Field[string]   `json:"category" validate:"omitempty,oneof=outfit_completo prenda_individual accesorio calzado"`
	Styles       patch.Field[[]string] `json:"styles" validate:"omitempty,max=20,dive,notblank,max=50"`
	Occasions    patch.Field[[]string] `json:"occasions" validate:"omitempty,max=20,dive,notblank,max=50"`
	Season       patch.Field[string]   `json:"season" validate:"omitempty,oneof=primavera verano otono invierno todo_el_ano"`
	Brands       patch.Field[[]string] `json:"brands" validate:"omitempty,max=20,dive,notblank,max=100"`
	PriceRange   patch.Field[string]   `json:"price_range" validate:"omitempty,oneof=bajo_500 500_1000 1000_2000 mas_2000"`
	WhereToBuy   patch.Field[string]   `json:"where_to_buy" validate:"omitempty,max=200"`
	PurchaseLink patch.Field[string]   `json:"purchase_link" validate:"omitempty,http_url,max=500"`
	Colors       patch.Field[[]string] `json:"colors" validate:"omitempty,max=10,dive,hexcolor"`
	Tags         patch.Field[[]string] `json:"tags" validate:"omitempty,max=30,dive,notblank,max=50"`
	IsPrivate    patch.Field[bool]     `json:"is_private"`
}

// Create stores a new pin owned by the caller.
func (s *Service) Create(ctx context.Context, caller auth.Identity, in CreateInput) (*entity.Detail, error) {
	title := strings.TrimSpace(in.Title)
	category := entity.Category(in.Category)
	season := entity.DefaultSeason
	if in.Season != "" {
		season = entity.Season(in.Season)
	}
	price := entity.DefaultPriceRange
	if in.PriceRange != "" {
		price = entity.PriceRange(in.PriceRange)
	}

	var details []apperror.FieldError
	if title == "" {
		details = append(details, apperror.FieldError{Field: "title", Message: "field required"})
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		details = append(details, apperror.FieldError{Field: "image_url", Message: "field required"})
	}
	if !category.Valid() {
		details = append(details, apperror.FieldError{Field: "category", Message: "must be one of: " + strings.ReplaceAll(enumCategory, " ", ", ")})
	}
	if !season.Valid() {
		details = append(details, apperror.FieldError{Field: "season", Message: "unknown season"})
	}
	if !price.Valid() {
		details = append(details, apperror.FieldError{Field: "price_range", Message: "unknown price range"})
	}
	if len(details) > 0 {
		return nil, apperror.Validation(details...)
	}

	owner, err := s.owner(ctx, caller.AccountID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p := &entity.Pin{
		ID:           s.newID(),
		UserID:       caller.AccountID,
		ImageURL:     strings.TrimSpace(in.ImageURL),
		Title:        title,
		Description:  in.Description,
		Category:     category,
		Styles:       cleanList(in.Styles),
		Occasions:    cleanList(in.Occasions),
		Season:       season,
		Brands:       cleanList(in.Brands),
		PriceRange:   price,
		WhereToBuy:   in.WhereToBuy,
		PurchaseLink: in.PurchaseLink,
		Colors:       cleanList(in.Colors),
		Tags:         cleanList(in.Tags),
		IsPrivate:    in.IsPrivate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, internal(err)
	}
	s.logger.Debugw("pin created", "pin_id", p.ID, "user_id", p.UserID, "private", p.IsPrivate)
	d := p.Detail(owner)
	return &d, nil
}

// Get returns a pin and counts the view. Private pins read as missing to
// everyone but their owner.
func (s *Service) Get(ctx context.Context, viewer *auth.Identity, id string) (*entity.Detail, error) {
	p, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("Pin not found")
		}
		return nil, err
	}
	views, err := s.store.IncrementViews(ctx, p.ID)
	if err != nil {
		return nil, pinErr(err)
	}
	p.ViewsCount = views
	d := p.Detail(owner)
	return &d, nil
}

// List returns the public feed. Pins whose owner is missing or deactivated
// are skipped.
func (s *Service) List(ctx context.Context, f entity.Filter) ([]entity.Summary, error) {
	f.IncludePrivate = false
	pins, err := s.store.List(ctx, f)
	if err != nil {
		return nil, internal(err)
	}
	return s.summaries(ctx, pins)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]entity.Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Field("q", "field required")
	}
	pins, err := s.store.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, internal(err)
	}
	return s.summaries(ctx, pins)
}

// ListMine returns the caller's pins, private ones included.
func (s *Service) ListMine(ctx context.Context, caller auth.Identity, limit, offset int) ([]entity.Summary, error) {
	pins, err := s.store.List(ctx, entity.Filter{UserID: caller.AccountID, IncludePrivate: true, Limit: limit, Offset: offset})
	if err != nil {
		return nil, internal(err)
	}
	return s.summaries(ctx, pins)
}

// Update applies an owner-only partial update. The owner must still be active
// before anything is written.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, in UpdateInput) (*entity.Detail, error) {
	if err := checkUpdate(in); err != nil {
		return nil, err
	}
	p, err := s.visible(ctx, &caller, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckOwner(caller, p.UserID); err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	if v, ok := in.Title.Get(); ok {
		p.Title = strings.TrimSpace(v)
	}
	in.Description.ApplyNullable(&p.Description)
	if v, ok := in.Category.Get(); ok {
		p.Category = entity.Category(v)
	}
	if v, ok := in.Season.Get(); ok {
		p.Season = entity.Season(v)
	}
	if v, ok := in.PriceRange.Get(); ok {
		p.PriceRange = entity.PriceRange(v)
	}
	in.WhereToBuy.ApplyNullable(&p.WhereToBuy)
	in.PurchaseLink.ApplyNullable(&p.PurchaseLink)
	for _, l := range []struct {
		f   patch.Field[[]string]
		dst *[]string
	}{
		{in.Styles, &p.Styles},
		{in.Occasions, &p.Occasions},
		{in.Brands, &p.Brands},
		{in.Colors, &p.Colors},
		{in.Tags, &p.Tags},
	} {
		if l.f.Set {
			*l.dst = cleanList(l.f.Value)
		}
	}
	in.IsPrivate.Apply(&p.IsPrivate)
	p.UpdatedAt = s.now()

	if err := s.store.Update(ctx, p); err != nil {
		return nil, pinErr(err)
	}
	d := p.Detail(owner)
	return &d, nil
}

// Delete removes the caller's pin. Deactivated owners cannot delete.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id string) error {
	p, err := s.visible(ctx, &caller, id)
	if err != nil {
		return err
	}
	if err := auth.CheckOwner(caller, p.UserID); err != nil {
		return err
	}
	if _, err := s.owner(ctx, p.UserID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, p.ID); err != nil {
		return pinErr(err)
	}
	s.logger.Debugw("pin deleted", "pin_id", p.ID, "user_id", caller.AccountID)
	return nil
}

// CountByUser reports how many public pins an account owns.
func (s *Service) CountByUser(ctx context.Context, userID string) (int, error) {
	return s.store.CountByUser(ctx, userID)
}

func checkUpdate(in UpdateInput) error {
	var details []apperror.FieldError
	for _, f := range []struct {
		name string
		null bool
	}{
		{"title", in.Title.Null},
		{"category", in.Category.Null},
		{"season", in.Season.Null},
		{"price_range", in.PriceRange.Null},
		{"is_private", in.IsPrivate.Null},
	} {
		if f.null {
			details = append(details, apperror.FieldError{Field: f.name, Message: "cannot be null"})
		}
	}
	if v, ok := in.Title.Get(); ok && strings.TrimSpace(v) == "" {
		details = append(details, apperror.FieldError{Field: "title", Message: "field required"})
	}
	if v, ok := in.Category.Get(); ok && !entity.Category(v).Valid() {
		details = append(details, apperror.FieldError{Field: "category", Message: "unknown category"})
	}
	if v, ok := in.Season.Get(); ok && !entity.Season(v).Valid() {
		details = append(details, apperror.FieldError{Field: "season", Message: "unknown season"})
	}
	if v, ok := in.PriceRange.Get(); ok && !entity.PriceRange(v).Valid() {
		details = append(details, apperror.FieldError{Field: "price_range", Message: "unknown price range"})
	}
	if len(details) > 0 {
		return apperror.Validation(details...)
	}
	return nil
}

func (s *Service) visible(ctx context.Context, viewer *auth.Identity, id string) (*entity.Pin, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, pinErr(err)
	}
	if p.IsPrivate && (viewer == nil || viewer.AccountID != p.UserID) {
		return nil, apperror.NotFound("Pin not found")
	}
	return p, nil
}

func (s *Service) owner(ctx context.Context, id string) (entity.Owner, error) {
	u, err := s.owners.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return entity.Owner{}, apperror.NotFound("User not found")
		}
		return entity.Owner{}, internal(err)
	}
	if !u.IsActive {
		return entity.Owner{}, apperror.NotFound("User not found")
	}
	return entity.Owner{Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL, IsVerified: u.IsVerified}, nil
}

func (s *Service) summaries(ctx context.Context, pins []*entity.Pin) ([]entity.Summary, error) {
	out := make([]entity.Summary, 0, len(pins))
	cache := map[string]*entity.Owner{}
	for _, p := range pins {
		o, seen := cache[p.UserID]
		if !seen {
			owner, err := s.owner(ctx, p.UserID)
			switch {
			case err == nil:
				o = &owner
			case errors.Is(err, apperror.ErrNotFound):
				o = nil
			default:
				return nil, err
			}
			cache[p.UserID] = o
		}
		if o == nil {
			continue
		}
		out = append(out, p.Summary(*o))
	}
	return out, nil
}

func pinErr(err error) error {
	if errors.Is(err, pinrepo.ErrNotFound) {
		return apperror.NotFound("Pin not found")
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
