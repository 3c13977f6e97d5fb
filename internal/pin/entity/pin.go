package entity

import "time"

type Category string

const (
	CategoryOutfit    Category = "outfit_completo"
	CategoryGarment   Category = "prenda_individual"
	CategoryAccessory Category = "accesorio"
	CategoryFootwear  Category = "calzado"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryOutfit, CategoryGarment, CategoryAccessory, CategoryFootwear:
		return true
	}
	return false
}

type Season string

const (
	SeasonSpring  Season = "primavera"
	SeasonSummer  Season = "verano"
	SeasonAutumn  Season = "otono"
	SeasonWinter  Season = "invierno"
	SeasonAllYear Season = "todo_el_ano"
	DefaultSeason        = SeasonAllYear
)

func (s Season) Valid() bool {
	switch s {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter, SeasonAllYear:
		return true
	}
	return false
}

type PriceRange string

const (
	PriceUnder500     PriceRange = "bajo_500"
	Price500To1000    PriceRange = "500_1000"
	Price1000To2000   PriceRange = "1000_2000"
	PriceOver2000     PriceRange = "mas_2000"
	DefaultPriceRange            = PriceUnder500
)

func (p PriceRange) Valid() bool {
	switch p {
	case PriceUnder500, Price500To1000, Price1000To2000, PriceOver2000:
		return true
	}
	return false
}

// Pin is a fashion post. The counters are maintained by the store and are
// never taken from client input.
type Pin struct {
	ID            string
	UserID        string
	ImageURL      string
	Title         string
	Description   *string
	Category      Category
	Styles        []string
	Occasions     []string
	Season        Season
	Brands        []string
	PriceRange    PriceRange
	WhereToBuy    *string
	PurchaseLink  *string
	LikesCount    int
	SavesCount    int
	CommentsCount int
	ViewsCount    int
	Colors        []string
	Tags          []string
	IsPrivate     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Pin) Clone() *Pin {
	c := *p
	c.Styles = append([]string(nil), p.Styles...)
	c.Occasions = append([]string(nil), p.Occasions...)
	c.Brands = append([]string(nil), p.Brands...)
	c.Colors = append([]string(nil), p.Colors...)
	c.Tags = append([]string(nil), p.Tags...)
	if p.Description != nil {
		v := *p.Description
		c.Description = &v
	}
	if p.WhereToBuy != nil {
		v := *p.WhereToBuy
		c.WhereToBuy = &v
	}
	if p.PurchaseLink != nil {
		v := *p.PurchaseLink
		c.PurchaseLink = &v
	}
	return &c
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter selects pins for list queries. Private pins are only included when
// IncludePrivate is set, which callers do for the owner's own listing.
type Filter struct {
	UserID         string
	Category       Category
	Season         Season
	IncludePrivate bool
	Limit          int
	Offset         int
}

// Normalize clamps paging to the accepted range.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Owner is the slice of the owning account shown next to a pin.
type Owner struct {
	Username   string
	FullName   string
	AvatarURL  *string
	IsVerified bool
}

// Summary is the feed projection.
type Summary struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	UserUsername  string    `json:"user_username"`
	UserAvatarURL *string   `json:"user_avatar_url"`
	ImageURL      string    `json:"image_url"`
	Title         string    `json:"title"`
	Category      Category  `json:"category"`
	LikesCount    int       `json:"likes_count"`
	SavesCount    int       `json:"saves_count"`
	IsPrivate     bool      `json:"is_private"`
	CreatedAt     time.Time `json:"created_at"`
}

// Detail is the full pin view.
type Detail struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	UserUsername   string     `json:"user_username"`
	UserFullName   string     `json:"user_full_name"`
	UserAvatarURL  *string    `json:"user_avatar_url"`
	UserIsVerified bool       `json:"user_is_verified"`
	ImageURL       string     `json:"image_url"`
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	Category       Category   `json:"category"`
	Styles         []string   `json:"styles"`
	Occasions      []string   `json:"occasions"`
	Season         Season     `json:"season"`
	Brands         []string   `json:"brands"`
	PriceRange     PriceRange `json:"price_range"`
	WhereToBuy     *string    `json:"where_to_buy"`
	PurchaseLink   *string    `json:"purchase_link"`
	LikesCount     int        `json:"likes_count"`
	SavesCount     int        `json:"saves_count"`
	CommentsCount  int        `json:"comments_count"`
	ViewsCount     int        `json:"views_count"`
	Colors         []string   `json:"colors"`
	Tags           []string   `json:"tags"`
	IsPrivate      bool       `json:"is_private"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (p *Pin) Summary(o Owner) Summary {
	return Summary{
		ID:            p.ID,
		UserID:        p.UserID,
		UserUsername:  o.Username,
		UserAvatarURL: o.AvatarURL,
		ImageURL:      p.ImageURL,
		Title:         p.Title,
		Category:      p.Category,
		LikesCount:    p.LikesCount,
		SavesCount:    p.SavesCount,
		IsPrivate:     p.IsPrivate,
		CreatedAt:     p.CreatedAt,
	}
}

func (p *Pin) Detail(o Owner) Detail {
	return Detail{
		ID:             p.ID,
		UserID:         p.UserID,
		UserUsername:   o.Username,
		UserFullName:   o.FullName,
		UserAvatarURL:  o.AvatarURL,
		UserIsVerified: o.IsVerified,
		ImageURL:       p.ImageURL,
		Title:          p.Title,
		Description:    p.Description,
		Category:       p.Category,
		Styles:         orEmpty(p.Styles),
		Occasions:      orEmpty(p.Occasions),
		Season:         p.Season,
		Brands:         orEmpty(p.Brands),
		PriceRange:     p.PriceRange,
		WhereToBuy:     p.WhereToBuy,
		PurchaseLink:   p.PurchaseLink,
		LikesCount:     p.LikesCount,
		SavesCount:     p.SavesCount,
		CommentsCount:  p.CommentsCount,
		ViewsCount:     p.ViewsCount,
		Colors:         orEmpty(p.Colors),
		Tags:           orEmpty(p.Tags),
		IsPrivate:      p.IsPrivate,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
