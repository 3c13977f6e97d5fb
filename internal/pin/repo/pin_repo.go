package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AlessandraU03/stylepin-api/internal/pin/entity"
)

var ErrNotFound = errors.New("pin not found")

// PinRepo provides data access for the pins table using sqlx.
type PinRepo struct {
	db *sqlx.DB
}

func NewPinRepo(db *sqlx.DB) *PinRepo { return &PinRepo{db: db} }

// EnsureTable creates the pins table if not exists (idempotent). It must run
// after the users table exists.
func (r *PinRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS pins (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  image_url TEXT NOT NULL,
  title VARCHAR(200) NOT NULL,
  description TEXT,
  category TEXT NOT NULL,
  styles TEXT[] NOT NULL DEFAULT '{}',
  occasions TEXT[] NOT NULL DEFAULT '{}',
  season TEXT NOT NULL DEFAULT 'todo_el_ano',
  brands TEXT[] NOT NULL DEFAULT '{}',
  price_range TEXT NOT NULL DEFAULT 'bajo_500',
  where_to_buy TEXT,
  purchase_link TEXT,
  likes_count INT NOT NULL DEFAULT 0,
  saves_count INT NOT NULL DEFAULT 0,
  comments_count INT NOT NULL DEFAULT 0,
  views_count INT NOT NULL DEFAULT 0,
  colors TEXT[] NOT NULL DEFAULT '{}',
  tags TEXT[] NOT NULL DEFAULT '{}',
  is_private BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pins_user_id ON pins(user_id);
CREATE INDEX IF NOT EXISTS idx_pins_created_at ON pins(created_at DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const pinColumns = `id, user_id, image_url, title, description, category, styles, occasions, season,
	brands, price_range, where_to_buy, purchase_link, likes_count, saves_count, comments_count,
	views_count, colors, tags, is_private, created_at, updated_at`

type pinRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	ImageURL      string         `db:"image_url"`
	Title         string         `db:"title"`
	Description   *string        `db:"description"`
	Category      string         `db:"category"`
	Styles        pq.StringArray `db:"styles"`
	Occasions     pq.StringArray `db:"occasions"`
	Season        string         `db:"season"`
	Brands        pq.StringArray `db:"brands"`
	PriceRange    string         `db:"price_range"`
	WhereToBuy    *string        `db:"where_to_buy"`
	PurchaseLink  *string        `db:"purchase_link"`
	LikesCount    int            `db:"likes_count"`
	SavesCount    int            `db:"saves_count"`
	CommentsCount int            `db:"comments_count"`
	ViewsCount    int            `db:"views_count"`
	Colors        pq.StringArray `db:"colors"`
	Tags          pq.StringArray `db:"tags"`
	IsPrivate     bool           `db:"is_private"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (row *pinRow) toEntity() *entity.Pin {
	return &entity.Pin{
		ID:            row.ID,
		UserID:        row.UserID,
		ImageURL:      row.ImageURL,
		Title:         row.Title,
		Description:   row.Description,
		Category:      entity.Category(row.Category),
		Styles:        []string(row.Styles),
		Occasions:     []string(row.Occasions),
		Season:        entity.Season(row.Season),
		Brands:        []string(row.Brands),
		PriceRange:    entity.PriceRange(row.PriceRange),
		WhereToBuy:    row.WhereToBuy,
		PurchaseLink:  row.PurchaseLink,
		LikesCount:    row.LikesCount,
		SavesCount:    row.SavesCount,
		CommentsCount: row.CommentsCount,
		ViewsCount:    row.ViewsCount,
		Colors:        []string(row.Colors),
		Tags:          []string(row.Tags),
		IsPrivate:     row.IsPrivate,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func arr(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

// Create inserts a pin with zeroed counters.
func (r *PinRepo) Create(ctx context.Context, p *entity.Pin) error {
	const q = `INSERT INTO pins (id, user_id, image_url, title, description, category, styles, occasions, season,
		brands, price_range, where_to_buy, purchase_link, colors, tags, is_private, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.UserID, p.ImageURL, p.Title, p.Description, string(p.Category), arr(p.Styles), arr(p.Occasions),
		string(p.Season), arr(p.Brands), string(p.PriceRange), p.WhereToBuy, p.PurchaseLink, arr(p.Colors),
		arr(p.Tags), p.IsPrivate, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pin: %w", err)
	}
	return nil
}

func (r *PinRepo) GetByID(ctx context.Context, id string) (*entity.Pin, error) {
	var row pinRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+pinColumns+` FROM pins WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select pin: %w", err)
	}
	return row.toEntity(), nil
}

// activeOwner restricts rows to pins whose owner account is active.
const activeOwner = `EXISTS (SELECT 1 FROM users u WHERE u.id = pins.user_id AND u.is_active)`

// List pages through pins whose owner is active, newest first.
func (r *PinRepo) List(ctx context.Context, f entity.Filter) ([]*entity.Pin, error) {
	f = f.Normalize()
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludePrivate {
		where = append(where, "is_private = false")
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.Season != "" {
		add("season = $%d", string(f.Season))
	}
	where = append(where, activeOwner)
	q := `SELECT ` + pinColumns + ` FROM pins WHERE ` + strings.Join(where, " AND ")
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return r.selectPins(ctx, q, args...)
}

// Search matches public pins of active owners whose title, description or any
// tag contains query, case-insensitively.
func (r *PinRepo) Search(ctx context.Context, query string, limit, offset int) ([]*entity.Pin, error) {
	f := entity.Filter{Limit: limit, Offset: offset}.Normalize()
	const q = `SELECT ` + pinColumns + ` FROM pins
		WHERE is_private = false AND (
			title ILIKE $1 ESCAPE '\' OR description ILIKE $1 ESCAPE '\'
			OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE $1 ESCAPE '\')
		) AND ` + activeOwner + `
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	return r.selectPins(ctx, q, "%"+escapeLike(query)+"%", f.Limit, f.Offset)
}

func (r *PinRepo) selectPins(ctx context.Context, q string, args ...any) ([]*entity.Pin, error) {
	var rows []pinRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select pins: %w", err)
	}
	out := make([]*entity.Pin, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

// Update writes the owner-editable columns. Counters are untouched.
func (r *PinRepo) Update(ctx context.Context, p *entity.Pin) error {
	const q = `UPDATE pins SET title=$2, description=$3, category=$4, styles=$5, occasions=$6, season=$7,
		brands=$8, price_range=$9, where_to_buy=$10, purchase_link=$11, colors=$12, tags=$13, is_private=$14,
		updated_at=$15 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q,
		p.ID, p.Title, p.Description, string(p.Category), arr(p.Styles), arr(p.Occasions), string(p.Season),
		arr(p.Brands), string(p.PriceRange), p.WhereToBuy, p.PurchaseLink, arr(p.Colors), arr(p.Tags),
		p.IsPrivate, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update pin: %w", err)
	}
	return expectOne(res)
}

func (r *PinRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pins WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	return expectOne(res)
}

// IncrementViews bumps views_count in place and returns the new value.
func (r *PinRepo) IncrementViews(ctx context.Context, id string) (int, error) {
	var views int
	err := r.db.GetContext(ctx, &views, `UPDATE pins SET views_count = views_count + 1 WHERE id=$1 RETURNING views_count`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return views, nil
}

// CountByUser counts the user's public pins.
func (r *PinRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM pins WHERE user_id=$1 AND is_private = false`, userID); err != nil {
		return 0, fmt.Errorf("count pins: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
