package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/AlessandraU03/stylepin-api/internal/pin/entity"
)

func setupMockDB(t *testing.T) (*PinRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewPinRepo(sqlx.NewDb(db, "postgres")), mock, func() { _ = db.Close() }
}

var pinCols = []string{
	"id", "user_id", "image_url", "title", "description", "category", "styles", "occasions", "season",
	"brands", "price_range", "where_to_buy", "purchase_link", "likes_count", "saves_count", "comments_count",
	"views_count", "colors", "tags", "is_private", "created_at", "updated_at",
}

func TestListBuildsFilteredQuery(t *testing.T) {
	r, mock, cleanup := setupMockDB(t)
	defer cleanup()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE is_private = false AND user_id = $1 AND category = $2 AND EXISTS (SELECT 1 FROM users u WHERE u.id = pins.user_id AND u.is_active) ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`)).
		WithArgs("u-1", "calzado", 100, 5).
		WillReturnRows(sqlmock.NewRows(pinCols).AddRow(
			"p-1", "u-1", "https://img", "Boots", nil, "calzado", "{casual}", "{}", "invierno",
			"{Zara}", "500_1000", nil, nil, 1, 2, 3, 4, "{#000000}", "{winter,boots}", false, now, now,
		))

	pins, err := r.List(context.Background(), entity.Filter{UserID: "u-1", Category: entity.CategoryFootwear, Limit: 500, Offset: 5})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pins) != 1 || len(pins[0].Tags) != 2 || pins[0].ViewsCount != 4 || pins[0].Season != entity.SeasonWinter {
		t.Fatalf("unexpected pins %+v", pins)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestListOwnerIncludesPrivate(t *testing.T) {
	r, mock, cleanup := setupMockDB(t)
	defer cleanup()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM pins WHERE user_id = $1 AND EXISTS (SELECT 1 FROM users u WHERE u.id = pins.user_id AND u.is_active) ORDER BY`)).
		WithArgs("u-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(pinCols))

	if _, err := r.List(context.Background(), entity.Filter{UserID: "u-1", IncludePrivate: true}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestSearchEscapesPattern(t *testing.T) {
	r, mock, cleanup := setupMockDB(t)
	defer cleanup()
	mock.ExpectQuery(`ILIKE \$1(.|\n)*AND EXISTS \(SELECT 1 FROM users u WHERE u\.id = pins\.user_id AND u\.is_active\)`).
		WithArgs(`%50\%\_off%`, 20, 0).
		WillReturnRows(sqlmock.NewRows(pinCols))

	if _, err := r.Search(context.Background(), "50%_off", 0, 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestIncrementViewsMissingPin(t *testing.T) {
	r, mock, cleanup := setupMockDB(t)
	defer cleanup()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE pins SET views_count = views_count + 1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"views_count"}))

	if _, err := r.IncrementViews(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMissingPin(t *testing.T) {
	r, mock, cleanup := setupMockDB(t)
	defer cleanup()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM pins WHERE id=$1`)).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := r.Delete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoPaging(t *testing.T) {
	m := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_ = m.Create(ctx, &entity.Pin{ID: id, UserID: "u", Title: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	page, _ := m.List(ctx, entity.Filter{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "a" {
		t.Fatalf("unexpected page %+v", page)
	}
	empty, _ := m.List(ctx, entity.Filter{Offset: 10})
	if len(empty) != 0 {
		t.Fatalf("expected empty page")
	}
}
