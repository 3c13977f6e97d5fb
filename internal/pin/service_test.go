package pin

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/pin/entity"
	pinrepo "github.com/AlessandraU03/stylepin-api/internal/pin/repo"
	userentity "github.com/AlessandraU03/stylepin-api/internal/user/entity"
	userrepo "github.com/AlessandraU03/stylepin-api/internal/user/repo"
	"github.com/AlessandraU03/stylepin-api/pkg/patch"
)

var (
	maria = auth.Identity{AccountID: "u-maria", Role: auth.RoleUser}
	ana   = auth.Identity{AccountID: "u-ana", Role: auth.RoleUser}
)

func kindOf(err error) apperror.Kind {
	if err == nil {
		return ""
	}
	return apperror.From(err).Kind
}

type fixture struct {
	svc   *Service
	pins  *pinrepo.MemoryRepo
	users *userrepo.MemoryRepo
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users: userrepo.NewMemoryRepo(),
		now:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, u := range []*userentity.User{
		{ID: maria.AccountID, Username: "maria", Email: "maria@x.io", FullName: "Maria", IsActive: true, Role: auth.RoleUser},
		{ID: ana.AccountID, Username: "ana", Email: "ana@x.io", FullName: "Ana", IsActive: true, Role: auth.RoleUser},
	} {
		if err := f.users.Create(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	f.pins = pinrepo.NewMemoryRepo().WithOwners(f.users)
	seq := 0
	f.svc = NewService(f.pins, f.users, func() string {
		seq++
		return fmt.Sprintf("pin-%03d", seq)
	}, func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}, nil)
	return f
}

func (f *fixture) create(t *testing.T, owner auth.Identity, title string, private bool) *entity.Detail {
	t.Helper()
	d, err := f.svc.Create(context.Background(), owner, CreateInput{
		ImageURL:  "https://img.example.com/" + title + ".jpg",
		Title:     "  " + title + "  ",
		Category:  string(entity.CategoryOutfit),
		Tags:      []string{"weekend", " "},
		IsPrivate: private,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return d
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, maria, "Look casual", false)
	if d.Title != "Look casual" || d.Season != entity.SeasonAllYear || d.PriceRange != entity.PriceUnder500 {
		t.Fatalf("unexpected defaults %+v", d)
	}
	if len(d.Tags) != 1 || d.UserUsername != "maria" || d.ViewsCount != 0 {
		t.Fatalf("unexpected pin %+v", d)
	}
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), maria, CreateInput{ImageURL: "https://x", Title: "t", Category: "hat"})
	if kindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPrivatePinVisibleOnlyToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	private := f.create(t, maria, "secret", true)

	if _, err := f.svc.Get(ctx, nil, private.ID); kindOf(err) != apperror.KindNotFound {
		t.Fatalf("anonymous: expected not found, got %v", err)
	}
	if _, err := f.svc.Get(ctx, &ana, private.ID); kindOf(err) != apperror.KindNotFound {
		t.Fatalf("other user: expected not found, got %v", err)
	}
	d, err := f.svc.Get(ctx, &maria, private.ID)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if !d.IsPrivate || d.ViewsCount != 1 {
		t.Fatalf("unexpected detail %+v", d)
	}

	feed, _ := f.svc.List(ctx, entity.Filter{})
	if len(feed) != 0 {
		t.Fatalf("private pin leaked into feed: %+v", feed)
	}
	mine, _ := f.svc.ListMine(ctx, maria, 0, 0)
	if len(mine) != 1 || !mine[0].IsPrivate {
		t.Fatalf("owner listing must include private pins: %+v", mine)
	}
}

func TestGetCountsViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, maria, "look", false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.pins.IncrementViews(ctx, p.ID)
		}()
	}
	wg.Wait()

	d, err := f.svc.Get(ctx, nil, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.ViewsCount != 21 {
		t.Fatalf("expected 21 views, got %d", d.ViewsCount)
	}
}

func TestUpdateOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, maria, "look", false)

	if _, err := f.svc.Update(ctx, ana, p.ID, UpdateInput{Title: patch.Of("mine now")}); kindOf(err) != apperror.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.svc.Delete(ctx, ana, p.ID); kindOf(err) != apperror.KindForbidden {
		t.Fatalf("expected forbidden delete, got %v", err)
	}

	d, err := f.svc.Update(ctx, maria, p.ID, UpdateInput{
		Title:       patch.Of("new title"),
		Description: patch.Of("desc"),
		Season:      patch.Of(string(entity.SeasonWinter)),
		Tags:        patch.Null[[]string](),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if d.Title != "new title" || d.Description == nil || d.Season != entity.SeasonWinter || len(d.Tags) != 0 {
		t.Fatalf("update not applied: %+v", d)
	}
	if d.Category != entity.CategoryOutfit {
		t.Fatalf("absent field changed: %+v", d)
	}

	d, err = f.svc.Update(ctx, maria, p.ID, UpdateInput{Description: patch.Null[string]()})
	if err != nil || d.Description != nil {
		t.Fatalf("null must clear description: %+v %v", d, err)
	}
	if _, err := f.svc.Update(ctx, maria, p.ID, UpdateInput{Title: patch.Null[string]()}); kindOf(err) != apperror.KindValidation {
		t.Fatalf("null title must be rejected, got %v", err)
	}

	if err := f.svc.Delete(ctx, maria, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, &maria, p.ID); kindOf(err) != apperror.KindNotFound {
		t.Fatalf("expected deleted pin to be gone, got %v", err)
	}
}

func TestDeactivatedOwnerCannotWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, maria, "look", false)
	before, _ := f.pins.GetByID(ctx, p.ID)
	_ = f.users.SetActive(ctx, maria.AccountID, false, f.now)

	if _, err := f.svc.Update(ctx, maria, p.ID, UpdateInput{Title: patch.Of("changed")}); kindOf(err) != apperror.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	after, err := f.pins.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Title != "look" || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("rejected update must not be stored: %+v", after)
	}

	if err := f.svc.Delete(ctx, maria, p.ID); kindOf(err) != apperror.KindNotFound {
		t.Fatalf("expected not found delete, got %v", err)
	}
	if _, err := f.pins.GetByID(ctx, p.ID); err != nil {
		t.Fatalf("rejected delete must keep the pin: %v", err)
	}
}

func TestUpdateKeepsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, maria, "look", false)
	_, _ = f.pins.IncrementViews(ctx, p.ID)

	if _, err := f.svc.Update(ctx, maria, p.ID, UpdateInput{IsPrivate: patch.Of(true)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	stored, _ := f.pins.GetByID(ctx, p.ID)
	if stored.ViewsCount != 1 || !stored.IsPrivate {
		t.Fatalf("unexpected stored pin %+v", stored)
	}
}

func TestFeedFiltersAndSkipsInactiveOwners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, maria, "first", false)
	f.create(t, ana, "second", false)
	last := f.create(t, maria, "third", false)

	feed, err := f.svc.List(ctx, entity.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(feed) != 2 || feed[0].ID != last.ID {
		t.Fatalf("expected newest first, got %+v", feed)
	}

	byUser, _ := f.svc.List(ctx, entity.Filter{UserID: ana.AccountID})
	if len(byUser) != 1 || byUser[0].UserUsername != "ana" {
		t.Fatalf("unexpected user filter result %+v", byUser)
	}

	_ = f.users.SetActive(ctx, maria.AccountID, false, f.now)
	feed, _ = f.svc.List(ctx, entity.Filter{})
	if len(feed) != 1 || feed[0].UserID != ana.AccountID {
		t.Fatalf("inactive owner's pins must be skipped, got %+v", feed)
	}
}

func TestFeedPagesStayFullWithInactiveOwners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var anas []string
	for i := 0; i < 3; i++ {
		anas = append(anas, f.create(t, ana, fmt.Sprintf("ana-%d", i), false).ID)
		f.create(t, maria, fmt.Sprintf("maria-%d", i), false)
	}
	_ = f.users.SetActive(ctx, maria.AccountID, false, f.now)

	first, err := f.svc.List(ctx, entity.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	second, _ := f.svc.List(ctx, entity.Filter{Limit: 2, Offset: 2})
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("expected pages of 2 and 1, got %d and %d", len(first), len(second))
	}
	if first[0].ID != anas[2] || first[1].ID != anas[1] || second[0].ID != anas[0] {
		t.Fatalf("unexpected order %+v %+v", first, second)
	}

	found, _ := f.svc.Search(ctx, "maria", 0, 0)
	if len(found) != 0 {
		t.Fatalf("search must skip inactive owners, got %+v", found)
	}
}

func TestSearchMatchesTitleDescriptionAndTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, maria, "Summer dress", false)
	f.create(t, ana, "Hidden summer", true)
	f.create(t, ana, "Boots", false)

	out, err := f.svc.Search(ctx, "SUMMER", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Summer dress" {
		t.Fatalf("unexpected search result %+v", out)
	}
	byTag, _ := f.svc.Search(ctx, "weekend", 0, 0)
	if len(byTag) != 2 {
		t.Fatalf("expected tag matches on public pins, got %d", len(byTag))
	}
	if _, err := f.svc.Search(ctx, "  ", 0, 0); kindOf(err) != apperror.KindValidation {
		t.Fatalf("blank query must be rejected, got %v", err)
	}
}

func TestCountByUserCountsPublicPins(t *testing.T) {
	f := newFixture(t)
	f.create(t, maria, "a", false)
	f.create(t, maria, "b", true)
	n, err := f.svc.CountByUser(context.Background(), maria.AccountID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 public pin, got %d %v", n, err)
	}
}
