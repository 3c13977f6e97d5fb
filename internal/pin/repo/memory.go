package repo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/AlessandraU03/stylepin-api/internal/pin/entity"
)

// ActiveOwners reports whether an account may appear in listings.
type ActiveOwners interface {
	IsActive(userID string) bool
}

// MemoryRepo is an in-process pin store with the same contract as PinRepo.
type MemoryRepo struct {
	mu     sync.Mutex
	pins   map[string]*entity.Pin
	owners ActiveOwners
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{pins: map[string]*entity.Pin{}}
}

// WithOwners makes List and Search skip pins of inactive owners before
// paging, as the owner join does in PinRepo.
func (m *MemoryRepo) WithOwners(o ActiveOwners) *MemoryRepo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners = o
	return m
}

func (m *MemoryRepo) Create(ctx context.Context, p *entity.Pin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := p.Clone()
	c.LikesCount, c.SavesCount, c.CommentsCount, c.ViewsCount = 0, 0, 0, 0
	m.pins[c.ID] = c
	return nil
}

func (m *MemoryRepo) GetByID(ctx context.Context, id string) (*entity.Pin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryRepo) List(ctx context.Context, f entity.Filter) ([]*entity.Pin, error) {
	f = f.Normalize()
	return m.collect(ctx, f.Limit, f.Offset, func(p *entity.Pin) bool {
		switch {
		case !f.IncludePrivate && p.IsPrivate:
			return false
		case f.UserID != "" && p.UserID != f.UserID:
			return false
		case f.Category != "" && p.Category != f.Category:
			return false
		case f.Season != "" && p.Season != f.Season:
			return false
		}
		return true
	})
}

func (m *MemoryRepo) Search(ctx context.Context, query string, limit, offset int) ([]*entity.Pin, error) {
	f := entity.Filter{Limit: limit, Offset: offset}.Normalize()
	needle := strings.ToLower(query)
	return m.collect(ctx, f.Limit, f.Offset, func(p *entity.Pin) bool {
		if p.IsPrivate {
			return false
		}
		if strings.Contains(strings.ToLower(p.Title), needle) {
			return true
		}
		if p.Description != nil && strings.Contains(strings.ToLower(*p.Description), needle) {
			return true
		}
		for _, t := range p.Tags {
			if strings.Contains(strings.ToLower(t), needle) {
				return true
			}
		}
		return false
	})
}

func (m *MemoryRepo) collect(ctx context.Context, limit, offset int, keep func(*entity.Pin) bool) ([]*entity.Pin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*entity.Pin
	for _, p := range m.pins {
		if m.owners != nil && !m.owners.IsActive(p.UserID) {
			continue
		}
		if keep(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if offset >= len(matched) {
		return []*entity.Pin{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*entity.Pin, len(matched))
	for i, p := range matched {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *MemoryRepo) Update(ctx context.Context, p *entity.Pin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.pins[p.ID]
	if !ok {
		return ErrNotFound
	}
	c := p.Clone()
	c.UserID, c.ImageURL, c.CreatedAt = cur.UserID, cur.ImageURL, cur.CreatedAt
	c.LikesCount, c.SavesCount, c.CommentsCount, c.ViewsCount = cur.LikesCount, cur.SavesCount, cur.CommentsCount, cur.ViewsCount
	m.pins[p.ID] = c
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pins[id]; !ok {
		return ErrNotFound
	}
	delete(m.pins, id)
	return nil
}

func (m *MemoryRepo) IncrementViews(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.ViewsCount++
	return p.ViewsCount, nil
}

func (m *MemoryRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pins {
		if p.UserID == userID && !p.IsPrivate {
			n++
		}
	}
	return n, nil
}
