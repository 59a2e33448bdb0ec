package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hamed0406/webping/internal/domain"
)

// Store is the volatile site registry. Sites are kept in insertion order and
// handed out as copies, so callers never alias the internal slice.
type Store struct {
	mu     sync.RWMutex
	sites  []domain.Site
	lastID domain.SiteID
}

func New(seed ...domain.Site) *Store {
	s := &Store{sites: make([]domain.Site, 0, len(seed))}
	for _, site := range seed {
		cp := site
		_ = s.Add(context.Background(), &cp)
	}
	return s
}

func (m *Store) List(ctx context.Context) ([]domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Site, len(m.sites))
	copy(out, m.sites)
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.SiteID) (domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.index(id)
	if i < 0 {
		return domain.Site{}, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	return m.sites[i], nil
}

// Add assigns max(existing ids)+1, never going below an id that was already
// handed out, so deleted ids are not reused.
func (m *Store) Add(ctx context.Context, s *domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.lastID
	for _, cur := range m.sites {
		if cur.ID > next {
			next = cur.ID
		}
	}
	next++
	s.ID = next
	m.lastID = next
	m.sites = append(m.sites, *s)
	return nil
}

func (m *Store) Update(ctx context.Context, id domain.SiteID, p domain.SitePatch) (domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return domain.Site{}, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
	}
	updated, err := m.sites[i].Apply(p)
	if err != nil {
		return domain.Site{}, err
	}
	m.sites[i] = updated
	return updated, nil
}

func (m *Store) Delete(ctx context.Context, id domain.SiteID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return false, nil
	}
	m.sites = append(m.sites[:i], m.sites[i+1:]...)
	return true, nil
}

// index must be called with mu held.
func (m *Store) index(id domain.SiteID) int {
	for i, s := range m.sites {
		if s.ID == id {
			return i
		}
	}
	return -1
}
