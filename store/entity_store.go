// Package store holds the normalized product table and the named id-lists
// that views project through it.
package store

import (
	"sync"

	"catalog-service/models"

	"go.uber.org/zap"
)

// View names an ordered id-list kept alongside the entity table.
type View string

const (
	ViewCurrentPage View = "current-page"
	ViewSearch      View = "search"
	ViewFeatured    View = "featured"
	ViewRecommended View = "recommended"
)

// EntityStore is the single owner of mapped products. Every product appears
// at most once; id-lists only reference ids. Reads return copies.
type EntityStore struct {
	mu       sync.RWMutex
	entities map[string]models.Product
	order    []string
	lists    map[View][]string
	version  uint64

	subMu  sync.Mutex
	subs   map[int]chan uint64
	nextID int

	log *zap.Logger
}

func NewEntityStore(log *zap.Logger) *EntityStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &EntityStore{
		entities: make(map[string]models.Product),
		lists:    make(map[View][]string),
		subs:     make(map[int]chan uint64),
		log:      log,
	}
}

// UpsertOne inserts p or replaces the stored entity with the same id.
func (s *EntityStore) UpsertOne(p models.Product) {
	s.UpsertMany([]models.Product{p})
}

// UpsertMany replaces whole entities; there is no field-level merge.
func (s *EntityStore) UpsertMany(products []models.Product) {
	if len(products) == 0 {
		return
	}
	s.mu.Lock()
	changed := false
	for _, p := range products {
		if p.ID == "" {
			s.log.Warn("Ignoring product without id", zap.String("name", p.Name))
			continue
		}
		if _, ok := s.entities[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.entities[p.ID] = p.Clone()
		changed = true
	}
	v := s.bumpLocked(changed)
	s.mu.Unlock()
	s.notify(v)
}

func (s *EntityStore) RemoveOne(id string) {
	s.RemoveMany([]string{id})
}

// RemoveMany deletes entities and strips their ids from every id-list.
func (s *EntityStore) RemoveMany(ids []string) {
	drop := toSet(ids)
	if len(drop) == 0 {
		return
	}
	s.mu.Lock()
	changed := false
	for id := range drop {
		if _, ok := s.entities[id]; ok {
			delete(s.entities, id)
			changed = true
		}
	}
	if changed {
		s.order = without(s.order, drop)
	}
	for view, list := range s.lists {
		pruned := without(list, drop)
		if len(pruned) != len(list) {
			s.lists[view] = pruned
			changed = true
		}
	}
	v := s.bumpLocked(changed)
	s.mu.Unlock()
	s.notify(v)
}

func (s *EntityStore) GetByID(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entities[id]
	if !ok {
		return models.Product{}, false
	}
	return p.Clone(), true
}

// GetAll returns every entity in first-insertion order.
func (s *EntityStore) GetAll() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id].Clone())
	}
	return out
}

func (s *EntityStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Version increases on every change.
func (s *EntityStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetList replaces the ids of view.
func (s *EntityStore) SetList(view View, ids []string) {
	s.mu.Lock()
	s.lists[view] = dedupe(nil, ids)
	v := s.bumpLocked(true)
	s.mu.Unlock()
	s.notify(v)
}

// AppendList adds ids to the end of view, skipping ids already listed.
func (s *EntityStore) AppendList(view View, ids []string) {
	s.mu.Lock()
	s.lists[view] = dedupe(s.lists[view], ids)
	v := s.bumpLocked(true)
	s.mu.Unlock()
	s.notify(v)
}

func (s *EntityStore) ClearList(view View) {
	s.SetList(view, nil)
}

// RemoveFromList drops ids from view only; the entities stay in the table.
func (s *EntityStore) RemoveFromList(view View, ids []string) {
	drop := toSet(ids)
	s.mu.Lock()
	list := s.lists[view]
	pruned := without(list, drop)
	changed := len(pruned) != len(list)
	s.lists[view] = pruned
	v := s.bumpLocked(changed)
	s.mu.Unlock()
	s.notify(v)
}

func (s *EntityStore) List(view View) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.lists[view]...)
}

// Resolve projects view through the table, in list order. Ids with no entity
// are skipped.
func (s *EntityStore) Resolve(view View) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(s.lists[view])
}

// ResolveIDs is Resolve for an arbitrary id slice.
func (s *EntityStore) ResolveIDs(ids []string) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(ids)
}

func (s *EntityStore) resolveLocked(ids []string) []models.Product {
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.entities[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// MissingIDs returns the requested ids that have no usable entity: absent, or
// present only as a degraded fallback. Order follows ids, duplicates and
// empty ids are dropped.
func (s *EntityStore) MissingIDs(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.entities[id]; !ok || p.Degraded {
			missing = append(missing, id)
		}
	}
	return missing
}

// Subscribe returns a channel that receives the store version after changes.
// Notifications coalesce: a slow reader sees only the latest version.
func (s *EntityStore) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *EntityStore) bumpLocked(changed bool) uint64 {
	if !changed {
		return 0
	}
	s.version++
	return s.version
}

func (s *EntityStore) notify(version uint64) {
	if version == 0 {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- version:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- version:
			default:
			}
		}
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

func without(list []string, drop map[string]bool) []string {
	out := make([]string, 0, len(list))
	for _, id := range list {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, cap(out))
	for _, list := range [][]string{base, extra} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
