package region

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the authoritative in-memory region set for one open layout.
// Every mutation validates first and either commits fully or leaves the
// store untouched.
type Store struct {
	mu       sync.RWMutex
	layoutID string
	regions  map[string]Region
	now      func() time.Time
}

// NewStore creates an empty store for layoutID.
func NewStore(layoutID string) *Store {
	return &Store{
		layoutID: layoutID,
		regions:  make(map[string]Region),
		now:      time.Now,
	}
}

// LayoutID returns the layout this store belongs to.
func (s *Store) LayoutID() string {
	return s.layoutID
}

// Add inserts a new region.
func (s *Store) Add(r Region) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.regions[r.ID]; ok && !existing.Deleted() {
		return Region{}, ErrDuplicateRegion
	}

	candidate := r.Clone()
	candidate.LayoutID = s.layoutID
	candidate.DeletedAt = nil
	now := s.now()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	if err := s.check(candidate); err != nil {
		return Region{}, err
	}

	s.regions[candidate.ID] = candidate
	return candidate.Clone(), nil
}

// Update applies a partial change to a live region.
func (s *Store) Update(id string, p Patch) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.regions[id]
	if !ok || current.Deleted() {
		return Region{}, ErrRegionNotFound
	}

	candidate := p.Apply(current)
	candidate.UpdatedAt = s.now()
	if err := s.check(candidate); err != nil {
		return Region{}, err
	}

	s.regions[id] = candidate
	return candidate.Clone(), nil
}

// Put inserts or replaces a region wholesale. It is used for state that
// originates outside a local gesture, such as a collaborator's edit.
func (s *Store) Put(r Region) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := r.Clone()
	candidate.LayoutID = s.layoutID
	if candidate.Deleted() {
		s.regions[candidate.ID] = candidate
		return candidate.Clone(), nil
	}
	if err := s.check(candidate); err != nil {
		return Region{}, err
	}

	s.regions[candidate.ID] = candidate
	return candidate.Clone(), nil
}

// Remove soft-deletes a region by stamping DeletedAt.
func (s *Store) Remove(id string) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.regions[id]
	if !ok || current.Deleted() {
		return Region{}, ErrRegionNotFound
	}

	now := s.now()
	current.DeletedAt = &now
	current.UpdatedAt = now
	s.regions[id] = current
	return current.Clone(), nil
}

// Get returns a live region by ID.
func (s *Store) Get(id string) (Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.regions[id]
	if !ok || r.Deleted() {
		return Region{}, ErrRegionNotFound
	}
	return r.Clone(), nil
}

// Lookup returns a region by ID including soft-deleted ones.
func (s *Store) Lookup(id string) (Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.regions[id]
	if !ok {
		return Region{}, false
	}
	return r.Clone(), true
}

// All returns live regions ordered by display order, then ID.
func (s *Store) All() []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Region, 0, len(s.regions))
	for _, r := range s.regions {
		if r.Deleted() {
			continue
		}
		out = append(out, r.Clone())
	}
	sortRegions(out)
	return out
}

// AllWithDeleted returns every region including soft-deleted ones, which
// persistence keeps so historical versions can still resolve them.
func (s *Store) AllWithDeleted() []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Region, 0, len(s.regions))
	for _, r := range s.regions {
		out = append(out, r.Clone())
	}
	sortRegions(out)
	return out
}

// Len returns the number of live regions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.regions {
		if !r.Deleted() {
			n++
		}
	}
	return n
}

// NextDisplayOrder returns one past the highest display order in use.
func (s *Store) NextDisplayOrder() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := 0
	for _, r := range s.regions {
		if r.Deleted() {
			continue
		}
		if r.DisplayOrder >= next {
			next = r.DisplayOrder + 1
		}
	}
	return next
}

// ReplaceAll swaps the entire region set, typically on load. The new set
// is validated as a whole before anything changes.
func (s *Store) ReplaceAll(regions []Region) error {
	next, err := s.buildSet(regions)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = next
	return nil
}

// Restore makes the live set equal to snapshot. Regions present in the
// store but absent from snapshot are soft-deleted rather than dropped.
func (s *Store) Restore(snapshot []Region) error {
	next, err := s.buildSet(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.regions {
		if _, ok := next[id]; ok {
			continue
		}
		if !existing.Deleted() {
			existing.DeletedAt = &now
			existing.UpdatedAt = now
		}
		next[id] = existing
	}
	s.regions = next
	return nil
}

func (s *Store) buildSet(regions []Region) (map[string]Region, error) {
	next := make(map[string]Region, len(regions))
	live := make([]Region, 0, len(regions))
	for _, r := range regions {
		if _, dup := next[r.ID]; dup {
			return nil, fmt.Errorf("region %s: %w", r.ID, ErrDuplicateRegion)
		}
		candidate := r.Clone()
		candidate.LayoutID = s.layoutID
		if !candidate.Deleted() {
			if err := Validate(candidate); err != nil {
				return nil, fmt.Errorf("region %s: %w", r.ID, err)
			}
			if other := FindOverlap(candidate, live); other != nil {
				return nil, &OverlapError{RegionID: candidate.ID, OtherID: other.ID}
			}
			live = append(live, candidate)
		}
		next[candidate.ID] = candidate
	}
	return next, nil
}

// check validates candidate against the grid and every other live region.
// Callers must hold s.mu.
func (s *Store) check(candidate Region) error {
	if err := Validate(candidate); err != nil {
		return err
	}
	for id, other := range s.regions {
		if id == candidate.ID || other.Deleted() {
			continue
		}
		if Overlaps(candidate, other) {
			return &OverlapError{RegionID: candidate.ID, OtherID: other.ID}
		}
	}
	return nil
}

func sortRegions(regions []Region) {
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].DisplayOrder != regions[j].DisplayOrder {
			return regions[i].DisplayOrder < regions[j].DisplayOrder
		}
		return regions[i].ID < regions[j].ID
	})
}
