// Package entrystore keeps an in-memory index over the durable log for
// historical queries. It is derived state: Rebuild reconstructs it from the
// log, Apply extends it after each commit.
package entrystore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/server/models"
)

// DefaultPageSize is the number of entries read per Rebuild round trip.
const DefaultPageSize = 512

// Source is the authoritative log the index is built from.
type Source interface {
	MaxID() int64
	ReadRange(ctx context.Context, fromID, toID int64) ([]models.Entry, error)
}

// Filter selects entries. Zero fields do not restrict. Results are always in
// ascending id order.
type Filter struct {
	// AfterID excludes ids <= AfterID.
	AfterID int64
	// UpToID excludes ids > UpToID when positive.
	UpToID int64
	Author string
	// Since and Until bound committed_at as Since <= t < Until.
	Since time.Time
	Until time.Time
	// Text is a case-insensitive wildcard pattern (* and ?) matched anywhere
	// in the body.
	Text  string
	Limit int
}

type idemKey struct {
	author string
	key    string
}

type Store struct {
	mu       sync.RWMutex
	entries  []models.Entry // entries[i].ID == i+1
	byAuthor map[string][]int64
	idem     map[idemKey]int64
}

func New() *Store {
	return &Store{
		byAuthor: make(map[string][]int64),
		idem:     make(map[idemKey]int64),
	}
}

// Rebuild replaces the index with the contents of src.
func (s *Store) Rebuild(ctx context.Context, src Source, pageSize int) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	fresh := New()
	maxID := src.MaxID()
	for from := int64(1); from <= maxID; from += int64(pageSize) {
		to := min(from+int64(pageSize)-1, maxID)
		page, err := src.ReadRange(ctx, from, to)
		if err != nil {
			return err
		}
		for _, e := range page {
			if err := fresh.add(e); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	s.entries, s.byAuthor, s.idem = fresh.entries, fresh.byAuthor, fresh.idem
	s.mu.Unlock()
	return nil
}

// Apply indexes a freshly committed entry. Re-applying an indexed id is a
// no-op.
func (s *Store) Apply(e models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(e)
}

func (s *Store) add(e models.Entry) error {
	n := int64(len(s.entries))
	switch {
	case e.ID <= n:
		return nil
	case e.ID != n+1:
		return fmt.Errorf("%w: index gap, have %d, got %d", common.ErrStorage, n, e.ID)
	}

	s.entries = append(s.entries, e)
	s.byAuthor[e.Author] = append(s.byAuthor[e.Author], e.ID)
	if e.IdempotencyKey != "" {
		s.idem[idemKey{e.Author, e.IdempotencyKey}] = e.ID
	}
	return nil
}

func (s *Store) MaxID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries))
}

// Get returns common.ErrorNotFound for an id that is not committed.
func (s *Store) Get(id int64) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 1 || id > int64(len(s.entries)) {
		return models.Entry{}, common.ErrorNotFound
	}
	return s.entries[id-1], nil
}

// FindByIdempotencyKey returns the entry an author committed under key.
func (s *Store) FindByIdempotencyKey(author, key string) (models.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idem[idemKey{author, key}]
	if !ok {
		return models.Entry{}, false
	}
	return s.entries[id-1], true
}

// Query returns the entries matching f. An invalid text pattern wraps
// common.ErrValidation.
func (s *Store) Query(f Filter) ([]models.Entry, error) {
	var match func(string) bool
	if f.Text != "" {
		re, err := compileWildcard(f.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: text filter: %w", common.ErrValidation, err)
		}
		match = re.MatchString
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := s.bounds(f)
	if lo > hi {
		return nil, nil
	}

	var result []models.Entry
	keep := func(e models.Entry) bool {
		if match != nil && !match(e.Body) {
			return true
		}
		result = append(result, e)
		return f.Limit <= 0 || len(result) < f.Limit
	}

	if f.Author != "" {
		ids := s.byAuthor[f.Author]
		start := sort.Search(len(ids), func(i int) bool { return ids[i] >= lo })
		for _, id := range ids[start:] {
			if id > hi || !keep(s.entries[id-1]) {
				break
			}
		}
		return result, nil
	}

	for id := lo; id <= hi; id++ {
		if !keep(s.entries[id-1]) {
			break
		}
	}
	return result, nil
}

// bounds narrows f to an inclusive id interval. committed_at never decreases
// with id, so the time window maps to a contiguous id range.
func (s *Store) bounds(f Filter) (int64, int64) {
	lo, hi := max(f.AfterID+1, 1), int64(len(s.entries))
	if f.UpToID > 0 {
		hi = min(hi, f.UpToID)
	}
	if !f.Since.IsZero() {
		i := sort.Search(len(s.entries), func(i int) bool { return !s.entries[i].CommittedAt.Before(f.Since) })
		lo = max(lo, int64(i)+1)
	}
	if !f.Until.IsZero() {
		i := sort.Search(len(s.entries), func(i int) bool { return !s.entries[i].CommittedAt.Before(f.Until) })
		hi = min(hi, int64(i))
	}
	return lo, hi
}

// compileWildcard turns a shell-style pattern into an unanchored,
// case-insensitive regexp.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return regexp.Compile(b.String())
}
