package blacklist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type Category string

const (
	CategoryCountry Category = "Country"
	CategoryPlayer  Category = "Player"
)

type Status string

const (
	StatusActive  Status = "Active"
	StatusInvalid Status = "invalid"
)

type Result string

const (
	ResultDuplicate   Result = "duplicate"
	ResultReactivated Result = "reactivated"
	ResultAdded       Result = "added"
	ResultNotFound    Result = "notfound"
	ResultInvalidated Result = "invalidated"
)

const entryDateLayout = "2006-01-02"

// Entry is one row of the blacklist table. Ref identifies the row inside its Store.
type Entry struct {
	Ref      int
	Category Category
	Status   Status
	Value    string
	Reason   string
	Date     string
}

type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, entry Entry) error
	Update(ctx context.Context, entry Entry) error
}

// Checker is the read side used during application validation.
type Checker interface {
	IsBlacklisted(ctx context.Context, category Category, value string) (bool, error)
}

type Service struct {
	store Store
	now   func() time.Time

	// mu serializes read-modify-write sequences against the store.
	mu sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Add(ctx context.Context, category Category, value, reason string) (Result, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("blacklist value is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load blacklist: %w", err)
	}
	if _, ok := find(entries, category, value, StatusActive); ok {
		return ResultDuplicate, nil
	}
	today := s.now().UTC().Format(entryDateLayout)
	if invalid, ok := find(entries, category, value, StatusInvalid); ok {
		invalid.Status = StatusActive
		invalid.Reason = reason
		invalid.Date = today
		if err := s.store.Update(ctx, invalid); err != nil {
			return "", fmt.Errorf("failed to reactivate blacklist entry: %w", err)
		}
		return ResultReactivated, nil
	}
	if err := s.store.Append(ctx, Entry{
		Category: category,
		Status:   StatusActive,
		Value:    value,
		Reason:   reason,
		Date:     today,
	}); err != nil {
		return "", fmt.Errorf("failed to append blacklist entry: %w", err)
	}
	return ResultAdded, nil
}

func (s *Service) Remove(ctx context.Context, category Category, value string) (Result, error) {
	value = strings.TrimSpace(value)
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load blacklist: %w", err)
	}
	active, ok := find(entries, category, value, StatusActive)
	if !ok {
		return ResultNotFound, nil
	}
	active.Status = StatusInvalid
	active.Date = s.now().UTC().Format(entryDateLayout)
	if err := s.store.Update(ctx, active); err != nil {
		return "", fmt.Errorf("failed to invalidate blacklist entry: %w", err)
	}
	return ResultInvalidated, nil
}

func (s *Service) IsBlacklisted(ctx context.Context, category Category, value string) (bool, error) {
	active, err := s.ListActive(ctx, category)
	if err != nil {
		return false, err
	}
	for _, e := range active {
		if e.Value == value {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) ListActive(ctx context.Context, category Category) ([]Entry, error) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	active := make([]Entry, 0)
	for _, e := range entries {
		if e.Category == category && e.Status == StatusActive {
			active = append(active, e)
		}
	}
	return active, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.Load(ctx)
	return err
}

func find(entries []Entry, category Category, value string, status Status) (Entry, bool) {
	for _, e := range entries {
		if e.Category == category && e.Value == value && e.Status == status {
			return e, true
		}
	}
	return Entry{}, false
}
