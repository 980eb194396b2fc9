package blacklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	rows    []Entry
	loadErr error
}

func (m *memStore) Load(_ context.Context) ([]Entry, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]Entry, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memStore) Append(_ context.Context, entry Entry) error {
	entry.Ref = len(m.rows)
	m.rows = append(m.rows, entry)
	return nil
}

func (m *memStore) Update(_ context.Context, entry Entry) error {
	m.rows[entry.Ref] = entry
	return nil
}

func newTestService(store Store) *Service {
	s := NewService(store)
	s.now = func() time.Time { return time.Date(2025, 6, 26, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestAdd_NewValue(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	res, err := svc.Add(context.Background(), CategoryCountry, " Testland ", "")
	require.NoError(t, err)
	assert.Equal(t, ResultAdded, res)
	require.Len(t, store.rows, 1)
	assert.Equal(t, Entry{Ref: 0, Category: CategoryCountry, Status: StatusActive, Value: "Testland", Date: "2025-06-26"}, store.rows[0])
}

func TestAdd_ActiveDuplicateIsNoop(t *testing.T) {
	store := &memStore{rows: []Entry{{Ref: 0, Category: CategoryPlayer, Status: StatusActive, Value: "taro", Date: "2024-01-01"}}}
	svc := newTestService(store)

	res, err := svc.Add(context.Background(), CategoryPlayer, "taro", "")
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, res)
	assert.Len(t, store.rows, 1)
	assert.Equal(t, "2024-01-01", store.rows[0].Date)
}

func TestAdd_ReactivatesInvalidRow(t *testing.T) {
	store := &memStore{rows: []Entry{{Ref: 0, Category: CategoryPlayer, Status: StatusInvalid, Value: "taro", Reason: "old", Date: "2024-01-01"}}}
	svc := newTestService(store)

	res, err := svc.Add(context.Background(), CategoryPlayer, "taro", "griefing")
	require.NoError(t, err)
	assert.Equal(t, ResultReactivated, res)
	require.Len(t, store.rows, 1)
	assert.Equal(t, StatusActive, store.rows[0].Status)
	assert.Equal(t, "griefing", store.rows[0].Reason)
	assert.Equal(t, "2025-06-26", store.rows[0].Date)
}

func TestAdd_SameValueDifferentCategoryIsNew(t *testing.T) {
	store := &memStore{rows: []Entry{{Ref: 0, Category: CategoryPlayer, Status: StatusActive, Value: "Testland"}}}
	svc := newTestService(store)

	res, err := svc.Add(context.Background(), CategoryCountry, "Testland", "")
	require.NoError(t, err)
	assert.Equal(t, ResultAdded, res)
	assert.Len(t, store.rows, 2)
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name   string
		rows   []Entry
		want   Result
		status Status
	}{
		{name: "active entry is invalidated", rows: []Entry{{Category: CategoryCountry, Status: StatusActive, Value: "Testland"}}, want: ResultInvalidated, status: StatusInvalid},
		{name: "invalid entry is notfound", rows: []Entry{{Category: CategoryCountry, Status: StatusInvalid, Value: "Testland"}}, want: ResultNotFound, status: StatusInvalid},
		{name: "missing entry is notfound", rows: nil, want: ResultNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{rows: tt.rows}
			svc := newTestService(store)

			res, err := svc.Remove(context.Background(), CategoryCountry, "Testland")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			if len(store.rows) > 0 {
				assert.Equal(t, tt.status, store.rows[0].Status)
			}
		})
	}
}

func TestIsBlacklisted_OnlyActiveCounts(t *testing.T) {
	store := &memStore{rows: []Entry{
		{Category: CategoryCountry, Status: StatusActive, Value: "Badland"},
		{Category: CategoryCountry, Status: StatusInvalid, Value: "Formerland"},
	}}
	svc := newTestService(store)
	ctx := context.Background()

	hit, err := svc.IsBlacklisted(ctx, CategoryCountry, "Badland")
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = svc.IsBlacklisted(ctx, CategoryCountry, "Formerland")
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = svc.IsBlacklisted(ctx, CategoryPlayer, "Badland")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestIsBlacklisted_PropagatesStoreError(t *testing.T) {
	svc := newTestService(&memStore{loadErr: errors.New("sheets unavailable")})

	_, err := svc.IsBlacklisted(context.Background(), CategoryPlayer, "taro")
	require.Error(t, err)
	assert.Error(t, svc.Ping(context.Background()))
}
