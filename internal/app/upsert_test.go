package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scaletrack/internal/cache"
	"scaletrack/internal/domain"
)

func newTestUpserter(src *mockSource) (*Upserter, *cache.Store) {
	store := cache.NewStore()
	return NewUpserter(1, src, store, nil, zap.NewNop()), store
}

func populate(store *cache.Store) {
	store.PutDaily("2025-07", []domain.Record{{ID: "a", Date: "2025-07-10", Value: 70.2}})
	store.PutDaily("2025-06", []domain.Record{{ID: "b", Date: "2025-06-03", Value: 71}})
	store.PutAggregates("2025", []domain.AggregateRecord{{PeriodKey: "2025-06", AvgValue: 71}})
}

func TestSave_ConflictNeverSilentlyOverwrites(t *testing.T) {
	existing := &domain.Record{ID: "a", OwnerID: 1, Date: "2025-07-20", Value: 70}
	src := &mockSource{
		findFn: func(_ context.Context, _ int64, date string) (*domain.Record, error) {
			assert.Equal(t, "2025-07-20", date)
			return existing, nil
		},
		createFn: func(_ context.Context, _ int64, _ domain.RecordDraft) (*domain.Record, error) {
			t.Fatal("Create must not be called on conflict")
			return nil, nil
		},
		updateFn: func(_ context.Context, _ string, _ domain.RecordDraft) (*domain.Record, error) {
			t.Fatal("Update must not be called on conflict")
			return nil, nil
		},
	}
	u, store := newTestUpserter(src)
	populate(store)

	outcome, err := u.Save(context.Background(), domain.RecordDraft{Date: "2025-07-20", Value: 69.5})
	require.NoError(t, err)
	require.NotNil(t, outcome.Conflict)
	assert.Nil(t, outcome.Created)
	assert.Equal(t, existing, outcome.Conflict)
	assert.NotZero(t, store.Len(), "a conflict is not a write; the cache must survive")
}

func TestSave_CreateClearsEveryCachedPeriod(t *testing.T) {
	src := &mockSource{
		createFn: func(_ context.Context, ownerID int64, draft domain.RecordDraft) (*domain.Record, error) {
			return &domain.Record{
				ID: "new", OwnerID: ownerID, Date: draft.Date, Value: draft.Value,
				CreatedAt: time.Now(), UpdatedAt: time.Now(),
			}, nil
		},
	}
	u, store := newTestUpserter(src)
	populate(store)

	outcome, err := u.Save(context.Background(), domain.RecordDraft{Date: "2025-07-20", Value: 69.5})
	require.NoError(t, err)
	require.NotNil(t, outcome.Created)
	assert.Equal(t, "2025-07-20", outcome.Created.Date)

	assert.Equal(t, 0, store.Len())
	_, ok := store.Daily("2025-06")
	assert.False(t, ok, "every previously populated key must be gone after a write")
	_, ok = store.Aggregates("2025")
	assert.False(t, ok)
}

func TestSave_Validation(t *testing.T) {
	badFat := 140.0
	tests := []struct {
		name  string
		draft domain.RecordDraft
	}{
		{"malformed date", domain.RecordDraft{Date: "20-07-2025", Value: 70}},
		{"zero value", domain.RecordDraft{Date: "2025-07-20", Value: 0}},
		{"negative value", domain.RecordDraft{Date: "2025-07-20", Value: -3}},
		{"nan value", domain.RecordDraft{Date: "2025-07-20", Value: math.NaN()}},
		{"infinite value", domain.RecordDraft{Date: "2025-07-20", Value: math.Inf(1)}},
		{"body fat out of range", domain.RecordDraft{Date: "2025-07-20", Value: 70, BodyFat: &badFat}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &mockSource{
				findFn: func(_ context.Context, _ int64, _ string) (*domain.Record, error) {
					t.Fatal("source must not be consulted for invalid input")
					return nil, nil
				},
			}
			u, _ := newTestUpserter(src)
			_, err := u.Save(context.Background(), tc.draft)
			assert.True(t, domain.IsValidation(err), "want ValidationError, got %v", err)
		})
	}
}

func TestSave_SourceErrorPropagatesWithoutClear(t *testing.T) {
	boom := errors.New("create: server error")
	src := &mockSource{
		createFn: func(_ context.Context, _ int64, _ domain.RecordDraft) (*domain.Record, error) {
			return nil, boom
		},
	}
	u, store := newTestUpserter(src)
	populate(store)

	_, err := u.Save(context.Background(), domain.RecordDraft{Date: "2025-07-20", Value: 69.5})
	require.ErrorIs(t, err, boom)
	assert.NotZero(t, store.Len(), "a failed write must not invalidate the cache")
}

func TestOverwrite_UpdatesAndClears(t *testing.T) {
	src := &mockSource{
		updateFn: func(_ context.Context, recordID string, draft domain.RecordDraft) (*domain.Record, error) {
			assert.Equal(t, "a", recordID)
			return &domain.Record{ID: recordID, OwnerID: 1, Date: draft.Date, Value: draft.Value}, nil
		},
	}
	u, store := newTestUpserter(src)
	populate(store)

	updated, err := u.Overwrite(context.Background(), "a", domain.RecordDraft{Date: "2025-07-10", Value: 68.9})
	require.NoError(t, err)
	assert.Equal(t, 68.9, updated.Value)
	assert.Equal(t, 0, store.Len())
}

func TestOverwrite_NotFound(t *testing.T) {
	src := &mockSource{
		updateFn: func(_ context.Context, _ string, _ domain.RecordDraft) (*domain.Record, error) {
			return nil, domain.ErrNotFound
		},
	}
	u, store := newTestUpserter(src)
	populate(store)

	_, err := u.Overwrite(context.Background(), "gone", domain.RecordDraft{Date: "2025-07-10", Value: 68.9})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotZero(t, store.Len())
}

func TestTracker_SaveForcesNextFetchToSource(t *testing.T) {
	src := &mockSource{
		listFn: func(_ context.Context, _ int64, _, _ string) ([]domain.Record, error) {
			return []domain.Record{{ID: "b", Date: "2025-06-03", Value: 71}}, nil
		},
		createFn: func(_ context.Context, ownerID int64, draft domain.RecordDraft) (*domain.Record, error) {
			return &domain.Record{ID: "new", OwnerID: ownerID, Date: draft.Date, Value: draft.Value}, nil
		},
	}
	tr := NewTracker(1, src, nil, zap.NewNop())
	tr.Controller.now = func() time.Time { return testNow }

	june := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := tr.Controller.FetchRecords(ctx, june, domain.GranularityMonth)
	require.NoError(t, err)
	_, err = tr.Controller.FetchRecords(ctx, june, domain.GranularityMonth)
	require.NoError(t, err)
	require.EqualValues(t, 1, src.listCalls, "past month should be served from cache before the write")

	_, err = tr.Upserter.Save(ctx, domain.RecordDraft{Date: "2025-07-15", Value: 69.5})
	require.NoError(t, err)

	_, err = tr.Controller.FetchRecords(ctx, june, domain.GranularityMonth)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.listCalls, "the write cleared the cache, so the fetch must hit the source again")
}

func TestTracker_ViewNavigationAloneDoesNotFetchOrClear(t *testing.T) {
	src := &mockSource{}
	tr := NewTracker(1, src, nil, zap.NewNop())
	tr.Controller.now = func() time.Time { return testNow }

	june := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := tr.Controller.FetchRecords(context.Background(), june, domain.GranularityMonth)
	require.NoError(t, err)
	calls := src.listCalls

	tr.SetView(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), domain.GranularityYear)

	ref, gran := tr.View()
	assert.Equal(t, domain.GranularityYear, gran)
	assert.Equal(t, 2025, ref.Year())
	assert.Equal(t, calls, src.listCalls, "navigation must not fetch")
	_, ok := tr.Controller.store.Daily("2025-06")
	assert.True(t, ok, "navigation must not clear")

	tr.Reset()
	_, ok = tr.Controller.store.Daily("2025-06")
	assert.False(t, ok)
}
