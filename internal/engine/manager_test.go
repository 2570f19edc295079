package engine

import (
	"context"
	"testing"
	"time"

	"github.com/scrypster/mnemex/internal/apperr"
	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/pkg/types"
)

// fakeManagerStore implements just enough of storage.MemoryStore to drive
// the Manager; every other method panics so an accidental new dependency
// surfaces immediately.
type fakeManagerStore struct {
	memories      map[string]types.Memory
	relationships map[string][]types.Relationship

	archiveCalls int
	events       []types.LifecycleEvent
}

func newFakeManagerStore() *fakeManagerStore {
	return &fakeManagerStore{
		memories:      map[string]types.Memory{},
		relationships: map[string][]types.Relationship{},
	}
}

func (f *fakeManagerStore) CreateMemory(ctx context.Context, m *types.Memory, embedding []float32) error {
	panic("not used by Manager")
}
func (f *fakeManagerStore) GetMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error) {
	m, ok := f.memories[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "fakeManagerStore.GetMemory", "not found")
	}
	cp := m
	return &cp, nil
}
func (f *fakeManagerStore) SearchMemories(ctx context.Context, workspaceID string, params storage.SearchParams) ([]storage.SearchHit, error) {
	panic("not used by Manager")
}
func (f *fakeManagerStore) UpdateMemory(ctx context.Context, m *types.Memory) error {
	panic("not used by Manager")
}
func (f *fakeManagerStore) UpdateMemoryLifecycle(ctx context.Context, id, workspaceID string, patch storage.LifecyclePatch) error {
	m, ok := f.memories[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "fakeManagerStore.UpdateMemoryLifecycle", "not found")
	}
	if patch.DecayScore != nil {
		m.DecayScore = *patch.DecayScore
	}
	if patch.ImportanceScore != nil {
		m.ImportanceScore = *patch.ImportanceScore
	}
	if patch.LifecycleState != nil {
		m.LifecycleState = *patch.LifecycleState
	}
	f.memories[id] = m
	return nil
}
func (f *fakeManagerStore) GetMemoriesByLifecycleState(ctx context.Context, workspaceID string, state types.LifecycleState, page storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	var items []types.Memory
	for _, m := range f.memories {
		if m.WorkspaceID == workspaceID && m.LifecycleState == state {
			items = append(items, m)
		}
	}
	return &storage.PaginatedResult[types.Memory]{Items: items, Total: len(items)}, nil
}
func (f *fakeManagerStore) RecordAccess(ctx context.Context, id, workspaceID string) error {
	m, ok := f.memories[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "fakeManagerStore.RecordAccess", "not found")
	}
	m.AccessCount++
	f.memories[id] = m
	return nil
}
func (f *fakeManagerStore) CreateRelationship(ctx context.Context, rel *types.Relationship) error {
	panic("not used by Manager")
}
func (f *fakeManagerStore) GetRelationships(ctx context.Context, memoryID string) ([]types.Relationship, error) {
	return f.relationships[memoryID], nil
}
func (f *fakeManagerStore) ArchiveMemory(ctx context.Context, id, workspaceID string, retention time.Duration) (*storage.ArchiveStats, error) {
	f.archiveCalls++
	delete(f.memories, id)
	return &storage.ArchiveStats{RelationshipsTouched: len(f.relationships[id])}, nil
}
func (f *fakeManagerStore) RestoreMemory(ctx context.Context, id, workspaceID string) (*types.Memory, error) {
	panic("not used by this test")
}
func (f *fakeManagerStore) ListExpiredArchived(ctx context.Context, workspaceID string, now time.Time, batchSize int) ([]types.ArchivedMemory, error) {
	panic("not used by Manager")
}
func (f *fakeManagerStore) DeleteArchivedMemory(ctx context.Context, id, workspaceID string) (int, error) {
	panic("not used by Manager")
}
func (f *fakeManagerStore) LogLifecycleEvent(ctx context.Context, ev *types.LifecycleEvent) error {
	f.events = append(f.events, *ev)
	return nil
}
func (f *fakeManagerStore) GetHistory(ctx context.Context, memoryID, workspaceID string) ([]types.LifecycleEvent, error) {
	panic("not used by Manager")
}
func (f *fakeManagerStore) GetRecentTransitions(ctx context.Context, workspaceID string, limit int) ([]types.LifecycleEvent, error) {
	panic("not used by Manager")
}
func (f *fakeManagerStore) PruneLifecycleEvents(ctx context.Context, workspaceID string, olderThan time.Time) (int, error) {
	panic("not used by Manager")
}
func (f *fakeManagerStore) Close() error { return nil }

func newTestManager(store *fakeManagerStore) *Manager {
	return NewManager(store, ManagerConfig{
		DecayFunction: types.DecayFunction{Kind: types.DecayExponential, Lambda: 0.5},
	})
}

// TestEvaluateBatch_ArchivesPastEffectiveTTL mirrors end-to-end scenario 2:
// a memory 200 days stale archives within one EvaluateBatch call, moving
// through the Archival Service rather than a plain column update.
func TestEvaluateBatch_ArchivesPastEffectiveTTL(t *testing.T) {
	store := newFakeManagerStore()
	mgr := newTestManager(store)

	store.memories["m1"] = types.Memory{
		ID:              "m1",
		WorkspaceID:     "ws1",
		Type:            "fact",
		Confidence:      0.9,
		LifecycleState:  types.StateActive,
		LastAccessedAt:  time.Now().Add(-200 * 24 * time.Hour),
		ImportanceScore: 0.2,
		DecayScore:      1.0,
	}

	evaluated, transitioned, err := mgr.EvaluateBatch(context.Background(), "ws1", storage.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}
	if evaluated != 1 || transitioned != 1 {
		t.Fatalf("expected 1 evaluated and 1 transitioned, got %d/%d", evaluated, transitioned)
	}
	if store.archiveCalls != 1 {
		t.Fatalf("expected the Archival Service to be invoked once, got %d calls", store.archiveCalls)
	}
	if _, stillHot := store.memories["m1"]; stillHot {
		t.Fatal("expected the memory to be moved out of the hot table by ArchiveMemory")
	}
	if len(store.events) != 1 || store.events[0].NewState != types.StateArchived {
		t.Fatalf("expected one archived transition event, got %+v", store.events)
	}
	m := mgr.GetMetrics()
	if m.ArchivedTotal != 1 {
		t.Errorf("expected ArchivedTotal=1, got %d", m.ArchivedTotal)
	}
}

// TestEvaluateBatch_DemotesToDecaying checks the non-archival branch still
// demotes active memories once decay_score crosses decayThreshold, and
// persists a recomputed importance_score alongside it.
func TestEvaluateBatch_DemotesToDecaying(t *testing.T) {
	store := newFakeManagerStore()
	mgr := newTestManager(store)

	store.memories["m2"] = types.Memory{
		ID:             "m2",
		WorkspaceID:    "ws1",
		Type:           "concept",
		Confidence:     0.8,
		LifecycleState: types.StateActive,
		LastAccessedAt: time.Now().Add(-10 * 24 * time.Hour),
		DecayScore:     1.0,
	}

	_, transitioned, err := mgr.EvaluateBatch(context.Background(), "ws1", storage.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}
	if transitioned != 1 {
		t.Fatalf("expected 1 transition, got %d", transitioned)
	}
	got := store.memories["m2"]
	if got.LifecycleState != types.StateDecaying {
		t.Errorf("expected state decaying, got %s", got.LifecycleState)
	}
	if got.DecayScore >= 0.5 {
		t.Errorf("expected decay_score below threshold, got %f", got.DecayScore)
	}
	if store.archiveCalls != 0 {
		t.Errorf("expected no archival for a memory within effective TTL, got %d calls", store.archiveCalls)
	}
}

// TestRecordAccess_RecomputesImportance checks that an access event boosts
// decay_score and also persists a fresh importance_score, not just decay.
func TestRecordAccess_RecomputesImportance(t *testing.T) {
	store := newFakeManagerStore()
	mgr := newTestManager(store)

	store.memories["m3"] = types.Memory{
		ID:             "m3",
		WorkspaceID:    "ws1",
		Type:           "decision",
		Confidence:     0.7,
		LifecycleState: types.StateActive,
		LastAccessedAt: time.Now().Add(-5 * 24 * time.Hour),
		DecayScore:     0.4,
		AccessCount:    1,
	}
	store.relationships["m3"] = []types.Relationship{{ID: "r1"}, {ID: "r2"}}

	if err := mgr.RecordAccess(context.Background(), "m3", "ws1"); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}

	got := store.memories["m3"]
	if got.DecayScore <= 0.4 {
		t.Errorf("expected decay_score boosted above 0.4, got %f", got.DecayScore)
	}
	want := ComputeImportanceScore(ImportanceFeatures{
		Recency:       got.DecayScore,
		Frequency:     NormalizeFrequency(2),
		Confidence:    0.7,
		RelationCount: NormalizeRelationCount(2),
	})
	if got.ImportanceScore != want {
		t.Errorf("expected importance_score %f, got %f", want, got.ImportanceScore)
	}
}

// TestEffectiveTTL_StoredValueWins checks the Open Question resolution: a
// per-memory stored effective_ttl overrides the computed, policy-derived
// one even when the policy would compute something shorter.
func TestEffectiveTTL_StoredValueWins(t *testing.T) {
	stored := int64((10 * 24 * time.Hour) / time.Millisecond)
	got := EffectiveTTL(&stored, 0.9, DefaultRetentionPolicy)
	want := 10 * 24 * time.Hour
	if got != want {
		t.Errorf("expected stored value %s to win, got %s", want, got)
	}
}

// TestEffectiveTTL_ScalesWithImportance checks the computed fallback
// scales monotonically with importance_score between TTL and
// TTL*ImportanceMultiplier, plus the grace period.
func TestEffectiveTTL_ScalesWithImportance(t *testing.T) {
	policy := RetentionPolicy{TTL: 90 * 24 * time.Hour, ImportanceMultiplier: 1.5, GracePeriod: 7 * 24 * time.Hour}

	low := EffectiveTTL(nil, 0, policy)
	high := EffectiveTTL(nil, 1, policy)

	if low != 90*24*time.Hour+7*24*time.Hour {
		t.Errorf("expected zero-importance TTL to be base+grace, got %s", low)
	}
	if high != 135*24*time.Hour+7*24*time.Hour {
		t.Errorf("expected full-importance TTL to be base*multiplier+grace, got %s", high)
	}
	if low >= high {
		t.Errorf("expected TTL to grow with importance, got low=%s high=%s", low, high)
	}

	scenario2 := EffectiveTTL(nil, 0.2, policy)
	elapsed := 200 * 24 * time.Hour
	if elapsed < scenario2 {
		t.Errorf("scenario 2 (elapsed=200d) should exceed effective TTL %s", scenario2)
	}
}
