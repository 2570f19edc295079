package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/pkg/types"
)

// Manager is the lifecycle engine's orchestrator (§4.9): it applies decay
// and importance scoring to individual memories and drives the
// background jobs that sweep a whole workspace, grounded on the
// teacher's own MemoryEngine worker-pool lifecycle (Start/Stop guarded by
// a started flag and a cancelable worker context).
type Manager struct {
	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	store      storage.MemoryStore
	events     *EventLogger
	archival   *ArchivalService
	cleanup    *CleanupService
	decayFn    types.DecayFunction

	retentionPolicies map[string]RetentionPolicy

	evaluateInterval time.Duration
	cleanupInterval  time.Duration
	eventRetention   time.Duration
	evaluateBatchSize int

	metrics Metrics
}

// decayThreshold is the decay_score below which an active memory demotes
// to decaying, per §4.9's decision list.
const decayThreshold = 0.5

// Metrics tracks cumulative counts since the manager was created, exposed
// via GetMetrics for the daemon's own periodic log line.
type Metrics struct {
	mu               sync.Mutex
	EvaluatedTotal   int
	TransitionsTotal int
	ArchivedTotal    int
	ExpiredTotal     int
	ErrorsTotal      int
}

func (m *Metrics) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		EvaluatedTotal:   m.EvaluatedTotal,
		TransitionsTotal: m.TransitionsTotal,
		ArchivedTotal:    m.ArchivedTotal,
		ExpiredTotal:     m.ExpiredTotal,
		ErrorsTotal:      m.ErrorsTotal,
	}
}

// ManagerConfig configures the periodic background jobs; all intervals
// are independent and each applies across all workspaces the caller asks
// it to sweep.
type ManagerConfig struct {
	DecayFunction     types.DecayFunction
	EvaluateInterval  time.Duration
	CleanupInterval   time.Duration
	EventRetention    time.Duration
	EvaluateBatchSize int
	ArchiveRetention  time.Duration

	// RetentionPolicies overrides DefaultRetentionPolicy per memory type.
	// A type absent from this map falls back to DefaultRetentionPolicy.
	RetentionPolicies map[string]RetentionPolicy
}

func NewManager(store storage.MemoryStore, cfg ManagerConfig) *Manager {
	events := NewEventLogger(store)
	return &Manager{
		store:             store,
		events:            events,
		archival:          NewArchivalService(store, events, cfg.ArchiveRetention),
		cleanup:           NewCleanupService(store, cfg.EvaluateBatchSize),
		decayFn:           cfg.DecayFunction,
		retentionPolicies: cfg.RetentionPolicies,
		evaluateInterval:  cfg.EvaluateInterval,
		cleanupInterval:   cfg.CleanupInterval,
		eventRetention:    cfg.EventRetention,
		evaluateBatchSize: cfg.EvaluateBatchSize,
	}
}

// retentionPolicy returns the configured policy for memType, or
// DefaultRetentionPolicy if none was configured.
func (m *Manager) retentionPolicy(memType string) RetentionPolicy {
	if policy, ok := m.retentionPolicies[memType]; ok {
		return policy
	}
	return DefaultRetentionPolicy
}

// computeImportance builds the §4.4 feature vector for mem from its
// current relationships and recency, and scores it.
func (m *Manager) computeImportance(ctx context.Context, mem *types.Memory, recency float64) (float64, error) {
	rels, err := m.store.GetRelationships(ctx, mem.ID)
	if err != nil {
		return 0, err
	}
	return ComputeImportanceScore(ImportanceFeatures{
		Recency:       recency,
		Frequency:     NormalizeFrequency(mem.AccessCount),
		Confidence:    mem.Confidence,
		RelationCount: NormalizeRelationCount(len(rels)),
	}), nil
}

// RecordAccess bumps access_count/last_accessed_at, boosts decay_score
// towards 1.0, and recomputes importance_score, per §4.9's per-access
// update.
func (m *Manager) RecordAccess(ctx context.Context, id, workspaceID string) error {
	mem, err := m.store.GetMemory(ctx, id, workspaceID)
	if err != nil {
		return err
	}
	if err := m.store.RecordAccess(ctx, id, workspaceID); err != nil {
		return err
	}
	newDecay := DecayScoreAfterAccess(mem.DecayScore)
	mem.AccessCount++
	importance, err := m.computeImportance(ctx, mem, newDecay)
	if err != nil {
		return err
	}
	decay := newDecay
	return m.store.UpdateMemoryLifecycle(ctx, id, workspaceID, storage.LifecyclePatch{DecayScore: &decay, ImportanceScore: &importance})
}

// PinMemory transitions a memory to pinned, valid from any state, and
// records pinned_by/pinned_at.
func (m *Manager) PinMemory(ctx context.Context, id, workspaceID, userID string) error {
	mem, err := m.store.GetMemory(ctx, id, workspaceID)
	if err != nil {
		return err
	}
	if mem.LifecycleState == types.StatePinned {
		return nil
	}
	now := time.Now()
	pinned := true
	state := types.StatePinned
	if err := m.store.UpdateMemoryLifecycle(ctx, id, workspaceID, storage.LifecyclePatch{
		LifecycleState: &state,
		Pinned:         &pinned,
		PinnedBy:       &userID,
		PinnedAt:       &now,
	}); err != nil {
		return err
	}
	return m.events.LogTransition(ctx, id, workspaceID, mem.LifecycleState, types.StatePinned, "pinned by user", types.TriggeredByUser, userID, nil)
}

// UnpinMemory transitions a previously-pinned memory to active; only a
// user-triggered call may do this, per the state machine's pin-lock rule.
func (m *Manager) UnpinMemory(ctx context.Context, id, workspaceID, userID string) error {
	mem, err := m.store.GetMemory(ctx, id, workspaceID)
	if err != nil {
		return err
	}
	if mem.LifecycleState != types.StatePinned {
		return nil
	}
	pinned := false
	state := types.StateActive
	now := time.Now()
	if err := m.store.UpdateMemoryLifecycle(ctx, id, workspaceID, storage.LifecyclePatch{
		LifecycleState: &state,
		Pinned:         &pinned,
		PinnedBy:       new(string),
		LastAccessedAt: &now,
	}); err != nil {
		return err
	}
	return m.events.LogTransition(ctx, id, workspaceID, types.StatePinned, types.StateActive, "unpinned by user", types.TriggeredByUser, userID, nil)
}

// UpdateMemoryLifecycle validates the requested transition against the
// state machine before delegating to the store, logging the transition
// on success.
func (m *Manager) UpdateMemoryLifecycle(ctx context.Context, id, workspaceID string, to types.LifecycleState, triggeredBy types.TriggeredBy, userID, reason string) error {
	mem, err := m.store.GetMemory(ctx, id, workspaceID)
	if err != nil {
		return err
	}
	if !IsValidTransition(mem.LifecycleState, to, triggeredBy) {
		return fmt.Errorf("engine: invalid transition %s -> %s (triggered_by=%s)", mem.LifecycleState, to, triggeredBy)
	}
	if mem.LifecycleState == to {
		return nil
	}
	if err := m.store.UpdateMemoryLifecycle(ctx, id, workspaceID, storage.LifecyclePatch{LifecycleState: &to}); err != nil {
		return err
	}
	return m.events.LogTransition(ctx, id, workspaceID, mem.LifecycleState, to, reason, triggeredBy, userID, nil)
}

// EvaluateBatch recomputes decay_score and importance_score for every
// active/decaying memory in workspaceID, a page at a time. A memory whose
// elapsed time since last access has reached its effective TTL (§4.9,
// retention policy per type scaled by importance) is archived through the
// Archival Service; short of that, it demotes active->decaying once
// decay_score crosses decayThreshold. Pinned and already-archived/expired
// memories are skipped (GetMemoriesByLifecycleState only returns
// active/decaying rows).
func (m *Manager) EvaluateBatch(ctx context.Context, workspaceID string, page storage.ListOptions) (evaluated, transitioned int, err error) {
	for _, state := range []types.LifecycleState{types.StateActive, types.StateDecaying} {
		result, err := m.store.GetMemoriesByLifecycleState(ctx, workspaceID, state, page)
		if err != nil {
			return evaluated, transitioned, err
		}
		for i := range result.Items {
			mem := result.Items[i]
			evaluated++

			elapsed := time.Since(mem.LastAccessedAt)
			newDecay := ComputeDecayScore(m.decayFn, elapsed.Milliseconds())
			newImportance, err := m.computeImportance(ctx, &mem, newDecay)
			if err != nil {
				m.metrics.mu.Lock()
				m.metrics.ErrorsTotal++
				m.metrics.mu.Unlock()
				continue
			}

			policy := m.retentionPolicy(mem.Type)
			ttl := EffectiveTTL(mem.EffectiveTTL, newImportance, policy)

			decay := newDecay
			importance := newImportance

			switch {
			case elapsed >= ttl:
				// Persist the latest scores before handing the row to the
				// Archival Service, since ArchiveMemory copies
				// importance_score into archived_memories.
				if err := m.store.UpdateMemoryLifecycle(ctx, mem.ID, workspaceID, storage.LifecyclePatch{DecayScore: &decay, ImportanceScore: &importance}); err != nil {
					m.metrics.mu.Lock()
					m.metrics.ErrorsTotal++
					m.metrics.mu.Unlock()
					continue
				}
				if err := m.archival.Archive(ctx, mem.ID, workspaceID, types.TriggeredBySystem, "", "effective ttl elapsed"); err != nil {
					m.metrics.mu.Lock()
					m.metrics.ErrorsTotal++
					m.metrics.mu.Unlock()
					continue
				}
				transitioned++
				m.metrics.mu.Lock()
				m.metrics.TransitionsTotal++
				m.metrics.ArchivedTotal++
				m.metrics.mu.Unlock()

			case mem.LifecycleState == types.StateActive && newDecay < decayThreshold:
				newState := types.StateDecaying
				patch := storage.LifecyclePatch{DecayScore: &decay, ImportanceScore: &importance, LifecycleState: &newState}
				if err := m.store.UpdateMemoryLifecycle(ctx, mem.ID, workspaceID, patch); err != nil {
					m.metrics.mu.Lock()
					m.metrics.ErrorsTotal++
					m.metrics.mu.Unlock()
					continue
				}
				transitioned++
				m.metrics.mu.Lock()
				m.metrics.TransitionsTotal++
				m.metrics.mu.Unlock()
				_ = m.events.LogTransition(ctx, mem.ID, workspaceID, mem.LifecycleState, newState, "decay threshold crossed", types.TriggeredBySystem, "", nil)

			default:
				if err := m.store.UpdateMemoryLifecycle(ctx, mem.ID, workspaceID, storage.LifecyclePatch{DecayScore: &decay, ImportanceScore: &importance}); err != nil {
					m.metrics.mu.Lock()
					m.metrics.ErrorsTotal++
					m.metrics.mu.Unlock()
					continue
				}
			}
		}
	}
	m.metrics.mu.Lock()
	m.metrics.EvaluatedTotal += evaluated
	m.metrics.mu.Unlock()
	return evaluated, transitioned, nil
}

// RestoreMemory moves an archived memory back to active, reachable via
// the Archival Service's Restore (§4.7); re-embedding its vector is the
// caller's responsibility, since the store has none to restore from.
func (m *Manager) RestoreMemory(ctx context.Context, id, workspaceID string, triggeredBy types.TriggeredBy, userID, reason string) (*types.Memory, error) {
	return m.archival.Restore(ctx, id, workspaceID, triggeredBy, userID, reason)
}

func (m *Manager) GetMetrics() Metrics {
	return m.metrics.snapshot()
}

// Start launches the background evaluate and cleanup loops for
// workspaceIDs. Both loops check the stop signal between batches, never
// mid-batch, so a shutdown never leaves a workspace half-evaluated.
func (m *Manager) Start(ctx context.Context, workspaceIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("engine: manager already started")
	}
	if err := ValidateDecayFunction(m.decayFn); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true

	m.wg.Add(2)
	go m.runEvaluateLoop(workerCtx, workspaceIDs)
	go m.runCleanupLoop(workerCtx, workspaceIDs)

	return nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.started = false
}

func (m *Manager) runEvaluateLoop(ctx context.Context, workspaceIDs []string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.evaluateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ws := range workspaceIDs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				evaluated, transitioned, err := m.EvaluateBatch(ctx, ws, storage.ListOptions{Limit: m.evaluateBatchSize})
				if err != nil {
					log.Printf("engine: evaluate batch for workspace %s failed: %v", ws, err)
					continue
				}
				log.Printf("engine: workspace %s evaluated=%d transitioned=%d", ws, evaluated, transitioned)
			}
		}
	}
}

func (m *Manager) runCleanupLoop(ctx context.Context, workspaceIDs []string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ws := range workspaceIDs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				res, err := m.cleanup.CleanupExpired(ctx, ws, time.Now(), false)
				if err != nil {
					log.Printf("engine: cleanup expired for workspace %s failed: %v", ws, err)
				}
				if res != nil {
					m.metrics.mu.Lock()
					m.metrics.ExpiredTotal += res.Deleted
					m.metrics.mu.Unlock()
				}
				if _, err := m.cleanup.CleanupLifecycleEvents(ctx, ws, m.eventRetention); err != nil {
					log.Printf("engine: cleanup lifecycle events for workspace %s failed: %v", ws, err)
				}
			}
		}
	}
}
