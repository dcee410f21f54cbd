package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"docrag/internal/domain"
	"docrag/internal/logger"
)

// Manager owns the active index snapshot for one store. Builds are
// serialized; searches read whichever snapshot is active when they start.
type Manager struct {
	store  Store
	log    *zap.SugaredLogger
	buildM sync.Mutex
	active atomic.Pointer[Index]
	loads  singleflight.Group
}

// NewManager returns a manager with no snapshot loaded.
func NewManager(store Store, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = logger.L()
	}
	return &Manager{store: store, log: log}
}

// Build indexes chunks, persists the result and makes it the active snapshot.
// If persisting fails the previous snapshot stays active.
func (m *Manager) Build(ctx context.Context, chunks []domain.EmbeddedChunk) (*Index, error) {
	m.buildM.Lock()
	defer m.buildM.Unlock()

	defer logger.Timed(m.log, "index build", "rows", len(chunks))()
	ix, err := Build(chunks)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, ix); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	m.active.Store(ix)
	m.log.Infow("index activated", "build_id", ix.BuildID(), "rows", ix.Len(), "dimension", ix.Dimension())
	return ix, nil
}

// EnsureLoaded loads the persisted snapshot unless one is already active.
// Concurrent callers share a single load; a failed load caches nothing.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	_, err := m.Snapshot(ctx)
	return err
}

// Snapshot returns the active snapshot, loading it first if needed. The
// returned index stays valid even if the manager is unloaded or rebuilt.
func (m *Manager) Snapshot(ctx context.Context) (*Index, error) {
	if ix := m.active.Load(); ix != nil {
		return ix, nil
	}
	v, err, _ := m.loads.Do("load", func() (any, error) {
		if ix := m.active.Load(); ix != nil {
			return ix, nil
		}
		defer logger.Timed(m.log, "index load")()
		ix, err := m.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		// A build that finished meanwhile is newer than what was on disk.
		if !m.active.CompareAndSwap(nil, ix) {
			if cur := m.active.Load(); cur != nil {
				ix = cur
			}
		}
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Current returns the active snapshot, or nil.
func (m *Manager) Current() *Index { return m.active.Load() }

// Unload drops the active snapshot so the next EnsureLoaded reads the store.
func (m *Manager) Unload() { m.active.Store(nil) }

// Search loads the index if needed and runs a nearest-neighbour query.
func (m *Manager) Search(ctx context.Context, query []float32, topK int) ([]domain.Hit, error) {
	ix, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Search(query, topK)
}
