// Package history keeps a bounded stack of full graph snapshots for undo.
//
// Snapshots are taken before a mutation lands, with one deliberate twist for
// query submissions: the interesting state to restore is the graph with the
// submitted query in place, not the pre-submission empty input. Callers
// bracket a submission with BeginSubmission/EndSubmission; inside the
// bracket ordinary pre-mutation snapshots are suppressed and exactly one
// snapshot is taken via CaptureSubmitted, right after the query patch.
package history

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"tangent-backend/internal/domain/graph"
)

// DefaultCapacity bounds how many undo steps are retained.
const DefaultCapacity = 3

// layoutHold is how long collision-resolution side effects are ignored
// after a restore. Size-change notifications arriving in that window are
// re-render artifacts, not user edits.
const layoutHold = 500 * time.Millisecond

// Manager owns the snapshot stack. Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	snapshots  []*graph.Graph
	capacity   int
	batchDepth int
	captured   bool
	restoredAt time.Time
	onDepth    func(int)
	logger     *zap.Logger
}

// NewManager creates an empty history with the given capacity; capacity <= 0
// falls back to DefaultCapacity.
func NewManager(capacity int, logger *zap.Logger) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		capacity: capacity,
		logger:   logger,
	}
}

// ObserveDepth registers fn, invoked with the stack depth after every push
// and undo. Used to export the depth as a gauge. fn runs under the manager's
// lock and must not call back into it.
func (m *Manager) ObserveDepth(fn func(int)) {
	m.mu.Lock()
	m.onDepth = fn
	m.mu.Unlock()
}

// BeforeMutation snapshots the pre-mutation state. Inside a submission
// bracket this is suppressed; CaptureSubmitted takes the one snapshot for
// the whole burst.
func (m *Manager) BeforeMutation(g *graph.Graph) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchDepth > 0 {
		return
	}
	m.push(g)
}

// BeginSubmission opens a submission bracket. Brackets nest; only the
// outermost one controls suppression.
func (m *Manager) BeginSubmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchDepth++
}

// EndSubmission closes the bracket opened by BeginSubmission.
func (m *Manager) EndSubmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchDepth == 0 {
		return
	}
	m.batchDepth--
	if m.batchDepth == 0 {
		m.captured = false
	}
}

// CaptureSubmitted records the post-patch state of a submission. At most
// one snapshot is taken per bracket; outside a bracket it snapshots
// unconditionally.
func (m *Manager) CaptureSubmitted(g *graph.Graph) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchDepth > 0 {
		if m.captured {
			return
		}
		m.captured = true
	}
	m.push(g)
}

// Undo pops the most recent snapshot. Returns false when the stack is
// empty. The caller dispatches a Restore with the returned snapshot.
func (m *Manager) Undo() (*graph.Graph, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil, false
	}
	last := m.snapshots[len(m.snapshots)-1]
	m.snapshots = m.snapshots[:len(m.snapshots)-1]
	m.restoredAt = time.Now()
	if m.onDepth != nil {
		m.onDepth(len(m.snapshots))
	}
	m.logger.Debug("history restored", zap.Int("remaining", len(m.snapshots)))
	return last, true
}

// LayoutSuppressed reports whether automatic collision resolution should be
// skipped because an undo just rewound the graph.
func (m *Manager) LayoutSuppressed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.restoredAt.IsZero() && time.Since(m.restoredAt) < layoutHold
}

// Len returns the number of stored snapshots.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// push stores a deep copy and evicts the oldest entry past capacity.
// Callers hold m.mu.
func (m *Manager) push(g *graph.Graph) {
	if g == nil {
		return
	}
	m.snapshots = append(m.snapshots, g.Clone())
	if len(m.snapshots) > m.capacity {
		m.snapshots = m.snapshots[len(m.snapshots)-m.capacity:]
	}
	if m.onDepth != nil {
		m.onDepth(len(m.snapshots))
	}
}
