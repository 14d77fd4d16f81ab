// Package cascade regenerates every response that depends on a changed
// input, one generation at a time. Editing an ancestor invalidates every
// answer conditioned on it; processing level-by-level keeps a downstream
// response from being rebuilt against a stale intermediate answer, while
// independent branches inside a level run concurrently.
package cascade

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tangent-backend/internal/application/ports"
	"tangent-backend/internal/application/services"
	"tangent-backend/internal/domain/graph"
	"tangent-backend/internal/domain/node"
	"tangent-backend/internal/observability"
	pkgerrors "tangent-backend/pkg/errors"
)

// Config tunes the orchestrator.
type Config struct {
	// Stream is passed through to every chat call.
	Stream ports.StreamOptions
	// MaxParallel bounds concurrent regenerations inside one level.
	MaxParallel int
}

// Orchestrator drives submissions and cascades over the graph service.
type Orchestrator struct {
	svc      *services.GraphService
	streamer ports.ChatStreamer
	cfgMu    sync.RWMutex
	cfg      Config
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator wires the cascade over a graph service and a streamer.
func NewOrchestrator(
	svc *services.GraphService,
	streamer ports.ChatStreamer,
	cfg Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		svc:      svc,
		streamer: streamer,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetConfig swaps the tuning at runtime, e.g. from a config hot reload. A
// cascade already in flight keeps the parallelism it started with; stream
// options take effect on the next chat call.
func (o *Orchestrator) SetConfig(cfg Config) {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	o.cfgMu.Lock()
	o.cfg = cfg
	o.cfgMu.Unlock()
}

func (o *Orchestrator) tuning() Config {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// OnInputSubmit handles a user submitting (or editing) the query on an
// input node: the query is patched in, the input's response child is
// (re)generated, and every transitively dependent response is refreshed
// generation by generation.
//
// Stream failures never escape: they are recorded on the affected response
// node's error field and prune only that branch's subtree. The returned
// error covers structural problems with the submission itself.
func (o *Orchestrator) OnInputSubmit(ctx context.Context, query, callerID string) error {
	caller := o.svc.Snapshot().Node(callerID)
	if caller == nil {
		return pkgerrors.NewNotFound("input node not found")
	}
	if caller.Type != node.TypeInput {
		return pkgerrors.NewValidation("submissions start at an input node")
	}

	hist := o.svc.History()
	hist.BeginSubmission()
	defer hist.EndSubmission()

	o.svc.SubmitQueryPatch(callerID, query)

	respID, err := o.ensureResponseChild(callerID)
	if err != nil {
		return err
	}

	if err := o.regenerate(ctx, respID); err != nil {
		// The branch error is on the node; nothing below it can be
		// rebuilt without its content.
		return nil
	}

	o.cascadeFrom(ctx, respID)
	return nil
}

// Refresh regenerates the given response node and its dependent subtree
// without a new submission, e.g. after a context node's value was edited.
func (o *Orchestrator) Refresh(ctx context.Context, responseID string) error {
	resp := o.svc.Snapshot().Node(responseID)
	if resp == nil {
		return pkgerrors.NewNotFound("response node not found")
	}
	if resp.Type != node.TypeResponse {
		return pkgerrors.NewValidation("refresh targets a response node")
	}

	// One undo step for the whole rebuild. The snapshot is the graph before
	// any chunk streamed in, so undo restores the pre-refresh answers rather
	// than a partial value.
	hist := o.svc.History()
	hist.BeginSubmission()
	defer hist.EndSubmission()
	hist.CaptureSubmitted(o.svc.Snapshot())

	if err := o.regenerate(ctx, responseID); err != nil {
		return nil
	}
	o.cascadeFrom(ctx, responseID)
	return nil
}

// ensureResponseChild returns the input's existing response child or
// creates and links one, placed below the input.
func (o *Orchestrator) ensureResponseChild(inputID string) (string, error) {
	g := o.svc.Snapshot()
	input := g.Node(inputID)
	if input == nil {
		return "", pkgerrors.NewNotFound("input node not found")
	}
	for _, childID := range input.ChildrenIDs {
		if child := g.Node(childID); child != nil && child.Type == node.TypeResponse {
			return childID, nil
		}
	}
	resp, err := o.svc.CreateNodeBelow(inputID, node.TypeResponse, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// regenerate streams a fresh answer into one response node. The working
// graph view is re-read from the service at each step, so the query patched
// a moment ago is already reflected in the transcript even though other
// branches may be streaming concurrently.
func (o *Orchestrator) regenerate(ctx context.Context, responseID string) error {
	working := o.svc.Snapshot()
	resp := working.Node(responseID)
	if resp == nil {
		return pkgerrors.NewNotFound("response node vanished before regeneration")
	}

	startID := o.transcriptStart(working, resp)

	// Empty value is the canonical loading state; stale errors clear now.
	o.svc.PatchNode(responseID, node.Patch{
		Value: node.StringPtr(""),
		Err:   node.StringPtr(""),
	})

	transcript := o.svc.BuildTranscript(startID)

	final, err := o.streamer.StreamChat(ctx, transcript, func(sofar string) {
		o.svc.PatchNode(responseID, node.Patch{Value: node.StringPtr(sofar)})
	}, o.tuning().Stream)

	if err != nil {
		o.logger.Warn("stream failed for branch",
			zap.String("response", responseID), zap.Error(err))
		o.svc.PatchNode(responseID, node.Patch{Err: node.StringPtr(err.Error())})
		if o.metrics != nil {
			o.metrics.Regenerations.WithLabelValues("error").Inc()
		}
		return err
	}

	o.svc.PatchNode(responseID, node.Patch{Value: node.StringPtr(final)})
	o.ensureInputChild(responseID)
	if o.metrics != nil {
		o.metrics.Regenerations.WithLabelValues("ok").Inc()
	}
	return nil
}

// transcriptStart picks the node the ancestor walk begins at: the
// response's input parent, so the transcript ends on the question this
// response answers. A response with no input parent (degenerate graphs)
// starts at itself.
func (o *Orchestrator) transcriptStart(g *graph.Graph, resp *node.Node) string {
	for _, pid := range resp.ParentIDs {
		if p := g.Node(pid); p != nil && p.Type == node.TypeInput {
			return pid
		}
	}
	return resp.ID
}

// ensureInputChild gives a freshly answered response an empty input child
// so the conversation can continue underneath it.
func (o *Orchestrator) ensureInputChild(responseID string) {
	g := o.svc.Snapshot()
	resp := g.Node(responseID)
	if resp == nil {
		return
	}
	for _, childID := range resp.ChildrenIDs {
		if child := g.Node(childID); child != nil && child.Type == node.TypeInput {
			return
		}
	}
	if _, err := o.svc.CreateNodeBelow(responseID, node.TypeInput, ""); err != nil {
		o.logger.Warn("could not create follow-up input",
			zap.String("response", responseID), zap.Error(err))
	}
}

// cascadeFrom refreshes every dependent response generation below the given
// response. Levels run strictly in order; branches inside a level run
// concurrently, each recording its own failure without disturbing siblings.
// A failed branch prunes its own response descendants from later levels.
func (o *Orchestrator) cascadeFrom(ctx context.Context, responseID string) {
	levels := o.svc.ResponseLevels(responseID)
	if len(levels) == 0 {
		return
	}

	maxParallel := o.tuning().MaxParallel

	var mu sync.Mutex
	failed := make(map[string]bool)

	for depth, level := range levels {
		var eg errgroup.Group
		eg.SetLimit(maxParallel)

		// Siblings inside a level cannot be each other's ancestors, so a
		// copy of the failure set taken at the level boundary is complete
		// for every branch in it.
		mu.Lock()
		failedAbove := make(map[string]bool, len(failed))
		for id := range failed {
			failedAbove[id] = true
		}
		mu.Unlock()

		snapshot := o.svc.Snapshot()
		for _, id := range level {
			if o.descendsFromFailure(snapshot, id, failedAbove) {
				o.logger.Debug("skipping branch below failed ancestor",
					zap.String("response", id), zap.Int("level", depth))
				continue
			}
			id := id
			eg.Go(func() error {
				if err := o.regenerate(ctx, id); err != nil {
					mu.Lock()
					failed[id] = true
					mu.Unlock()
				}
				// Sibling branches are independent; never abort the level.
				return nil
			})
		}
		// The whole generation settles before the next one starts.
		_ = eg.Wait()
	}
}

// descendsFromFailure reports whether any ancestor of id already failed in
// this cascade.
func (o *Orchestrator) descendsFromFailure(g *graph.Graph, id string, failed map[string]bool) bool {
	if len(failed) == 0 {
		return false
	}
	for _, ancestorID := range g.Ancestors(id) {
		if failed[ancestorID] {
			return true
		}
	}
	return false
}
