package search

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"resident-matcher/internal/common"
	"resident-matcher/internal/diagnostic"
	"resident-matcher/internal/logging"
	"resident-matcher/internal/match"
	"resident-matcher/internal/resident"
)

// ambiguousGap is the similarity spread under which the top two candidates
// are logged as ambiguous.
const ambiguousGap = 10

// Result is the outcome of one Search call.
type Result struct {
	// Seq is the call's sequence number; zero for calls that did no work.
	Seq uint64
	// Candidates is never nil; it is empty on failure or when nothing matched.
	Candidates match.CandidateList
	// Err is a *diagnostic.Error (or a context error) when the call failed.
	Err error
}

// Message returns the human-readable failure message, or "" on success.
func (r Result) Message() string {
	return diagnostic.Message(r.Err)
}

// State is the observable view of the most recently started search.
type State struct {
	Loading bool
	// Error is the last failure message; empty after a successful call.
	Error      string
	Candidates match.CandidateList
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.OrNop(logger)
	}
}

// WithOptions replaces the ranking options.
// A non-positive MaxResults falls back to match.DefaultMaxResults.
func WithOptions(opts match.Options) Option {
	return func(o *Orchestrator) {
		if opts.MaxResults <= 0 {
			opts.MaxResults = match.DefaultMaxResults
		}

		o.opts = opts
	}
}

// WithStateHook registers fn to receive every State transition, in order.
// Calls to fn never overlap. fn may call State; it may run on the goroutine
// of a different Search than the one that caused the transition.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

// Orchestrator runs resident searches against a Directory.
type Orchestrator struct {
	directory resident.Directory
	opts      match.Options
	logger    *zap.Logger
	onState   func(State)

	mu    sync.Mutex
	seq   uint64 // last started call
	state State

	// Hook delivery queue, guarded by mu. One goroutine delivers at a time,
	// in transition order.
	pending    []State
	delivering bool
}

// New creates an Orchestrator over directory.
func New(directory resident.Directory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		directory: directory,
		opts:      match.DefaultOptions(),
		logger:    zap.NewNop(),
		state:     State{Candidates: match.CandidateList{}},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// State returns a snapshot of the observable state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snapshot()
}

// Search matches rawQueries against the resident directory.
// It never panics or returns a Go error: failures are reported in Result.Err
// with an empty candidate list. An empty rawQueries returns immediately
// without touching the directory or the State.
func (o *Orchestrator) Search(ctx context.Context, rawQueries []string) Result {
	if common.IsEmpty(rawQueries) {
		return Result{Candidates: match.CandidateList{}}
	}

	seq := o.begin()
	logger := o.logger.With(zap.Uint64("seq", seq))

	start := time.Now()

	logger.Debug("search started", zap.Int("queries", len(rawQueries)))

	res := o.run(ctx, logger, rawQueries)
	res.Seq = seq

	if res.Err != nil {
		logger.Warn("search failed",
			zap.String("message", res.Message()),
			zap.Stringer("kind", diagnostic.KindOf(res.Err)),
			zap.Error(res.Err))
	} else {
		fields := []zap.Field{
			zap.Int("candidates", len(res.Candidates)),
			zap.Duration("took", time.Since(start)),
		}

		if best := res.Candidates.Best(); best != nil {
			fields = append(fields,
				zap.String("best", string(best.ID)),
				zap.Int("similarity", best.Similarity),
				zap.Bool("ambiguous", res.Candidates.IsAmbiguous(ambiguousGap)))
		}

		logger.Debug("search finished", fields...)
	}

	o.finish(seq, res)

	return res
}

// run fetches the directory and ranks every query.
func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, rawQueries []string) Result {
	if o.directory == nil {
		return failed(diagnostic.Configuration("resolve directory endpoint",
			"Resident directory is not configured", nil))
	}

	residents, err := o.directory.Residents(ctx)
	if err != nil {
		if diagnostic.KindOf(err) == 0 {
			err = diagnostic.Transport("fetch residents", "Could not load the resident directory", err)
		}

		return failed(err)
	}

	logger.Debug("resident directory loaded", zap.Int("residents", len(residents)))

	lists, err := o.rankAll(ctx, rawQueries, residents)
	if err != nil {
		return failed(err)
	}

	return Result{Candidates: match.Merge(lists, o.opts.MaxResults)}
}

// rankAll ranks each query in its own goroutine. The returned lists are in
// query order, so the merge is deterministic.
func (o *Orchestrator) rankAll(
	ctx context.Context,
	rawQueries []string,
	residents []resident.Record,
) ([]match.CandidateList, error) {
	lists := make([]match.CandidateList, len(rawQueries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, query := range rawQueries {
		g.Go(func() error {
			err := gctx.Err()
			if err != nil {
				return err
			}

			lists[i] = match.Rank(query, residents, o.opts)

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return lists, nil
}

// begin starts a call: it takes the next sequence number and sets Loading.
func (o *Orchestrator) begin() uint64 {
	o.mu.Lock()

	o.seq++
	seq := o.seq
	o.state.Loading = true

	o.publish()

	return seq
}

// finish applies res to the State unless a later call has started since.
func (o *Orchestrator) finish(seq uint64, res Result) {
	o.mu.Lock()

	if latest := o.seq; seq != latest {
		o.mu.Unlock()
		o.logger.Debug("stale search result not published",
			zap.Uint64("seq", seq), zap.Uint64("latest", latest))

		return
	}

	o.state.Loading = false
	o.state.Error = res.Message()
	o.state.Candidates = res.Candidates

	o.publish()
}

// publish queues a snapshot for the hook and releases o.mu.
// Must be called with o.mu held. The hook never runs under o.mu: if another
// goroutine is already delivering, it picks the snapshot up; otherwise this
// goroutine drains the queue itself.
func (o *Orchestrator) publish() {
	if o.onState == nil {
		o.mu.Unlock()

		return
	}

	o.pending = append(o.pending, o.snapshot())

	if o.delivering {
		o.mu.Unlock()

		return
	}

	o.delivering = true

	for len(o.pending) > 0 {
		snap := o.pending[0]
		o.pending = o.pending[1:]

		o.mu.Unlock()
		o.onState(snap)
		o.mu.Lock()
	}

	o.pending = nil
	o.delivering = false
	o.mu.Unlock()
}

// snapshot copies the state. Must be called with o.mu held.
func (o *Orchestrator) snapshot() State {
	snap := o.state
	snap.Candidates = append(match.CandidateList{}, o.state.Candidates...)

	return snap
}

func failed(err error) Result {
	return Result{Candidates: match.CandidateList{}, Err: err}
}
