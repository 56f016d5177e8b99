// Package engine is the pipeline coordinator: it schedules
// digest -> cache-lookup -> decode -> hash -> cache-store across bounded
// worker pools with backpressure, and reports per-item outcomes plus a
// final per-kind failure summary.
package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vidsift/internal/apperrors"
	"vidsift/internal/cache"
	"vidsift/internal/frames"
	"vidsift/pkg/vhash"
)

const (
	defaultQueueSize     = 64
	defaultDigestWorkers = 2

	// fdsPerDecode is a conservative estimate of descriptors one decoder
	// child consumes (pipes, the input file, the binary).
	fdsPerDecode = 8
	// fdBaseline reserves descriptors for the process itself.
	fdBaseline = 64

	// Escalation rule: more than escalationLimit resource failures within
	// a window of escalationWindow completed items abort the run.
	escalationWindow = 10
	escalationLimit  = 3
)

// Options configure the coordinator.
type Options struct {
	Params vhash.Params
	// DecodeWorkers sizes the decode pool; 0 means cpu_count - 1.
	DecodeWorkers int
	// DigestWorkers sizes the I/O-bound digest pool; 0 means 2.
	DigestWorkers int
	// QueueSize bounds every inter-stage queue; 0 means 64.
	QueueSize int
	// SpawnRate limits decoder launches per second; 0 means unpaced.
	SpawnRate float64
}

// Report is the final run summary.
type Report struct {
	RunID          string
	Total          int
	Hashed         int
	CacheHits      int
	Failed         int
	FailuresByKind map[string]int
	Cancelled      bool
	Elapsed        time.Duration
}

// Pipeline coordinates one or more runs. Safe for sequential reuse; one
// run at a time.
type Pipeline struct {
	source   frames.Source
	store    *cache.Cache
	opts     Options
	logger   *zap.Logger
	progress ProgressFunc

	limiter     *rate.Limiter
	fdSoftLimit uint64
	activeSpawn atomic.Int64
}

// New builds a coordinator over the given frame source and cache.
func New(source frames.Source, store *cache.Cache, opts Options, logger *zap.Logger) *Pipeline {
	if opts.DecodeWorkers <= 0 {
		opts.DecodeWorkers = runtime.NumCPU() - 1
		if opts.DecodeWorkers < 1 {
			opts.DecodeWorkers = 1
		}
	}
	if opts.DigestWorkers <= 0 {
		opts.DigestWorkers = defaultDigestWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	limit := rate.Inf
	if opts.SpawnRate > 0 {
		limit = rate.Limit(opts.SpawnRate)
	}

	return &Pipeline{
		source:      source,
		store:       store,
		opts:        opts,
		logger:      logger.With(zap.String("component", "pipeline")),
		limiter:     rate.NewLimiter(limit, 1),
		fdSoftLimit: raiseFDLimit(),
	}
}

// SetProgress installs an optional progress consumer.
func (p *Pipeline) SetProgress(fn ProgressFunc) {
	p.progress = fn
}

type workItem struct {
	path string
	key  cache.Key
}

// Run drains the path iterator through the staged pools and returns every
// item outcome plus the run report. Item order is not input order. The
// returned error is non-nil only for a pipeline abort (missing decoder,
// resource escalation); per-item failures land in the items.
func (p *Pipeline) Run(ctx context.Context, paths <-chan string) ([]Item, Report, error) {
	start := time.Now()
	runID := uuid.New().String()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalOnce sync.Once
	var fatalErr error
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			p.logger.Error("Aborting pipeline", zap.String("run_id", runID), zap.Error(err))
			cancel()
		})
	}

	digestQ := make(chan string, p.opts.QueueSize)
	decodeQ := make(chan *workItem, p.opts.QueueSize)
	resultQ := make(chan Item, p.opts.QueueSize)

	// Enumerate: feed the digest queue until the iterator drains.
	go func() {
		defer close(digestQ)
		for path := range paths {
			p.emit(runID, path, StageQueued, nil)
			select {
			case digestQ <- path:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var digestWG sync.WaitGroup
	for i := 0; i < p.opts.DigestWorkers; i++ {
		digestWG.Add(1)
		go func() {
			defer digestWG.Done()
			p.digestWorker(runCtx, runID, digestQ, decodeQ, resultQ)
		}()
	}
	go func() {
		digestWG.Wait()
		close(decodeQ)
	}()

	var decodeWG sync.WaitGroup
	for i := 0; i < p.opts.DecodeWorkers; i++ {
		decodeWG.Add(1)
		go func() {
			defer decodeWG.Done()
			p.decodeWorker(runCtx, runID, decodeQ, resultQ, abort)
		}()
	}
	go func() {
		decodeWG.Wait()
		close(resultQ)
	}()

	// Collect: aggregate outcomes and apply the escalation rule.
	var items []Item
	report := Report{RunID: runID, FailuresByKind: make(map[string]int)}
	recentKinds := make([]string, 0, escalationWindow)
	for item := range resultQ {
		items = append(items, item)
		report.Total++
		switch {
		case item.Failed():
			report.Failed++
			report.FailuresByKind[item.Kind]++
			if apperrors.IsFatal(item.Err) {
				abort(item.Err)
			}
		case item.Err == nil:
			report.Hashed++
			if item.CacheHit {
				report.CacheHits++
			}
		}

		recentKinds = append(recentKinds, item.Kind)
		if len(recentKinds) > escalationWindow {
			recentKinds = recentKinds[1:]
		}
		exhausted := 0
		for _, k := range recentKinds {
			if k == apperrors.KindResourceExhausted {
				exhausted++
			}
		}
		if exhausted > escalationLimit {
			abort(apperrors.NewResourceExhausted("", "repeated resource exhaustion", nil))
		}
	}

	report.Cancelled = ctx.Err() != nil
	report.Elapsed = time.Since(start)

	p.logger.Info("Pipeline run finished",
		zap.String("run_id", runID),
		zap.Int("total", report.Total),
		zap.Int("hashed", report.Hashed),
		zap.Int("cache_hits", report.CacheHits),
		zap.Int("failed", report.Failed),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("elapsed", report.Elapsed),
	)
	return items, report, fatalErr
}

// digestWorker computes the content digest and resolves cache hits before
// anything expensive happens.
func (p *Pipeline) digestWorker(ctx context.Context, runID string, in <-chan string, out chan<- *workItem, results chan<- Item) {
	for path := range in {
		if ctx.Err() != nil {
			results <- Item{Path: path, Err: apperrors.ErrCancelled}
			continue
		}
		p.emit(runID, path, StageDigesting, nil)

		fileDigest, err := cache.FileDigest(path)
		if err != nil {
			p.fail(runID, results, Item{Path: path}, apperrors.NewFileUnreadable(path, err))
			continue
		}
		key := cache.Key{File: fileDigest, Params: p.opts.Params.Digest()}

		if vh, ok := p.store.Lookup(key); ok {
			p.emit(runID, path, StageCacheHit, nil)
			p.emit(runID, path, StageDone, nil)
			results <- Item{Path: path, Hash: rebind(vh, path), CacheHit: true}
			continue
		}

		select {
		case out <- &workItem{path: path, key: key}:
		case <-ctx.Done():
			results <- Item{Path: path, Err: apperrors.ErrCancelled}
		}
	}
}

// decodeWorker owns decode+crop+hash+store for one item at a time. The
// cache serializes builders per key, so duplicate keys in flight cost one
// decode total.
func (p *Pipeline) decodeWorker(ctx context.Context, runID string, in <-chan *workItem, results chan<- Item, abort func(error)) {
	for wi := range in {
		if ctx.Err() != nil {
			results <- Item{Path: wi.path, Err: apperrors.ErrCancelled}
			continue
		}

		vh, hit, err := p.store.GetOrBuild(ctx, wi.key, func(buildCtx context.Context) (*vhash.VideoHash, error) {
			return p.build(buildCtx, runID, wi.path)
		})
		switch {
		case err != nil:
			if apperrors.IsFatal(err) {
				abort(err)
			}
			p.fail(runID, results, Item{Path: wi.path}, err)
		default:
			p.emit(runID, wi.path, StageDone, nil)
			results <- Item{Path: wi.path, Hash: rebind(vh, wi.path), CacheHit: hit}
		}
	}
}

// build runs the expensive half of the pipeline for one cache miss.
func (p *Pipeline) build(ctx context.Context, runID, path string) (*vhash.VideoHash, error) {
	if err := p.waitForFDBudget(ctx, path); err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperrors.ErrCancelled
	}

	p.emit(runID, path, StageDecoding, nil)
	p.activeSpawn.Add(1)
	res, err := p.source.Sample(ctx, path)
	p.activeSpawn.Add(-1)
	if err != nil {
		return nil, err
	}

	vh, err := vhash.New(path, res.DurationMS, res.Seq, res.Crop, p.opts.Params)
	if err != nil {
		return nil, apperrors.NewDecoderCrashed(path, -1, err)
	}
	p.emit(runID, path, StageStoring, nil)
	return vh, nil
}

// waitForFDBudget blocks until launching another decoder cannot breach the
// soft descriptor limit. Waiting too long is resource exhaustion, not a
// hang.
func (p *Pipeline) waitForFDBudget(ctx context.Context, path string) error {
	if p.fdSoftLimit == 0 {
		return nil
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		need := uint64(p.activeSpawn.Load()+1)*fdsPerDecode + fdBaseline
		if need < p.fdSoftLimit {
			return nil
		}
		if time.Now().After(deadline) {
			return apperrors.NewResourceExhausted(path, "file descriptor budget exhausted", nil)
		}
		select {
		case <-ctx.Done():
			return apperrors.ErrCancelled
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (p *Pipeline) fail(runID string, results chan<- Item, item Item, err error) {
	if apperrors.IsCancelled(err) {
		item.Err = apperrors.ErrCancelled
		results <- item
		return
	}
	item.Err = err
	item.Kind = apperrors.Kind(err)
	p.emit(runID, item.Path, StageFailed, err)
	p.logger.Warn("Item failed",
		zap.String("run_id", runID),
		zap.String("path", item.Path),
		zap.String("kind", item.Kind),
		zap.Error(err),
	)
	results <- item
}

func (p *Pipeline) emit(runID, path string, stage Stage, err error) {
	if p.progress == nil {
		return
	}
	p.progress(Event{RunID: runID, Path: path, Stage: stage, Err: err})
}

// rebind returns a copy of a cached hash carrying the queried path: two
// byte-identical files share one cache entry but report their own paths.
func rebind(vh *vhash.VideoHash, path string) *vhash.VideoHash {
	if vh == nil || vh.Path == path {
		return vh
	}
	cp := *vh
	cp.Path = path
	return &cp
}
