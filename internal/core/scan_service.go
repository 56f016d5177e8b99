package core

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"vidsift/internal/apperrors"
	"vidsift/internal/cache"
	"vidsift/internal/engine"
	"vidsift/internal/matching"
	"vidsift/pkg/vhash"
)

// ScanStatus tracks the progress of a corpus scan.
type ScanStatus struct {
	Running   bool   `json:"running"`
	RunID     string `json:"run_id,omitempty"`
	Total     int    `json:"total"`
	Done      int    `json:"done"`
	Failed    int    `json:"failed"`
	CacheHits int    `json:"cache_hits"`
}

// ScanResults is the outcome of the most recent completed scan.
type ScanResults struct {
	Report engine.Report    `json:"report"`
	Groups []matching.Group `json:"groups"`
	Unique []string         `json:"unique"`
}

// ScanService orchestrates walk -> pipeline -> match and exposes progress
// to the CLI and the review API. One scan runs at a time.
type ScanService struct {
	pipeline   *engine.Pipeline
	matcher    *matching.Matcher
	store      *cache.Cache
	extensions []string
	logger     *zap.Logger

	running atomic.Bool
	runID   atomic.Value // string
	total   atomic.Int64
	done    atomic.Int64
	failed  atomic.Int64
	hits    atomic.Int64

	results atomic.Value // *ScanResults

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScanService wires the engine components together.
func NewScanService(pipeline *engine.Pipeline, matcher *matching.Matcher, store *cache.Cache, extensions []string, logger *zap.Logger) *ScanService {
	s := &ScanService{
		pipeline:   pipeline,
		matcher:    matcher,
		store:      store,
		extensions: extensions,
		logger:     logger.With(zap.String("component", "scan_service")),
	}
	s.runID.Store("")
	s.pipeline.SetProgress(s.onProgress)
	return s
}

// RunOnce performs a full scan synchronously and returns the results.
func (s *ScanService) RunOnce(ctx context.Context, roots []string) (*ScanResults, error) {
	s.mu.Lock()
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil, apperrors.ErrScanAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.total.Store(0)
	s.done.Store(0)
	s.failed.Store(0)
	s.hits.Store(0)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.running.Store(false)
		s.mu.Unlock()
	}()

	s.logger.Info("Starting scan", zap.Strings("roots", roots))

	paths := Walk(runCtx, roots, s.extensions, s.logger)
	items, report, err := s.pipeline.Run(runCtx, paths)

	s.runID.Store(report.RunID)
	if err != nil {
		s.logger.Error("Scan aborted", zap.Error(err))
		return nil, err
	}

	hashes := make([]*vhash.VideoHash, 0, len(items))
	for _, it := range items {
		if it.Err == nil && it.Hash != nil {
			hashes = append(hashes, it.Hash)
		}
	}

	groups := s.matcher.SelfMatch(hashes)
	uniqueHashes := s.matcher.SearchUnique(hashes)
	unique := make([]string, len(uniqueHashes))
	for i, h := range uniqueHashes {
		unique[i] = h.Path
	}

	results := &ScanResults{
		Report: report,
		Groups: groups,
		Unique: unique,
	}
	s.results.Store(results)

	s.logger.Info("Scan finished",
		zap.Int("hashed", report.Hashed),
		zap.Int("failed", report.Failed),
		zap.Int("groups", len(groups)),
		zap.Int("unique", len(unique)),
		zap.Bool("cancelled", report.Cancelled),
	)
	return results, nil
}

// RunWithRefs hashes both sets and returns one group per reference with at
// least one match among the candidates (reference-match mode).
func (s *ScanService) RunWithRefs(ctx context.Context, candidateRoots, refRoots []string) ([]matching.Group, error) {
	candidates, err := s.hashSet(ctx, candidateRoots)
	if err != nil {
		return nil, err
	}
	refs, err := s.hashSet(ctx, refRoots)
	if err != nil {
		return nil, err
	}
	return s.matcher.ReferenceMatch(candidates, refs), nil
}

// hashSet runs the pipeline over one set of roots and keeps the successful
// hashes.
func (s *ScanService) hashSet(ctx context.Context, roots []string) ([]*vhash.VideoHash, error) {
	s.mu.Lock()
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil, apperrors.ErrScanAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.running.Store(false)
		s.mu.Unlock()
	}()

	items, _, err := s.pipeline.Run(runCtx, Walk(runCtx, roots, s.extensions, s.logger))
	if err != nil {
		return nil, err
	}

	hashes := make([]*vhash.VideoHash, 0, len(items))
	for _, it := range items {
		if it.Err == nil && it.Hash != nil {
			hashes = append(hashes, it.Hash)
		}
	}
	return hashes, nil
}

// Start launches a scan in the background, rejecting concurrent scans.
func (s *ScanService) Start(roots []string) error {
	if s.running.Load() {
		return apperrors.ErrScanAlreadyRunning
	}

	go func() {
		if _, err := s.RunOnce(context.Background(), roots); err != nil && !apperrors.IsCancelled(err) {
			s.logger.Error("Background scan failed", zap.Error(err))
		}
	}()
	return nil
}

// Cancel stops a running scan; already-computed results are kept.
func (s *ScanService) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Status returns the current progress snapshot.
func (s *ScanService) Status() *ScanStatus {
	return &ScanStatus{
		Running:   s.running.Load(),
		RunID:     s.runID.Load().(string),
		Total:     int(s.total.Load()),
		Done:      int(s.done.Load()),
		Failed:    int(s.failed.Load()),
		CacheHits: int(s.hits.Load()),
	}
}

// Results returns the last completed scan results.
func (s *ScanService) Results() (*ScanResults, bool) {
	r, ok := s.results.Load().(*ScanResults)
	return r, ok
}

// PurgeCache drops every cache entry. Refused while a scan is running.
func (s *ScanService) PurgeCache() error {
	if s.running.Load() {
		return apperrors.ErrScanAlreadyRunning
	}
	return s.store.Purge()
}

// onProgress folds pipeline events into the progress counters. Events
// arrive from every worker concurrently.
func (s *ScanService) onProgress(ev engine.Event) {
	switch ev.Stage {
	case engine.StageQueued:
		s.total.Add(1)
	case engine.StageDone:
		s.done.Add(1)
	case engine.StageFailed:
		s.failed.Add(1)
	case engine.StageCacheHit:
		s.hits.Add(1)
	}
	s.runID.Store(ev.RunID)
}
