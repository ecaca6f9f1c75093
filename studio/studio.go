// ABOUTME: Composition of the artifact pipeline: extraction, the artifact store, live preview, and persistence.
// ABOUTME: Opening an artifact starts a fresh preview session; closing it tears the session down.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/extract"
	"github.com/2389-research/vellum/generate"
	"github.com/2389-research/vellum/persist"
	"github.com/2389-research/vellum/preview"
	"github.com/2389-research/vellum/render"
)

// ErrNoSource is returned by OpenGenerated when no generation source is configured.
var ErrNoSource = errors.New("no generation source configured")

// ErrNoRepository is returned by operations that need persistence when none is configured.
var ErrNoRepository = errors.New("no artifact repository configured")

// Option configures a Studio.
type Option func(*Studio)

// WithRepository persists artifacts on open and on every file update.
func WithRepository(r *persist.Repository) Option {
	return func(s *Studio) {
		s.repo = r
	}
}

// WithSource enables OpenGenerated.
func WithSource(src generate.Source) Option {
	return func(s *Studio) {
		s.source = src
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Studio) {
		s.extractor = e
	}
}

// WithStaticCache replaces the static preview cache.
func WithStaticCache(c *render.Cache) Option {
	return func(s *Studio) {
		s.static = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Studio) {
		s.logger = l
	}
}

// Studio coordinates one artifact store and one preview orchestrator.
type Studio struct {
	store     *artifact.Store
	previews  *preview.Orchestrator
	extractor *extract.Extractor
	repo      *persist.Repository
	source    generate.Source
	static    *render.Cache
	logger    *log.Logger

	// serializes open, close and updates so each store change is followed by
	// the matching preview start
	mu sync.Mutex
}

// New creates a Studio.
func New(store *artifact.Store, previews *preview.Orchestrator, opts ...Option) *Studio {
	s := &Studio{
		store:     store,
		previews:  previews,
		extractor: extract.New(),
		static:    render.NewCache(10 * time.Minute),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the artifact store.
func (s *Studio) Store() *artifact.Store { return s.store }

// Previews returns the preview orchestrator.
func (s *Studio) Previews() *preview.Orchestrator { return s.previews }

// HasSource reports whether OpenGenerated can be used.
func (s *Studio) HasSource() bool { return s.source != nil }

// HasRepository reports whether artifacts are persisted.
func (s *Studio) HasRepository() bool { return s.repo != nil }

// OpenRaw extracts files from raw model output and opens them.
func (s *Studio) OpenRaw(ctx context.Context, raw string) (extract.Result, artifact.Artifact, error) {
	res := s.extractor.Parse(raw)
	a, err := s.open(ctx, res.Artifact(), true)
	if err != nil {
		return res, artifact.Artifact{}, err
	}
	s.logger.Printf("component=studio action=open_raw artifact=%s strategy=%s files=%d", a.ID, res.Strategy, len(a.Files))
	return res, a, nil
}

// OpenGenerated asks the source for output and opens what it produced.
func (s *Studio) OpenGenerated(ctx context.Context, prompt string) (extract.Result, artifact.Artifact, error) {
	if s.source == nil {
		return extract.Result{}, artifact.Artifact{}, ErrNoSource
	}
	raw, err := s.source.Generate(ctx, prompt)
	if err != nil {
		return extract.Result{}, artifact.Artifact{}, fmt.Errorf("generate artifact: %w", err)
	}
	return s.OpenRaw(ctx, raw)
}

// Open opens an already-built artifact.
func (s *Studio) Open(ctx context.Context, a artifact.Artifact) (artifact.Artifact, error) {
	return s.open(ctx, a, true)
}

// Reopen loads a persisted artifact and opens it.
func (s *Studio) Reopen(ctx context.Context, id string) (artifact.Artifact, error) {
	if s.repo == nil {
		return artifact.Artifact{}, ErrNoRepository
	}
	a, err := s.repo.Load(ctx, id)
	if err != nil {
		return artifact.Artifact{}, err
	}
	return s.open(ctx, a, false)
}

func (s *Studio) open(ctx context.Context, a artifact.Artifact, save bool) (artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Open(a); err != nil {
		return artifact.Artifact{}, err
	}
	opened, _ := s.store.Current()
	if save {
		s.persist(ctx, opened)
	}
	sess := s.previews.Start(opened.FileMap())
	s.logger.Printf("component=studio action=open artifact=%s session=%s", opened.ID, sess.ID())
	return opened, nil
}

// Close closes the artifact and stops its preview.
func (s *Studio) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Close()
	if err := s.previews.Stop(ctx); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	return nil
}

// CommitEdit commits the active draft, persists the artifact and restarts the
// preview with the new contents.
func (s *Studio) CommitEdit(ctx context.Context, opts ...artifact.CommitOption) error {
	return s.update(ctx, func() error { return s.store.CommitEdit(opts...) })
}

// UpdateFile writes content into a file, persists and restarts the preview.
func (s *Studio) UpdateFile(ctx context.Context, id, content string) error {
	return s.update(ctx, func() error { return s.store.UpdateFile(id, content) })
}

// update runs write and the follow-up persist and restart under one lock, so
// an open cannot slip in between and have the wrong artifact restarted.
func (s *Studio) update(ctx context.Context, write func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := write(); err != nil {
		return err
	}
	a, ok := s.store.Current()
	if !ok {
		return nil
	}
	s.persist(ctx, a)
	s.previews.Start(a.FileMap())
	return nil
}

// RetryPreview starts a fresh session for the open artifact.
func (s *Studio) RetryPreview() (*preview.Session, error) {
	return s.previews.Retry()
}

// StaticPreview renders the open artifact without executing it.
func (s *Studio) StaticPreview() (string, error) {
	a, ok := s.store.Current()
	if !ok {
		return "", artifact.ErrNoArtifact
	}
	return s.static.Render(a.Files), nil
}

// Artifacts lists persisted artifacts, newest first.
func (s *Studio) Artifacts(ctx context.Context) ([]persist.Summary, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.List(ctx)
}

// persist saves a copy of a. Failures are logged, not returned.
func (s *Studio) persist(ctx context.Context, a artifact.Artifact) {
	if s.repo == nil {
		return
	}
	if _, err := s.repo.Save(ctx, a); err != nil {
		s.logger.Printf("component=studio action=persist_failed artifact=%s err=%v", a.ID, err)
	}
}
