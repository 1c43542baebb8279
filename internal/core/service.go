package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/logging"
	"github.com/JonMunkholm/csvdiff/internal/table"
)

// DefaultTimeout bounds a single comparison when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Minute

// Options are the service-wide defaults applied to every request.
type Options struct {
	Timeout    time.Duration
	Workers    int // Goroutines for the cell diff of large tables
	MaxRows    int // Per source; zero means unlimited
	Duplicates compare.DuplicatePolicy
	Delimiter  rune
	Encoding   string
	// NullTokens are loaded as empty cells unless a request names its own.
	NullTokens   []string
	StripFormula bool
}

// Service runs comparisons and keeps their results in a Store.
type Service struct {
	store   Store
	limiter *Limiter
	opts    Options
	now     func() time.Time
}

// NewService creates a Service. store must not be nil; a nil limiter gets
// the default slot count.
func NewService(store Store, limiter *Limiter, opts Options) *Service {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Duplicates == "" {
		opts.Duplicates = compare.DuplicateFail
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &Service{
		store:   store,
		limiter: limiter,
		opts:    opts,
		now:     time.Now,
	}
}

// Limiter returns the limiter guarding comparisons.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// Columns loads both sources and reports their headers and the columns they
// share. It fails with compare.ErrNoCommonColumns when they share none.
func (s *Service) Columns(ctx context.Context, before, after Source, req Request) (Columns, error) {
	var cols Columns
	err := s.limiter.Do(ctx, func() error {
		bt, at, err := s.loadPair(ctx, before, after, req)
		if err != nil {
			return err
		}
		common, err := compare.KeyCandidates(bt, at)
		if err != nil {
			return err
		}
		cols = Columns{Before: bt.Columns(), After: at.Columns(), Common: common}
		return nil
	})
	return cols, err
}

// CompareSources loads both sources concurrently, compares them by req.Key
// and stores the result.
func (s *Service) CompareSources(ctx context.Context, before, after Source, req Request) (*Comparison, error) {
	if req.Key == "" {
		return nil, ErrNoKey
	}

	id := uuid.New()
	logger := logging.WithFields(ctx, "comparison_id", id, "key", req.Key)
	if ip, _ := ClientFromContext(ctx); ip != "" {
		logger = logger.With("client_ip", ip)
	}

	var c *Comparison
	err := s.limiter.Do(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		start := s.now()
		logger.Info("comparison started", "before", before.Name, "after", after.Name)

		bt, at, err := s.loadPair(ctx, before, after, req)
		if err != nil {
			return err
		}

		policy := req.Duplicates
		if policy == "" {
			policy = s.opts.Duplicates
		}
		res, err := compare.Compare(bt, at, req.Key,
			compare.WithDuplicatePolicy(policy),
			compare.WithIgnoreColumns(req.Ignore...),
			compare.WithWorkers(s.opts.Workers),
			compare.WithContext(ctx),
		)
		if err != nil {
			return err
		}

		c = &Comparison{
			ID:         id,
			CreatedAt:  start.UTC(),
			BeforeName: before.Name,
			AfterName:  after.Name,
			KeyColumn:  req.Key,
			Result:     res,
		}
		if err := s.store.Save(ctx, c); err != nil {
			return fmt.Errorf("save comparison: %w", err)
		}

		sum := res.Summary()
		if dups := res.DuplicateKeys(); dups.Len() > 0 {
			logger.Warn("duplicate key values collapsed",
				"policy", res.Policy(),
				"before", dups.Before,
				"after", dups.After,
			)
		}
		logger.Info("comparison completed",
			"added", sum.Added,
			"removed", sum.Removed,
			"changed", sum.Changed,
			"before_rows", sum.BeforeRows,
			"after_rows", sum.AfterRows,
			"duplicates", sum.Duplicates,
			"duration_ms", s.now().Sub(start).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		logger.Warn("comparison failed", "error", err)
		return nil, err
	}
	return c, nil
}

// CompareFiles compares two files on disk. The sources are named after the
// file names.
func (s *Service) CompareFiles(ctx context.Context, beforePath, afterPath string, req Request) (*Comparison, error) {
	bf, err := openSource(beforePath)
	if err != nil {
		return nil, err
	}
	defer bf.Close()

	af, err := openSource(afterPath)
	if err != nil {
		return nil, err
	}
	defer af.Close()

	return s.CompareSources(ctx,
		Source{Name: filepath.Base(beforePath), R: bf},
		Source{Name: filepath.Base(afterPath), R: af},
		req,
	)
}

// ColumnsFiles is Columns for two files on disk.
func (s *Service) ColumnsFiles(ctx context.Context, beforePath, afterPath string, req Request) (Columns, error) {
	bf, err := openSource(beforePath)
	if err != nil {
		return Columns{}, err
	}
	defer bf.Close()

	af, err := openSource(afterPath)
	if err != nil {
		return Columns{}, err
	}
	defer af.Close()

	return s.Columns(ctx,
		Source{Name: filepath.Base(beforePath), R: bf},
		Source{Name: filepath.Base(afterPath), R: af},
		req,
	)
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &table.LoadError{Source: filepath.Base(path), Kind: table.KindUnreadable, Err: err}
	}
	return f, nil
}

// Get returns a stored comparison.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Comparison, error) {
	return s.store.Get(ctx, id)
}

// List returns the newest stored comparisons.
func (s *Service) List(ctx context.Context, limit int) ([]ComparisonInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.List(ctx, limit)
}

// Delete removes a stored comparison.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("comparison deleted", "comparison_id", id)
	return nil
}

// loadPair loads both sources at the same time.
func (s *Service) loadPair(ctx context.Context, before, after Source, req Request) (*table.Table, *table.Table, error) {
	if before.R == nil || after.R == nil {
		return nil, nil, ErrNoFile
	}

	opts := s.loadOptions(req)
	var bt, at *table.Table

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := table.Load(&ctxReader{ctx: gctx, r: before.R}, before.Name, opts...)
		bt = t
		return err
	})
	g.Go(func() error {
		t, err := table.Load(&ctxReader{ctx: gctx, r: after.R}, after.Name, opts...)
		at = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return bt, at, nil
}

func (s *Service) loadOptions(req Request) []table.Option {
	delim := req.Delimiter
	if delim == 0 {
		delim = s.opts.Delimiter
	}
	enc := req.Encoding
	if enc == "" {
		enc = s.opts.Encoding
	}

	opts := []table.Option{
		table.WithDelimiter(delim),
		table.WithEncoding(enc),
		table.WithTrimSpace(req.TrimSpace),
		table.WithStripFormula(req.StripFormula || s.opts.StripFormula),
		table.WithMaxRows(s.opts.MaxRows),
	}
	tokens := req.NullTokens
	if len(tokens) == 0 {
		tokens = s.opts.NullTokens
	}
	if len(tokens) > 0 {
		opts = append(opts, table.WithNullTokens(tokens...))
	}
	return opts
}

// ctxReader stops a load when its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
