package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/importer"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// Test errors.
var (
	ErrNoQuestions     = errors.New("test has no questions")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// ImportError carries the row-level messages of a rejected import.
type ImportError struct {
	Errors []string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import rejected: %s", strings.Join(e.Errors, "; "))
}

// TestService handles test import, listing and the question paper cache.
type TestService struct {
	tests     TestStore
	questions QuestionStore
	rdb       *redis.Client
	cfg       *config.Config
	log       zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests TestStore, questions QuestionStore, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *TestService {
	return &TestService{
		tests:     tests,
		questions: questions,
		rdb:       rdb,
		cfg:       cfg,
		log:       log.With().Str("component", "test_service").Logger(),
	}
}

// Import parses a .csv or .xlsx question file and stores it as a new test.
// Row problems come back as *ImportError; nothing is stored in that case.
func (s *TestService) Import(ctx context.Context, req model.ImportTestRequest, filename string, r io.Reader) (*model.Test, error) {
	var (
		records []importer.Record
		errs    []string
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		records, errs = importer.Import(string(data))
	case ".xlsx":
		records, errs = importer.ImportXLSX(r)
	default:
		return nil, ErrUnsupportedFile
	}
	if len(errs) > 0 {
		return nil, &ImportError{Errors: errs}
	}
	if len(records) == 0 {
		return nil, ErrNoQuestions
	}

	test := &model.Test{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(req.Name),
		QuestionCount:   len(records),
		DurationMinutes: req.DurationMinutes,
		Year:            req.Year,
	}
	questions := make([]model.Question, len(records))
	for i, rec := range records {
		questions[i] = rec.ToQuestion(test.ID, i)
	}

	if err := s.tests.CreateWithQuestions(ctx, test, questions); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.cachePaper(ctx, &model.TestPaper{Test: *test, Questions: sortedQuestions(questions)})
	if err := dropCached(ctx, s.rdb, config.CacheKey.TestListKey()); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate test list cache")
	}

	s.log.Info().
		Str("test_id", test.ID.String()).
		Str("name", test.Name).
		Int("questions", test.QuestionCount).
		Msg("Test imported")
	return test, nil
}

// List returns all tests, served from cache when possible.
func (s *TestService) List(ctx context.Context) ([]model.Test, error) {
	key := config.CacheKey.TestListKey()

	var tests []model.Test
	if err := getCached(ctx, s.rdb, key, &tests); err == nil {
		return tests, nil
	} else if !errors.Is(err, errCacheMiss) {
		s.log.Warn().Err(err).Msg("Test list cache read failed")
	}

	tests, err := s.tests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	if err := setCached(ctx, s.rdb, key, tests, s.cfg.PaperCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache test list")
	}
	return tests, nil
}

// Get returns a single test.
func (s *TestService) Get(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.tests.GetByID(ctx, id)
}

// GetPaper returns a test with its ordered questions, using the Redis cache
// in front of the database.
func (s *TestService) GetPaper(ctx context.Context, id uuid.UUID) (*model.TestPaper, error) {
	key := config.CacheKey.TestPaperKey(id)

	var paper model.TestPaper
	if err := getCached(ctx, s.rdb, key, &paper); err == nil {
		return &paper, nil
	} else if !errors.Is(err, errCacheMiss) {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Paper cache read failed")
	}

	test, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByTest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	p := &model.TestPaper{Test: *test, Questions: questions}
	s.cachePaper(ctx, p)
	return p, nil
}

// Delete removes a test with everything attached to it.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.tests.Delete(ctx, id); err != nil {
		return err
	}
	if err := dropCached(ctx, s.rdb, config.CacheKey.TestPaperKey(id), config.CacheKey.TestListKey()); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Failed to invalidate test caches")
	}
	s.log.Info().Str("test_id", id.String()).Msg("Test deleted")
	return nil
}

// PrewarmPapers loads every test paper into Redis. Failures are logged and
// skipped.
func (s *TestService) PrewarmPapers(ctx context.Context) error {
	tests, err := s.tests.List(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	if len(tests) == 0 {
		s.log.Info().Msg("No tests to prewarm")
		return nil
	}

	warmed := 0
	for i := range tests {
		questions, err := s.questions.ListByTest(ctx, tests[i].ID)
		if err != nil {
			s.log.Warn().Err(err).Str("test_id", tests[i].ID.String()).Msg("Failed to warm paper, skipping")
			continue
		}
		s.cachePaper(ctx, &model.TestPaper{Test: tests[i], Questions: questions})
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(tests)).Msg("Prewarming complete")
	return nil
}

func (s *TestService) cachePaper(ctx context.Context, p *model.TestPaper) {
	if err := setCached(ctx, s.rdb, config.CacheKey.TestPaperKey(p.Test.ID), p, s.cfg.PaperCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("test_id", p.Test.ID.String()).Msg("Failed to cache paper")
	}
}

// sortedQuestions orders questions the way the repository returns them.
func sortedQuestions(questions []model.Question) []model.Question {
	out := slices.Clone(questions)
	slices.SortStableFunc(out, func(a, b model.Question) int {
		return cmp.Compare(a.QuestionNumber, b.QuestionNumber)
	})
	return out
}
