package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/database"
	"github.com/stemsi/mocktest-backend/internal/logger"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/validator"
)

// import-test loads a .csv or .xlsx question file straight into the database.
func main() {
	var (
		file     string
		name     string
		duration int
		year     int
	)
	flag.StringVar(&file, "file", "", "Path to the .csv or .xlsx question file")
	flag.StringVar(&name, "name", "", "Test name (defaults to the file name)")
	flag.IntVar(&duration, "duration", 60, "Duration in minutes")
	flag.IntVar(&year, "year", 0, "Exam year (optional)")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "Usage: import-test -file questions.csv [-name NAME] [-duration 60] [-year 2024]")
		os.Exit(2)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	req := model.ImportTestRequest{Name: name, DurationMinutes: duration}
	if year > 0 {
		req.Year = &year
	}
	if fields := validator.Struct(req); fields != nil {
		for field, msg := range fields {
			fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// ─── Connect to PostgreSQL and Redis ───────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		// The paper cache is optional here; the server reloads it on demand.
		log.Warn().Err(err).Msg("Redis unavailable, skipping cache update")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	testService := service.NewTestService(
		repository.NewTestRepository(pool),
		repository.NewQuestionRepository(pool),
		rdb, cfg, log,
	)

	f, err := os.Open(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to open file")
	}
	defer f.Close()

	test, err := testService.Import(ctx, req, file, f)
	if err != nil {
		var rejected *service.ImportError
		if errors.As(err, &rejected) {
			fmt.Fprintf(os.Stderr, "Import rejected (%d errors):\n", len(rejected.Errors))
			for _, e := range rejected.Errors {
				fmt.Fprintln(os.Stderr, "  "+e)
			}
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %q: %d questions, %d minutes (id %s)\n",
		test.Name, test.QuestionCount, test.DurationMinutes, test.ID)
}
