package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/library-duty-api/internal/dto"
	"github.com/noah-isme/library-duty-api/internal/models"
	"github.com/noah-isme/library-duty-api/internal/repository"
	"github.com/noah-isme/library-duty-api/internal/service"
	"github.com/noah-isme/library-duty-api/pkg/cache"
	"github.com/noah-isme/library-duty-api/pkg/config"
	"github.com/noah-isme/library-duty-api/pkg/database"
	appErrors "github.com/noah-isme/library-duty-api/pkg/errors"
	"github.com/noah-isme/library-duty-api/pkg/export"
	"github.com/noah-isme/library-duty-api/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Redis.Enabled {
		client, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", redisErr)
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	metrics := service.NewMetricsService()
	if cfg.OpsAddr != "" {
		startOpsListener(cfg.OpsAddr, metrics, logr)
	}

	scheduler := service.NewDutySchedulerService(
		repository.NewStudentRepository(db),
		repository.NewRoomRepository(db),
		repository.NewAssignmentRepository(db),
		cacheRepo,
		db,
		validator.New(),
		logr,
		metrics,
		service.DutySchedulerConfig{
			Constraints: service.Constraints{
				MaxAssignmentsPerStudent: cfg.Scheduler.MaxAssignmentsPerStudent,
				MaxStudentsPerSlot:       cfg.Scheduler.MaxStudentsPerSlot,
				AvoidSameClassSameDay:    cfg.Scheduler.AvoidSameClassSameDay,
				ConsiderPreviousTerm:     cfg.Scheduler.ConsiderPreviousTerm,
			},
			MaxAttempts:   cfg.Scheduler.MaxAttempts,
			TargetScore:   cfg.Scheduler.TargetScore,
			Workers:       cfg.Scheduler.Workers,
			SearchTimeout: cfg.Scheduler.SearchTimeout,
			StatsCacheTTL: cfg.Scheduler.StatsCacheTTL,
		},
	)

	ctx := context.Background()

	switch os.Args[1] {
	case "generate":
		err = runGenerate(ctx, scheduler, os.Args[2:])
	case "stats":
		err = runStats(ctx, scheduler, os.Args[2:])
	case "export":
		err = runExport(ctx, scheduler, cfg.Export, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		appErr := appErrors.FromError(err)
		logr.Sugar().Errorw("command failed", "code", appErr.Code, "error", appErr)
		os.Exit(1)
	}
}

func runGenerate(ctx context.Context, scheduler *service.DutySchedulerService, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	term := fs.String("term", string(models.TermFirst), "Term to generate (FIRST_TERM or SECOND_TERM)")
	force := fs.Bool("force", false, "Delete and regenerate an existing schedule")
	_ = fs.Parse(args)

	resp, err := scheduler.GenerateSchedule(ctx, dto.GenerateDutyScheduleRequest{
		Term:            models.Term(*term),
		ForceRegenerate: *force,
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runStats(ctx context.Context, scheduler *service.DutySchedulerService, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	term := fs.String("term", string(models.TermFirst), "Term to summarise")
	_ = fs.Parse(args)

	stats, err := scheduler.GetScheduleStats(ctx, dto.ScheduleStatsQuery{Term: models.Term(*term)})
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runExport(ctx context.Context, scheduler *service.DutySchedulerService, exportCfg config.ExportConfig, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	term := fs.String("term", string(models.TermFirst), "Term to export")
	format := fs.String("format", "csv", "Output format: csv or pdf")
	out := fs.String("out", "", "Output path (defaults to the export dir)")
	_ = fs.Parse(args)

	roster, err := scheduler.BuildRoster(ctx, models.Term(*term))
	if err != nil {
		return err
	}

	var payload []byte
	switch strings.ToLower(*format) {
	case "csv":
		payload, err = export.NewCSVExporter().Render(roster)
	case "pdf":
		payload, err = export.NewPDFExporter().Render(roster)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		if err := os.MkdirAll(exportCfg.Dir, 0o755); err != nil {
			return err
		}
		path = filepath.Join(exportCfg.Dir, fmt.Sprintf("duty-roster-%s.%s", strings.ToLower(*term), strings.ToLower(*format)))
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func startOpsListener(addr string, metrics *service.MetricsService, logr *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logr.Sugar().Warnw("ops listener stopped", "error", err)
		}
	}()
}

func printJSON(v interface{}) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dutyctl <generate|stats|export> [flags]")
	fmt.Fprintln(os.Stderr, "  generate -term=FIRST_TERM [-force]")
	fmt.Fprintln(os.Stderr, "  stats    -term=FIRST_TERM")
	fmt.Fprintln(os.Stderr, "  export   -term=FIRST_TERM -format=csv|pdf [-out=path]")
}
