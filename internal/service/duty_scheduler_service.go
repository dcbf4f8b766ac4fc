package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/library-duty-api/internal/dto"
	"github.com/noah-isme/library-duty-api/internal/models"
	appErrors "github.com/noah-isme/library-duty-api/pkg/errors"
	"github.com/noah-isme/library-duty-api/pkg/export"
)

type studentLister interface {
	ListActive(ctx context.Context) ([]models.Student, error)
}

type roomLister interface {
	List(ctx context.Context) ([]models.Room, error)
}

type assignmentStore interface {
	ListByTerm(ctx context.Context, term models.Term) ([]models.Assignment, error)
	CountByTermTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) (int, error)
	AcquireTermLockTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) error
	DeleteByTermTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) error
	BulkInsertTx(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// DutySchedulerConfig governs scheduler behaviour for the lifetime of the
// service. Seed is injectable for reproducible searches in tests; zero means
// time-based seeding.
type DutySchedulerConfig struct {
	Constraints   Constraints
	MaxAttempts   int
	TargetScore   float64
	Workers       int
	SearchTimeout time.Duration
	StatsCacheTTL time.Duration
	Seed          int64
}

// DutySchedulerService generates, persists and summarises library duty
// schedules per term.
type DutySchedulerService struct {
	students    studentLister
	rooms       roomLister
	assignments assignmentStore
	cache       statsCache
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	cfg         DutySchedulerConfig
}

// NewDutySchedulerService wires scheduler dependencies.
func NewDutySchedulerService(
	students studentLister,
	rooms roomLister,
	assignments assignmentStore,
	cache statsCache,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg DutySchedulerConfig,
) *DutySchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = noopStatsCache{}
	}
	if cfg.Constraints.MaxAssignmentsPerStudent <= 0 {
		cfg.Constraints = DefaultConstraints()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.TargetScore <= 0 {
		cfg.TargetScore = defaultTargetScore
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = 10 * time.Minute
	}
	return &DutySchedulerService{
		students:    students,
		rooms:       rooms,
		assignments: assignments,
		cache:       cache,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// GenerateSchedule runs the full pipeline: conflict check, input loading,
// prior-term attachment, the best-of-N search, and transactional persistence
// of the winning candidate.
func (s *DutySchedulerService) GenerateSchedule(ctx context.Context, req dto.GenerateDutyScheduleRequest) (*dto.DutyScheduleResponse, error) {
	start := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid duty schedule request")
	}

	existing, err := s.assignments.ListByTerm(ctx, req.Term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}
	if len(existing) > 0 && !req.ForceRegenerate {
		return nil, appErrors.Clone(appErrors.ErrAlreadyGenerated, fmt.Sprintf("duty schedule already generated for %s", req.Term))
	}

	students, err := s.students.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoActiveStudents, "")
	}

	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	if len(rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoRoomsRegistered, "")
	}

	if req.Term == models.TermSecond && s.cfg.Constraints.ConsiderPreviousTerm {
		prior, err := s.assignments.ListByTerm(ctx, req.Term.Previous())
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior term assignments")
		}
		attachPriorTermWeekdays(students, prior)
	}

	slots := buildSlotCatalog(rooms)

	searchCtx := ctx
	if s.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.cfg.SearchTimeout)
		defer cancel()
	}

	search := &dutySearch{
		cons:        s.cfg.Constraints,
		maxAttempts: s.cfg.MaxAttempts,
		targetScore: s.cfg.TargetScore,
		workers:     s.cfg.Workers,
		seed:        s.cfg.Seed,
		logger:      s.logger,
		metrics:     s.metrics,
	}
	result, err := search.run(searchCtx, students, slots, req.Term)
	if err != nil {
		s.metrics.ObserveGeneration(string(req.Term), "infeasible", time.Since(start))
		return nil, err
	}

	if err := s.persistSchedule(ctx, req, result.assignments); err != nil {
		s.metrics.ObserveGeneration(string(req.Term), "failed", time.Since(start))
		return nil, err
	}

	if cacheErr := s.cache.Delete(ctx, statsCacheKey(req.Term)); cacheErr != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(cacheErr))
	}

	stats := computeScheduleStats(req.Term, result.assignments, students, slots, s.cfg.Constraints)
	if cacheErr := s.cache.Set(ctx, statsCacheKey(req.Term), stats, s.cfg.StatsCacheTTL); cacheErr != nil {
		s.logger.Warn("failed to cache schedule stats", zap.Error(cacheErr))
	}

	s.metrics.ObserveGeneration(string(req.Term), "success", time.Since(start))
	s.logger.Info("duty schedule generated",
		zap.String("term", string(req.Term)),
		zap.Int("assignments", len(result.assignments)),
		zap.Float64("score", result.score),
		zap.Int("attempts", result.attempts))

	return &dto.DutyScheduleResponse{
		Assignments: result.assignments,
		Stats:       stats,
		Score:       result.score,
		Attempts:    result.attempts,
	}, nil
}

// persistSchedule writes the winning candidate inside one exclusive
// transaction. The advisory lock serializes concurrent generations for the
// same term; the post-lock recheck hands the loser the conflict error.
func (s *DutySchedulerService) persistSchedule(ctx context.Context, req dto.GenerateDutyScheduleRequest, assignments []models.Assignment) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.assignments.AcquireTermLockTx(ctx, tx, req.Term); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to lock term for writing")
		return err
	}

	count, countErr := s.assignments.CountByTermTx(ctx, tx, req.Term)
	if countErr != nil {
		err = appErrors.Wrap(countErr, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to recheck existing assignments")
		return err
	}
	if count > 0 {
		if !req.ForceRegenerate {
			err = appErrors.Clone(appErrors.ErrAlreadyGenerated, fmt.Sprintf("duty schedule already generated for %s", req.Term))
			return err
		}
		if err = s.assignments.DeleteByTermTx(ctx, tx, req.Term); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete previous assignments")
			return err
		}
	}

	if err = s.assignments.BulkInsertTx(ctx, tx, assignments); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to insert assignments")
		return err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to commit duty schedule")
		return err
	}
	return nil
}

// GetScheduleStats recomputes (or serves cached) summary statistics for the
// persisted schedule of a term.
func (s *DutySchedulerService) GetScheduleStats(ctx context.Context, query dto.ScheduleStatsQuery) (*models.ScheduleStats, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stats query")
	}

	var cached models.ScheduleStats
	if err := s.cache.Get(ctx, statsCacheKey(query.Term), &cached); err == nil {
		return &cached, nil
	}

	assignments, err := s.assignments.ListByTerm(ctx, query.Term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if len(assignments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no duty schedule generated for %s", query.Term))
	}

	students, err := s.students.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}

	stats := computeScheduleStats(query.Term, assignments, students, buildSlotCatalog(rooms), s.cfg.Constraints)
	if cacheErr := s.cache.Set(ctx, statsCacheKey(query.Term), stats, s.cfg.StatsCacheTTL); cacheErr != nil {
		s.logger.Warn("failed to cache schedule stats", zap.Error(cacheErr))
	}
	return &stats, nil
}

// BuildRoster renders the persisted schedule of a term as an export table.
func (s *DutySchedulerService) BuildRoster(ctx context.Context, term models.Term) (export.Roster, error) {
	if !term.Valid() {
		return export.Roster{}, appErrors.Clone(appErrors.ErrValidation, "term must be FIRST_TERM or SECOND_TERM")
	}

	assignments, err := s.assignments.ListByTerm(ctx, term)
	if err != nil {
		return export.Roster{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if len(assignments) == 0 {
		return export.Roster{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no duty schedule generated for %s", term))
	}

	students, err := s.students.ListActive(ctx)
	if err != nil {
		return export.Roster{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return export.Roster{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}

	studentByID := make(map[string]*models.Student, len(students))
	for i := range students {
		studentByID[students[i].ID] = &students[i]
	}
	roomNames := make(map[string]string, len(rooms))
	for _, room := range rooms {
		roomNames[room.ID] = room.Name
	}

	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].DayOfWeek != assignments[j].DayOfWeek {
			return assignments[i].DayOfWeek < assignments[j].DayOfWeek
		}
		return assignments[i].RoomID < assignments[j].RoomID
	})

	rows := make([][]string, 0, len(assignments))
	for _, assignment := range assignments {
		name := assignment.StudentID
		class := ""
		grade := ""
		if student, ok := studentByID[assignment.StudentID]; ok {
			name = student.FullName
			class = student.ClassID
			grade = fmt.Sprintf("%d", student.Grade)
		}
		roomName := roomNames[assignment.RoomID]
		if roomName == "" {
			roomName = assignment.RoomID
		}
		rows = append(rows, []string{dutyDayName(assignment.DayOfWeek), roomName, name, class, grade})
	}

	return export.Roster{
		Title:   fmt.Sprintf("Library Duty Roster (%s)", term),
		Headers: []string{"Day", "Room", "Student", "Class", "Grade"},
		Rows:    rows,
	}, nil
}

func attachPriorTermWeekdays(students []models.Student, prior []models.Assignment) {
	weekdays := make(map[string]map[int]bool)
	for _, assignment := range prior {
		if weekdays[assignment.StudentID] == nil {
			weekdays[assignment.StudentID] = make(map[int]bool)
		}
		weekdays[assignment.StudentID][assignment.DayOfWeek] = true
	}
	for i := range students {
		students[i].PriorTermWeekdays = weekdays[students[i].ID]
	}
}

func statsCacheKey(term models.Term) string {
	return fmt.Sprintf("duty:stats:%s", term)
}

// noopStatsCache stands in when no cache backend is configured.
type noopStatsCache struct{}

func (noopStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (noopStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (noopStatsCache) Delete(ctx context.Context, key string) error {
	return nil
}

var dutyDayNames = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
}

func dutyDayName(day int) string {
	if name, ok := dutyDayNames[day]; ok {
		return name
	}
	return fmt.Sprintf("Day %d", day)
}
