package service

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-duty-api/internal/dto"
	"github.com/noah-isme/library-duty-api/internal/models"
	appErrors "github.com/noah-isme/library-duty-api/pkg/errors"
)

func TestGenerateScheduleFourStudentsOneRoom(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermFirst})
	require.NoError(t, err)
	require.Len(t, resp.Assignments, 8)

	perStudent := make(map[string]int)
	classInSlot := make(map[slotKey]map[string]bool)
	classes := map[string]string{"s1": "C1", "s2": "C1", "s3": "C2", "s4": "C2"}
	for _, assignment := range resp.Assignments {
		perStudent[assignment.StudentID]++
		key := slotKey{Day: assignment.DayOfWeek, RoomID: assignment.RoomID}
		class := classes[assignment.StudentID]
		assert.False(t, classInSlot[key][class], "same-class students must not share a slot")
		if classInSlot[key] == nil {
			classInSlot[key] = make(map[string]bool)
		}
		classInSlot[key][class] = true
	}
	for id := range classes {
		assert.Equal(t, 2, perStudent[id])
	}

	assert.Equal(t, 8, resp.Stats.TotalAssignments)
	assert.Equal(t, 4, resp.Stats.StudentsAssigned)
	assert.InDelta(t, 2.0, resp.Stats.AvgPerStudent, 1e-9)
	assert.Greater(t, resp.Score, 0.0)
	assert.Equal(t, fx.store.inserted, resp.Assignments)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestGenerateScheduleNoActiveStudents(t *testing.T) {
	fx := newSchedulerFixture(t, nil, []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})

	_, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermFirst})
	assertErrorCode(t, err, appErrors.ErrNoActiveStudents.Code)
	assert.Empty(t, fx.store.inserted)
}

func TestGenerateScheduleNoRooms(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), nil)

	_, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermFirst})
	assertErrorCode(t, err, appErrors.ErrNoRoomsRegistered.Code)
}

func TestGenerateScheduleConflictWithoutForce(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})
	fx.store.byTerm[models.TermFirst] = []models.Assignment{{StudentID: "s1", RoomID: "r1", DayOfWeek: 1, Term: models.TermFirst}}

	_, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermFirst})
	assertErrorCode(t, err, appErrors.ErrAlreadyGenerated.Code)
	assert.Empty(t, fx.store.inserted, "conflict must not mutate assignments")
	assert.NoError(t, fx.mock.ExpectationsWereMet(), "no transaction may be opened on conflict")
}

func TestGenerateScheduleForceRegenerates(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})
	fx.store.byTerm[models.TermFirst] = []models.Assignment{{StudentID: "s1", RoomID: "r1", DayOfWeek: 1, Term: models.TermFirst}}
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermFirst, ForceRegenerate: true})
	require.NoError(t, err)
	assert.True(t, fx.store.deleted, "force must clear the previous schedule inside the transaction")
	assert.Len(t, resp.Assignments, 8)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestGenerateScheduleSecondTermAvoidsPriorWednesdayFriday(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})
	fx.store.byTerm[models.TermFirst] = []models.Assignment{
		{StudentID: "s1", RoomID: "r1", DayOfWeek: 3, Term: models.TermFirst},
		{StudentID: "s1", RoomID: "r1", DayOfWeek: 5, Term: models.TermFirst},
	}
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermSecond})
	require.NoError(t, err)
	for _, assignment := range resp.Assignments {
		if assignment.StudentID == "s1" {
			assert.NotEqual(t, 3, assignment.DayOfWeek, "prior Wednesday must not repeat")
			assert.NotEqual(t, 5, assignment.DayOfWeek, "prior Friday must not repeat")
		}
	}
}

func TestGenerateScheduleInfeasible(t *testing.T) {
	students := []models.Student{
		{ID: "s1", ClassID: "C1", Grade: 5, Active: true},
		{ID: "s2", ClassID: "C2", Grade: 5, Active: true},
		{ID: "s3", ClassID: "C3", Grade: 6, Active: true},
	}
	fx := newSchedulerFixture(t, students, []models.Room{{ID: "r1", Name: "Main", Capacity: 1}})

	_, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermFirst})
	assertErrorCode(t, err, appErrors.ErrInfeasible.Code)
	assert.Empty(t, fx.store.inserted)
}

func TestGenerateScheduleRejectsUnknownTerm(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})

	_, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: "SUMMER"})
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestGenerateSchedulePersistenceFailurePropagatesCause(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})
	cause := errors.New("disk full")
	fx.store.insertErr = cause
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.service.GenerateSchedule(context.Background(), dto.GenerateDutyScheduleRequest{Term: models.TermFirst})
	assertErrorCode(t, err, appErrors.ErrPersistence.Code)
	assert.ErrorIs(t, err, cause, "the underlying cause must stay reachable")
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestGetScheduleStatsNotFound(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})

	_, err := fx.service.GetScheduleStats(context.Background(), dto.ScheduleStatsQuery{Term: models.TermSecond})
	assertErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestGetScheduleStatsFromStore(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main", Capacity: 4}})
	fx.store.byTerm[models.TermFirst] = []models.Assignment{
		{StudentID: "s1", RoomID: "r1", DayOfWeek: 1, Term: models.TermFirst},
		{StudentID: "s1", RoomID: "r1", DayOfWeek: 2, Term: models.TermFirst},
		{StudentID: "s3", RoomID: "r1", DayOfWeek: 3, Term: models.TermFirst},
	}

	stats, err := fx.service.GetScheduleStats(context.Background(), dto.ScheduleStatsQuery{Term: models.TermFirst})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAssignments)
	assert.Equal(t, 2, stats.StudentsAssigned)
	assert.InDelta(t, 1.5, stats.AvgPerStudent, 1e-9)
	assert.Equal(t, 1, stats.AssignmentsByDay[1])
	assert.Equal(t, 3, stats.AssignmentsByRoom["r1"])
}

func TestBuildRosterResolvesNames(t *testing.T) {
	fx := newSchedulerFixture(t, fourStudentFixture(), []models.Room{{ID: "r1", Name: "Main Reading Room", Capacity: 4}})
	fx.store.byTerm[models.TermFirst] = []models.Assignment{
		{StudentID: "s1", RoomID: "r1", DayOfWeek: 2, Term: models.TermFirst},
		{StudentID: "s4", RoomID: "r1", DayOfWeek: 1, Term: models.TermFirst},
	}

	roster, err := fx.service.BuildRoster(context.Background(), models.TermFirst)
	require.NoError(t, err)
	require.Len(t, roster.Rows, 2)
	assert.Equal(t, []string{"Day", "Room", "Student", "Class", "Grade"}, roster.Headers)
	assert.Equal(t, []string{"Monday", "Main Reading Room", "Kai", "C2", "6"}, roster.Rows[0])
	assert.Equal(t, []string{"Tuesday", "Main Reading Room", "Aoi", "C1", "5"}, roster.Rows[1])
}

// --- Fixtures ---

type schedulerFixture struct {
	service *DutySchedulerService
	store   *assignmentStoreStub
	mock    sqlmock.Sqlmock
}

func newSchedulerFixture(t *testing.T, students []models.Student, rooms []models.Room) *schedulerFixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := &assignmentStoreStub{byTerm: make(map[models.Term][]models.Assignment)}
	svc := NewDutySchedulerService(
		studentListerStub{students: students},
		roomListerStub{rooms: rooms},
		store,
		nil,
		sqlx.NewDb(db, "sqlmock"),
		nil,
		nil,
		nil,
		DutySchedulerConfig{
			Constraints: DefaultConstraints(),
			MaxAttempts: 200,
			Workers:     2,
			Seed:        5,
		},
	)
	return &schedulerFixture{service: svc, store: store, mock: mock}
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, appErrors.FromError(err).Code)
}

type studentListerStub struct {
	students []models.Student
	err      error
}

func (s studentListerStub) ListActive(ctx context.Context) ([]models.Student, error) {
	return s.students, s.err
}

type roomListerStub struct {
	rooms []models.Room
	err   error
}

func (s roomListerStub) List(ctx context.Context) ([]models.Room, error) {
	return s.rooms, s.err
}

type assignmentStoreStub struct {
	byTerm    map[models.Term][]models.Assignment
	inserted  []models.Assignment
	deleted   bool
	listErr   error
	insertErr error
}

func (s *assignmentStoreStub) ListByTerm(ctx context.Context, term models.Term) ([]models.Assignment, error) {
	return s.byTerm[term], s.listErr
}

func (s *assignmentStoreStub) CountByTermTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) (int, error) {
	return len(s.byTerm[term]), nil
}

func (s *assignmentStoreStub) AcquireTermLockTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) error {
	return nil
}

func (s *assignmentStoreStub) DeleteByTermTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) error {
	s.deleted = true
	delete(s.byTerm, term)
	return nil
}

func (s *assignmentStoreStub) BulkInsertTx(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = assignments
	s.byTerm[assignments[0].Term] = assignments
	return nil
}
