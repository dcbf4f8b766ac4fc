package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/library-duty-api/internal/models"
)

// Advisory lock namespace for duty schedule writes. The second key is the
// term index so the two terms never block each other.
const dutyLockClass = 7431

// AssignmentRepository persists duty assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByTerm returns all assignments stored for a term ordered by day and room.
func (r *AssignmentRepository) ListByTerm(ctx context.Context, term models.Term) ([]models.Assignment, error) {
	const query = `SELECT id, student_id, room_id, day_of_week, term, created_at
FROM duty_assignments WHERE term = $1 ORDER BY day_of_week ASC, room_id ASC, student_id ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, term); err != nil {
		return nil, fmt.Errorf("list assignments for term %s: %w", term, err)
	}
	return assignments, nil
}

// CountByTermTx counts assignments for the term inside the caller's
// transaction. Used to recheck the conflict condition after the term lock is
// held.
func (r *AssignmentRepository) CountByTermTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) (int, error) {
	target := r.exec(exec)
	var count int
	if err := sqlx.GetContext(ctx, target, &count, `SELECT COUNT(*) FROM duty_assignments WHERE term = $1`, term); err != nil {
		return 0, fmt.Errorf("count assignments for term %s: %w", term, err)
	}
	return count, nil
}

// AcquireTermLockTx takes a transaction-scoped advisory lock for the term so
// concurrent generations serialize at the persistence step. Released on
// commit or rollback.
func (r *AssignmentRepository) AcquireTermLockTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, dutyLockClass, termLockKey(term)); err != nil {
		return fmt.Errorf("acquire term lock for %s: %w", term, err)
	}
	return nil
}

// DeleteByTermTx removes every assignment for the term inside the caller's
// transaction.
func (r *AssignmentRepository) DeleteByTermTx(ctx context.Context, exec sqlx.ExtContext, term models.Term) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM duty_assignments WHERE term = $1`, term); err != nil {
		return fmt.Errorf("delete assignments for term %s: %w", term, err)
	}
	return nil
}

// BulkInsertTx inserts the winning candidate set inside the caller's
// transaction, assigning row IDs as needed.
func (r *AssignmentRepository) BulkInsertTx(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO duty_assignments (id, student_id, room_id, day_of_week, term, created_at)
VALUES (:id, :student_id, :room_id, :day_of_week, :term, :created_at)`

	for i := range assignments {
		assignment := &assignments[i]
		if assignment.ID == "" {
			assignment.ID = uuid.NewString()
		}
		if assignment.CreatedAt.IsZero() {
			assignment.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, assignment); err != nil {
			return fmt.Errorf("insert duty assignment: %w", err)
		}
	}
	return nil
}

func termLockKey(term models.Term) int {
	if term == models.TermSecond {
		return 2
	}
	return 1
}
