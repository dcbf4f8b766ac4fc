package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/library-duty-api/internal/models"
)

// StudentRepository reads committee member records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListActive returns every active committee member. Inactive students never
// participate in scheduling.
func (r *StudentRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT id, full_name, class_id, grade, active, created_at, updated_at
FROM students WHERE active = true ORDER BY class_id ASC, full_name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}
