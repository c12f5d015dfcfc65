package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassRepositoryFindByNameScansRoster(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "teacher_id", "student_ids", "created_at", "updated_at"}).
		AddRow("c1", "7A", nil, "{s1,s2}", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + classColumns + " FROM classes WHERE name = $1")).
		WithArgs("7A").
		WillReturnRows(rows)

	class, err := repo.FindByName(context.Background(), "7A")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, []string(class.StudentIDs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateRoster(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET student_ids = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateRoster(context.Background(), "c1", []string{"s2"}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET student_ids")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateRoster(context.Background(), "gone", nil), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
