package interview_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/repository/sqlstore"
)

var interviewCols = []string{
	"id", "user_id", "title", "role", "company", "difficulty", "status",
	"overall_score", "technical_score", "communication_score", "problem_solving_score", "cultural_fit_score",
	"strengths", "areas_for_improvement", "detailed_feedback", "recommendations",
	"created", "updated", "submitted", "completed",
}

func newSQLMockService(t *testing.T) (*interview.Service, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := sqlstore.New(db.Wrap(conn, db.DriverSQLite), nil)
	return interview.NewService(store, nil, nil), mock
}

func expectInterview(mock sqlmock.Sqlmock, id, owner string) {
	mock.ExpectQuery(`(?s)SELECT (.+) FROM interviews WHERE id = \?`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(interviewCols).AddRow(
			id, owner, "Go Interview", "Go Developer", "", "intermediate", "submitted",
			nil, nil, nil, nil, nil,
			nil, nil, nil, nil,
			int64(1), int64(2), int64(2), nil,
		))
}

func TestDelete_SQLOrder(t *testing.T) {
	svc, mock := newSQLMockService(t)

	expectInterview(mock, "iv-1", "u1")
	mock.ExpectExec(`DELETE FROM interview_responses WHERE interview_id = \?`).WithArgs("iv-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM interview_questions WHERE interview_id = \?`).WithArgs("iv-1").WillReturnResult(sqlmock.NewResult(0, 8))
	mock.ExpectExec(`DELETE FROM interviews WHERE id = \?`).WithArgs("iv-1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Delete(context.Background(), "u1", "iv-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_SQLAbortsAfterFailedStep(t *testing.T) {
	svc, mock := newSQLMockService(t)

	expectInterview(mock, "iv-1", "u1")
	mock.ExpectExec(`DELETE FROM interview_responses WHERE interview_id = \?`).WithArgs("iv-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM interview_questions WHERE interview_id = \?`).WithArgs("iv-1").WillReturnError(errors.New("database is locked"))

	err := svc.Delete(context.Background(), "u1", "iv-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "delete questions")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_SQLForeignOwnerTouchesNothing(t *testing.T) {
	svc, mock := newSQLMockService(t)

	expectInterview(mock, "iv-1", "u1")

	err := svc.Delete(context.Background(), "u2", "iv-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
