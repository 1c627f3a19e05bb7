package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

const interviewColumns = `id, user_id, title, role, company, difficulty, status,
	overall_score, technical_score, communication_score, problem_solving_score, cultural_fit_score,
	strengths, areas_for_improvement, detailed_feedback, recommendations,
	created, updated, submitted, completed`

func (r *Store) CreateInterview(ctx context.Context, iv *models.Interview) (string, error) {
	if iv == nil {
		return "", fmt.Errorf("interview is nil")
	}
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.Status == "" {
		iv.Status = models.StatusDraft
	}
	iv.Created = db.Now()
	iv.Updated = iv.Created

	_, err := r.conn.Exec(ctx, `INSERT INTO interviews (id, user_id, title, role, company, difficulty, status, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.UserID, iv.Title, iv.Role, iv.Company, string(iv.Difficulty), string(iv.Status), iv.Created, iv.Updated)
	if err != nil {
		return "", err
	}
	return iv.ID, nil
}

func (r *Store) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	iv, err := scanInterview(r.conn.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return iv, err
}

func (r *Store) ListInterviewsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Interview, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.conn.QueryRows(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE user_id = ? ORDER BY created DESC, id LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Interview{}
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

// UpdateInterviewStatus moves the interview to `to` only when its current status is one of `from`.
func (r *Store) UpdateInterviewStatus(ctx context.Context, id string, from []models.Status, to models.Status) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("no source status given")
	}
	args := []any{string(to), db.Now(), id}
	for _, s := range from {
		args = append(args, string(s))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")

	res, err := r.conn.Exec(ctx, `UPDATE interviews SET status = ?, updated = ? WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Store) MarkSubmitted(ctx context.Context, id string, at int64) error {
	res, err := r.conn.Exec(ctx, `UPDATE interviews SET status = ?, submitted = ?, updated = ? WHERE id = ? AND status <> ?`,
		string(models.StatusSubmitted), at, at, id, string(models.StatusCompleted))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrStale
	}
	return nil
}

func (r *Store) SaveEvaluation(ctx context.Context, id string, ev models.Evaluation, at int64) error {
	res, err := r.conn.Exec(ctx, `UPDATE interviews SET status = ?,
		overall_score = ?, technical_score = ?, communication_score = ?, problem_solving_score = ?, cultural_fit_score = ?,
		strengths = ?, areas_for_improvement = ?, detailed_feedback = ?, recommendations = ?,
		completed = ?, updated = ?
		WHERE id = ? AND status <> ?`,
		string(models.StatusCompleted),
		ev.OverallScore, ev.CategoryScores.Technical, ev.CategoryScores.Communication, ev.CategoryScores.ProblemSolving, ev.CategoryScores.CulturalFit,
		encodeList(ev.Strengths), encodeList(ev.AreasForImprovement), ev.DetailedFeedback, encodeList(ev.Recommendations),
		at, at, id, string(models.StatusCompleted))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrStale
	}
	return nil
}

func (r *Store) DeleteInterview(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM interviews WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInterview(s scanner) (*models.Interview, error) {
	var (
		iv                                      models.Interview
		difficulty, status                      string
		overall, technical, comm, problem, fit  sql.NullInt64
		strengths, areas, feedback, recommended sql.NullString
		submitted, completed                    sql.NullInt64
	)
	if err := s.Scan(&iv.ID, &iv.UserID, &iv.Title, &iv.Role, &iv.Company, &difficulty, &status,
		&overall, &technical, &comm, &problem, &fit,
		&strengths, &areas, &feedback, &recommended,
		&iv.Created, &iv.Updated, &submitted, &completed); err != nil {
		return nil, err
	}
	iv.Difficulty = models.Difficulty(difficulty)
	iv.Status = models.Status(status)
	if submitted.Valid {
		v := submitted.Int64
		iv.Submitted = &v
	}
	if completed.Valid {
		v := completed.Int64
		iv.Completed = &v
	}
	if iv.Status == models.StatusCompleted && overall.Valid {
		iv.Evaluation = &models.Evaluation{
			OverallScore: int(overall.Int64),
			CategoryScores: models.CategoryScores{
				Technical:      int(technical.Int64),
				Communication:  int(comm.Int64),
				ProblemSolving: int(problem.Int64),
				CulturalFit:    int(fit.Int64),
			},
			Strengths:           decodeList(strengths.String),
			AreasForImprovement: decodeList(areas.String),
			DetailedFeedback:    feedback.String,
			Recommendations:     decodeList(recommended.String),
		}
	}
	return &iv, nil
}
