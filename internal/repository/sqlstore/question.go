package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

const questionColumns = `id, interview_id, question_text, category, difficulty, order_index, expected_answer, follow_up_questions, created`

func (r *Store) StoreGeneratedQuestions(ctx context.Context, interviewID string, qs []models.GeneratedQuestion) ([]models.Question, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("no questions to store")
	}
	now := db.Now()
	out := make([]models.Question, 0, len(qs))

	err := r.conn.InTx(ctx, func(q db.Querier) error {
		for i, g := range qs {
			stored := models.Question{
				ID:                uuid.NewString(),
				InterviewID:       interviewID,
				Text:              g.Text,
				Category:          g.Category,
				Difficulty:        g.Difficulty,
				OrderIndex:        i,
				ExpectedAnswer:    g.ExpectedAnswer,
				FollowUpQuestions: g.FollowUpQuestions,
				Created:           now,
			}
			if stored.FollowUpQuestions == nil {
				stored.FollowUpQuestions = []string{}
			}
			if _, err := q.Exec(ctx, `INSERT INTO interview_questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				stored.ID, stored.InterviewID, stored.Text, string(stored.Category), string(stored.Difficulty),
				stored.OrderIndex, stored.ExpectedAnswer, encodeList(stored.FollowUpQuestions), stored.Created); err != nil {
				if isUniqueViolation(err) {
					return repository.ErrDuplicate
				}
				return fmt.Errorf("insert question %d: %w", i, err)
			}
			out = append(out, stored)
		}
		if _, err := q.Exec(ctx, `UPDATE interviews SET status = ?, updated = ? WHERE id = ?`, string(models.StatusReady), now, interviewID); err != nil {
			return fmt.Errorf("mark ready: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("questions stored", "interview_id", interviewID, "count", len(out))
	return out, nil
}

func (r *Store) ListQuestions(ctx context.Context, interviewID string) ([]models.Question, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+questionColumns+` FROM interview_questions WHERE interview_id = ? ORDER BY order_index`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := scanQuestion(r.conn.QueryRow(ctx, `SELECT `+questionColumns+` FROM interview_questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (r *Store) DeleteQuestionsByInterview(ctx context.Context, interviewID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM interview_questions WHERE interview_id = ?`, interviewID)
	return err
}

func scanQuestion(s scanner) (*models.Question, error) {
	var (
		q                    models.Question
		category, difficulty string
		followUps            string
	)
	if err := s.Scan(&q.ID, &q.InterviewID, &q.Text, &category, &difficulty, &q.OrderIndex, &q.ExpectedAnswer, &followUps, &q.Created); err != nil {
		return nil, err
	}
	q.Category = models.Category(category)
	q.Difficulty = models.Difficulty(difficulty)
	q.FollowUpQuestions = decodeList(followUps)
	return &q, nil
}
