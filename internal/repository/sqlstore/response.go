package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/mockinterview/internal/db"
	"github.com/garnizeh/mockinterview/internal/models"
)

const responseColumns = `id, interview_id, question_id, user_id, answer_text, response_time_seconds, created, updated`

func (r *Store) UpsertResponse(ctx context.Context, resp *models.Response) (*models.Response, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	now := db.Now()
	id := resp.ID
	if id == "" {
		id = uuid.NewString()
	}

	if _, err := r.conn.Exec(ctx, `INSERT INTO interview_responses (`+responseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (interview_id, question_id) DO UPDATE SET
		answer_text = excluded.answer_text, response_time_seconds = excluded.response_time_seconds, updated = excluded.updated`,
		id, resp.InterviewID, resp.QuestionID, resp.UserID, resp.Answer, resp.ResponseTimeSeconds, now, now); err != nil {
		return nil, err
	}

	var out models.Response
	row := r.conn.QueryRow(ctx, `SELECT `+responseColumns+` FROM interview_responses WHERE interview_id = ? AND question_id = ?`, resp.InterviewID, resp.QuestionID)
	if err := row.Scan(&out.ID, &out.InterviewID, &out.QuestionID, &out.UserID, &out.Answer, &out.ResponseTimeSeconds, &out.Created, &out.Updated); err != nil {
		return nil, fmt.Errorf("reload response: %w", err)
	}
	return &out, nil
}

func (r *Store) ListResponses(ctx context.Context, interviewID string) ([]models.Response, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+responseColumns+` FROM interview_responses WHERE interview_id = ? ORDER BY created, id`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Response{}
	for rows.Next() {
		var rs models.Response
		if err := rows.Scan(&rs.ID, &rs.InterviewID, &rs.QuestionID, &rs.UserID, &rs.Answer, &rs.ResponseTimeSeconds, &rs.Created, &rs.Updated); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (r *Store) ListAnswered(ctx context.Context, interviewID string) ([]models.AnsweredQuestion, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT
		r.id, r.interview_id, r.question_id, r.user_id, r.answer_text, r.response_time_seconds, r.created, r.updated,
		q.id, q.interview_id, q.question_text, q.category, q.difficulty, q.order_index, q.expected_answer, q.follow_up_questions, q.created
		FROM interview_responses r
		JOIN interview_questions q ON q.id = r.question_id
		WHERE r.interview_id = ?
		ORDER BY q.order_index`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AnsweredQuestion{}
	for rows.Next() {
		var (
			a                    models.AnsweredQuestion
			category, difficulty string
			followUps            string
		)
		if err := rows.Scan(&a.Response.ID, &a.Response.InterviewID, &a.Response.QuestionID, &a.Response.UserID, &a.Response.Answer,
			&a.Response.ResponseTimeSeconds, &a.Response.Created, &a.Response.Updated,
			&a.Question.ID, &a.Question.InterviewID, &a.Question.Text, &category, &difficulty, &a.Question.OrderIndex,
			&a.Question.ExpectedAnswer, &followUps, &a.Question.Created); err != nil {
			return nil, err
		}
		a.Question.Category = models.Category(category)
		a.Question.Difficulty = models.Difficulty(difficulty)
		a.Question.FollowUpQuestions = decodeList(followUps)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Store) DeleteResponsesByInterview(ctx context.Context, interviewID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM interview_responses WHERE interview_id = ?`, interviewID)
	return err
}
