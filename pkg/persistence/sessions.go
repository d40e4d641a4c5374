package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"interviewer/pkg/session"
)

// SessionSummary is one row of a session listing.
type SessionSummary struct {
	ID                string
	Project           string
	UserID            string
	ConversationState session.State
	AnsweredCount     int
	UpdatedAt         time.Time
}

// SaveSession persists the whole session atomically in one transaction and
// returns its id. Child rows are rewritten so the stored state always
// mirrors the in-memory session exactly.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) (string, error) {
	if sess == nil || sess.ID == "" {
		return "", fmt.Errorf("cannot save session without an id")
	}

	missingAreas, err := json.Marshal(sess.MissingAreas)
	if err != nil {
		return "", fmt.Errorf("failed to marshal missing areas: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, project, user_id, conversation_state, conversation_complete,
			state_context, missing_areas, last_state_change, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project = excluded.project,
			user_id = excluded.user_id,
			conversation_state = excluded.conversation_state,
			conversation_complete = excluded.conversation_complete,
			state_context = excluded.state_context,
			missing_areas = excluded.missing_areas,
			last_state_change = excluded.last_state_change,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Project, sess.UserID, string(sess.ConversationState), sess.ConversationComplete,
		sess.StateContext, string(missingAreas), sess.LastStateChange, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert session row: %w", err)
	}

	// Answers reference questions, so they go first.
	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE session_id = ?`, sess.ID); err != nil {
		return "", fmt.Errorf("failed to clear answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE session_id = ?`, sess.ID); err != nil {
		return "", fmt.Errorf("failed to clear questions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM requirements WHERE session_id = ?`, sess.ID); err != nil {
		return "", fmt.Errorf("failed to clear requirements: %w", err)
	}

	for i := range sess.Questions {
		q := &sess.Questions[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO questions (id, session_id, text, category, required, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			q.ID, sess.ID, q.Text, string(q.Category), q.Required, i,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}

	for i := range sess.Answers {
		a := &sess.Answers[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO answers (session_id, question_id, text, is_vague, needs_followup, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, a.QuestionID, a.Text, a.IsVague, a.NeedsFollowup, i,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert answer for question %s: %w", a.QuestionID, err)
		}
	}

	for i := range sess.Requirements {
		r := &sess.Requirements[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO requirements (id, session_id, title, rationale, priority, order_index)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, sess.ID, r.Title, r.Rationale, string(r.Priority), r.OrderIndex,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert requirement %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session save: %w", err)
	}

	s.logger.Debug("saved session %s (%d questions, %d answers, %d requirements)",
		sess.ID, len(sess.Questions), len(sess.Answers), len(sess.Requirements))
	return sess.ID, nil
}

// LoadSession reassembles a session from its rows. Returns ErrSessionNotFound
// for unknown ids.
func (s *Store) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	sess := &session.Session{}
	var state, missingAreas string
	var stateContext sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, project, user_id, conversation_state, conversation_complete,
			state_context, missing_areas, last_state_change, created_at, updated_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Project, &sess.UserID, &state, &sess.ConversationComplete,
		&stateContext, &missingAreas, &sess.LastStateChange, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session row: %w", err)
	}

	sess.ConversationState = session.State(state)
	sess.StateContext = stateContext.String
	if missingAreas != "" {
		if err := json.Unmarshal([]byte(missingAreas), &sess.MissingAreas); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing areas: %w", err)
		}
	}

	if err := s.loadQuestions(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.loadAnswers(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.loadRequirements(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) loadQuestions(ctx context.Context, sess *session.Session) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, category, required FROM questions
		WHERE session_id = ? ORDER BY position`, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var q session.Question
		var category string
		if err := rows.Scan(&q.ID, &q.Text, &category, &q.Required); err != nil {
			return fmt.Errorf("failed to scan question: %w", err)
		}
		q.Category = session.Area(category)
		sess.Questions = append(sess.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("question iteration failed: %w", err)
	}
	return nil
}

func (s *Store) loadAnswers(ctx context.Context, sess *session.Session) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, text, is_vague, needs_followup FROM answers
		WHERE session_id = ? ORDER BY position`, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a session.Answer
		if err := rows.Scan(&a.QuestionID, &a.Text, &a.IsVague, &a.NeedsFollowup); err != nil {
			return fmt.Errorf("failed to scan answer: %w", err)
		}
		sess.Answers = append(sess.Answers, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("answer iteration failed: %w", err)
	}
	return nil
}

func (s *Store) loadRequirements(ctx context.Context, sess *session.Session) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, rationale, priority, order_index FROM requirements
		WHERE session_id = ? ORDER BY order_index`, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query requirements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r session.Requirement
		var rationale sql.NullString
		var priority string
		if err := rows.Scan(&r.ID, &r.Title, &rationale, &priority, &r.OrderIndex); err != nil {
			return fmt.Errorf("failed to scan requirement: %w", err)
		}
		r.Rationale = rationale.String
		r.Priority = session.Priority(priority)
		sess.Requirements = append(sess.Requirements, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("requirement iteration failed: %w", err)
	}
	return nil
}

// ListSessions returns summaries of all sessions for a user, most recently
// updated first. Empty userID lists every session.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	query := `
		SELECT s.id, s.project, s.user_id, s.conversation_state,
			(SELECT COUNT(*) FROM answers a WHERE a.session_id = s.id),
			s.updated_at
		FROM sessions s`
	args := []any{}
	if userID != "" {
		query += ` WHERE s.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY s.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []SessionSummary
	for rows.Next() {
		var summary SessionSummary
		var state string
		if err := rows.Scan(&summary.ID, &summary.Project, &summary.UserID, &state,
			&summary.AnsweredCount, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		summary.ConversationState = session.State(state)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session iteration failed: %w", err)
	}
	return summaries, nil
}
