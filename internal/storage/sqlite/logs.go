package sqlite

import (
	"time"

	"github.com/google/uuid"
	"github.com/tmanole/chatgate/internal/storage/models"
)

// LogRequest inserts one request log entry.
func (s *Store) LogRequest(log *models.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO request_logs (id, request_id, user_id, model, attempted_models, provider,
			prompt_tokens, completion_tokens, total_tokens, is_streaming,
			status_code, error_type, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.RequestID, log.UserID, log.Model, log.AttemptedModels, log.Provider,
		log.PromptTokens, log.CompletionTokens, log.TotalTokens, log.IsStreaming,
		log.StatusCode, log.ErrorType, log.ErrorMessage, log.DurationMs, log.CreatedAt)
	return err
}

// GetRequestLogs returns logs matching the filter, newest first.
func (s *Store) GetRequestLogs(filter models.LogFilter) ([]*models.RequestLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT id, request_id, user_id, model, COALESCE(attempted_models, ''), provider,
			prompt_tokens, completion_tokens, total_tokens, is_streaming,
			COALESCE(status_code, 0), COALESCE(error_type, ''), COALESCE(error_message, ''),
			COALESCE(duration_ms, 0), created_at
		FROM request_logs WHERE 1=1
	`
	var args []any
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, filter.Model)
	}
	if filter.ErrorType != "" {
		query += " AND error_type = ?"
		args = append(args, filter.ErrorType)
	}
	if filter.StartDate != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += " AND created_at <= ?"
		args = append(args, *filter.EndDate)
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.RequestLog
	for rows.Next() {
		var l models.RequestLog
		if err := rows.Scan(&l.ID, &l.RequestID, &l.UserID, &l.Model, &l.AttemptedModels, &l.Provider,
			&l.PromptTokens, &l.CompletionTokens, &l.TotalTokens, &l.IsStreaming,
			&l.StatusCode, &l.ErrorType, &l.ErrorMessage, &l.DurationMs, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
