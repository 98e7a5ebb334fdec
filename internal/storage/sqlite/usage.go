package sqlite

import (
	"time"

	"github.com/google/uuid"
	"github.com/tmanole/chatgate/internal/storage/models"
)

// AppendUsage writes one append-only usage record.
func (s *Store) AppendUsage(rec *models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO usage_records (id, user_id, amount, reason, model, granted_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.Amount, rec.Reason, rec.Model, rec.GrantedBy, rec.CreatedAt)
	return err
}

// PeriodUsage sums charged amounts for a user since the given time. Grants
// are excluded; they are not usage.
func (s *Store) PeriodUsage(userID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var total int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM usage_records
		WHERE user_id = ? AND reason != ? AND created_at >= ?
	`, userID, models.ReasonGrant, since).Scan(&total)
	return total, err
}

// GetUsageStats aggregates usage records under the given filter.
func (s *Store) GetUsageStats(filter models.StatsFilter) (*models.UsageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT COALESCE(model, ''), reason, amount FROM usage_records WHERE 1=1
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
	if filter.StartDate != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += " AND created_at <= ?"
		args = append(args, *filter.EndDate)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.UsageStats{ModelBreakdown: make(map[string]*models.ModelSpend)}
	for rows.Next() {
		var model, reason string
		var amount int64
		if err := rows.Scan(&model, &reason, &amount); err != nil {
			return nil, err
		}

		stats.RecordCount++
		if reason == models.ReasonGrant {
			stats.TotalGranted += amount
			continue
		}
		stats.TotalCharged += amount
		if model != "" {
			ms, ok := stats.ModelBreakdown[model]
			if !ok {
				ms = &models.ModelSpend{Model: model}
				stats.ModelBreakdown[model] = ms
			}
			ms.Charged += amount
			ms.RecordCount++
		}
	}
	return stats, rows.Err()
}
