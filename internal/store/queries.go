package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhouzirui/catmaid/backend/internal/model/chat"
	"github.com/zhouzirui/catmaid/backend/internal/model/status"
)

// deleteBatchSize keeps IN (...) lists well below SQLite's variable limit.
const deleteBatchSize = 500

type queries struct {
	db dbtx
}

const statusColumns = `user_id, affection, stamina, mood,
	last_stamina_update, last_mood_update, created_at, updated_at`

func (q queries) GetStatus(ctx context.Context, userID string) (*status.UserStatus, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+statusColumns+` FROM user_status WHERE user_id = ?`, userID)

	st, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan status row: %w", err)
	}
	return &st, nil
}

func (q queries) InsertStatus(ctx context.Context, st status.UserStatus) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO user_status (`+statusColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		st.UserID, st.Affection, st.Stamina, st.Mood,
		unixNano(st.LastStaminaUpdate), unixNano(st.LastMoodUpdate),
		unixNano(st.CreatedAt), unixNano(st.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return n > 0, nil
}

func (q queries) SaveStatus(ctx context.Context, st status.UserStatus) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE user_status SET
			affection = ?, stamina = ?, mood = ?,
			last_stamina_update = ?, last_mood_update = ?, updated_at = ?
		WHERE user_id = ?`,
		st.Affection, st.Stamina, st.Mood,
		unixNano(st.LastStaminaUpdate), unixNano(st.LastMoodUpdate), unixNano(st.UpdatedAt),
		st.UserID,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		slog.Warn("SaveStatus affected 0 rows", "user_id", st.UserID)
		return fmt.Errorf("status for %q not found", st.UserID)
	}
	return nil
}

func (q queries) DeleteStatus(ctx context.Context, userID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM user_status WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	return nil
}

func (q queries) ListStatuses(ctx context.Context) ([]status.UserStatus, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+statusColumns+` FROM user_status ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer closeRows(rows, "statuses")

	var out []status.UserStatus
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	return out, nil
}

func (q queries) AppendEntry(ctx context.Context, e chat.Entry) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO chat_history (user_id, turn_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.TurnID, string(e.Role), e.Content, unixNano(e.Timestamp),
	)
	if err != nil {
		return 0, fmt.Errorf("insert chat entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

const entryColumns = `id, user_id, turn_id, role, content, timestamp`

func (q queries) RecentEntries(ctx context.Context, userID string, limit int) ([]chat.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM chat_history
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, userID, limit)
}

func (q queries) ListEntries(ctx context.Context, userID string) ([]chat.Entry, error) {
	return q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM chat_history
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC`, userID)
}

func (q queries) CountEntries(ctx context.Context, userID string) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_history WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chat entries: %w", err)
	}
	return n, nil
}

func (q queries) DeleteEntries(ctx context.Context, ids []int64) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		res, err := q.db.ExecContext(ctx, `DELETE FROM chat_history WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return total, fmt.Errorf("delete chat entries: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("get rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

func (q queries) DeleteUserEntries(ctx context.Context, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM chat_history WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user chat entries: %w", err)
	}
	return res.RowsAffected()
}

func (q queries) queryEntries(ctx context.Context, query string, args ...any) ([]chat.Entry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat entries: %w", err)
	}
	defer closeRows(rows, "chat entries")

	var out []chat.Entry
	for rows.Next() {
		var e chat.Entry
		var role string
		var ts int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.TurnID, &role, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan chat entry: %w", err)
		}
		e.Role = chat.Role(role)
		e.Timestamp = fromUnixNano(ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat entries: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(row scanner) (status.UserStatus, error) {
	var st status.UserStatus
	var lastStamina, lastMood, createdAt, updatedAt int64
	if err := row.Scan(
		&st.UserID, &st.Affection, &st.Stamina, &st.Mood,
		&lastStamina, &lastMood, &createdAt, &updatedAt,
	); err != nil {
		return status.UserStatus{}, err
	}
	st.LastStaminaUpdate = fromUnixNano(lastStamina)
	st.LastMoodUpdate = fromUnixNano(lastMood)
	st.CreatedAt = fromUnixNano(createdAt)
	st.UpdatedAt = fromUnixNano(updatedAt)
	return st, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
