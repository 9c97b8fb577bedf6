package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"docchat/internal/model"
)

var ErrInvalidCursor = errors.New("invalid cursor")

const cursorSep = "|"

// SessionPage is one page of sessions ordered by last activity, newest first.
type SessionPage struct {
	Sessions   []model.SessionSummary `json:"sessions"`
	NextCursor *string                `json:"next_cursor"`
}

type MessageRepository struct {
	db  *gorm.DB
	now func() time.Time

	mu     sync.Mutex
	lastUS int64
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (r *MessageRepository) WithClock(now func() time.Time) *MessageRepository {
	r.now = now
	return r
}

func (r *MessageRepository) Migrate() error {
	if err := r.db.AutoMigrate(&model.Message{}); err != nil {
		return fmt.Errorf("migrate conversation history failed: %w", err)
	}
	return nil
}

// Append stores one message with a server-assigned timestamp. Timestamps
// never go backwards within a process even if the wall clock does.
func (r *MessageRepository) Append(ctx context.Context, sessionID, role, content string) (*model.Message, error) {
	message := &model.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedUS: r.nextTimestamp(),
	}
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("create message failed: %w", err)
	}
	return message, nil
}

func (r *MessageRepository) ListBySessionID(ctx context.Context, sessionID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_us ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// History returns the session's turns in chronological order; an unknown
// session yields an empty slice.
func (r *MessageRepository) History(ctx context.Context, sessionID string) ([]model.Turn, error) {
	messages, err := r.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]model.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, model.Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

type sessionRow struct {
	SessionID   string
	LastUpdated int64
}

// ListSessions pages through sessions ordered by last_updated DESC and then
// session_id ASC. The cursor carries both keys so sessions that share a
// timestamp are neither skipped nor repeated across pages.
func (r *MessageRepository) ListSessions(ctx context.Context, cursor string, limit int) (*SessionPage, error) {
	if limit <= 0 {
		limit = 10
	}

	q := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("session_id, MAX(created_us) AS last_updated").
		Group("session_id")

	if cursor != "" {
		lastUS, lastID, err := parseSessionCursor(cursor)
		if err != nil {
			return nil, err
		}
		if lastID == "" {
			q = q.Having("MAX(created_us) < ?", lastUS)
		} else {
			q = q.Having("MAX(created_us) < ? OR (MAX(created_us) = ? AND session_id > ?)", lastUS, lastUS, lastID)
		}
	}

	var rows []sessionRow
	err := q.Order("last_updated DESC").
		Order("session_id ASC").
		Limit(limit + 1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}

	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}

	page := &SessionPage{Sessions: make([]model.SessionSummary, 0, len(rows))}
	for _, row := range rows {
		page.Sessions = append(page.Sessions, model.SessionSummary{
			SessionID:   row.SessionID,
			LastUpdated: time.UnixMicro(row.LastUpdated).UTC(),
		})
	}
	if more {
		last := rows[len(rows)-1]
		next := FormatSessionCursor(last.LastUpdated, last.SessionID)
		page.NextCursor = &next
	}
	return page, nil
}

// DeleteBySessionID removes every message of the session. Removing an
// unknown session is not an error.
func (r *MessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete session messages failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) nextTimestamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.now().UnixMicro()
	if ts < r.lastUS {
		ts = r.lastUS
	}
	r.lastUS = ts
	return ts
}

// FormatSessionCursor renders the keyset position after a session.
func FormatSessionCursor(lastUpdatedUS int64, sessionID string) string {
	return time.UnixMicro(lastUpdatedUS).UTC().Format(time.RFC3339Nano) + cursorSep + sessionID
}

// parseSessionCursor accepts "<RFC3339 timestamp>|<session id>" or a bare
// timestamp. A bare timestamp pages strictly below that instant.
func parseSessionCursor(cursor string) (int64, string, error) {
	raw, sessionID, _ := strings.Cut(cursor, cursorSep)
	raw = strings.TrimSpace(raw)

	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UnixMicro(), sessionID, nil
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05.999999", raw, time.UTC); err == nil {
		return ts.UnixMicro(), sessionID, nil
	}
	if us, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return us, sessionID, nil
	}
	return 0, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
}
