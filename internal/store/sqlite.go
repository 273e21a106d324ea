package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/marketbell/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateNotification inserts n for userID. Missing id, category,
// priority and creation time are filled in; the stored record is
// returned.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	userID string,
	n model.Notification,
) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	if n.Category == "" {
		n.Category = model.CategoryFor(n.Type)
	}
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}

	row := toRow(userID, n)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, type, category, priority,
			title, message,
			sender_id, sender_first_name, sender_last_name, sender_avatar,
			data, is_read, created_at
		) VALUES (
			:id, :user_id, :type, :category, :priority,
			:title, :message,
			:sender_id, :sender_first_name, :sender_last_name, :sender_avatar,
			:data, :is_read, :created_at
		)`, row)
	if err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	return n, nil
}

// ListNotifications returns the user's notifications matching filter,
// newest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	userID string,
	filter model.Filter,
) ([]model.Notification, error) {
	conditions := []string{"user_id = ?"}
	args := []interface{}{userID}

	if filter.IsRead != nil {
		conditions = append(conditions, "is_read = ?")
		args = append(args, boolToInt(*filter.IsRead))
	}
	if filter.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, string(*filter.Category))
	}

	query := "SELECT * FROM notifications WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *SQLiteStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one notification as read. Marking an already read
// notification succeeds.
func (s *SQLiteStore) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND id = ?", userID, id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return requireAffected(res, id)
}

// MarkAllRead marks every unread notification of the user as read and
// reports how many changed.
func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications as read: %w", err)
	}
	return res.RowsAffected()
}

// DeleteNotification removes one notification.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = ? AND id = ?", userID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// DeleteAll removes every notification of the user.
func (s *SQLiteStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting all notifications: %w", err)
	}
	return res.RowsAffected()
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffected, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// notificationRow is the flat column layout of the notifications table.
type notificationRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	Type            string    `db:"type"`
	Category        string    `db:"category"`
	Priority        string    `db:"priority"`
	Title           string    `db:"title"`
	Message         string    `db:"message"`
	SenderID        string    `db:"sender_id"`
	SenderFirstName string    `db:"sender_first_name"`
	SenderLastName  string    `db:"sender_last_name"`
	SenderAvatar    string    `db:"sender_avatar"`
	Data            string    `db:"data"`
	IsRead          int       `db:"is_read"`
	CreatedAt       time.Time `db:"created_at"`
}

func toRow(userID string, n model.Notification) notificationRow {
	r := notificationRow{
		ID:        n.ID,
		UserID:    userID,
		Type:      string(n.Type),
		Category:  string(n.Category),
		Priority:  string(n.Priority),
		Title:     n.Title,
		Message:   n.Message,
		Data:      string(n.Data),
		IsRead:    boolToInt(n.IsRead),
		CreatedAt: n.CreatedAt,
	}
	if n.Sender != nil {
		r.SenderID = n.Sender.ID
		r.SenderFirstName = n.Sender.FirstName
		r.SenderLastName = n.Sender.LastName
		r.SenderAvatar = n.Sender.Avatar
	}
	return r
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:        r.ID,
		Type:      model.NotificationType(r.Type),
		Category:  model.Category(r.Category),
		Priority:  model.Priority(r.Priority),
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead != 0,
		CreatedAt: r.CreatedAt,
	}
	if r.SenderID != "" {
		n.Sender = &model.Sender{
			ID:        r.SenderID,
			FirstName: r.SenderFirstName,
			LastName:  r.SenderLastName,
			Avatar:    r.SenderAvatar,
		}
	}
	if r.Data != "" {
		n.Data = json.RawMessage(r.Data)
	}
	return n
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
