package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	type              TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT 'system',
	priority          TEXT NOT NULL DEFAULT 'medium',
	title             TEXT NOT NULL DEFAULT '',
	message           TEXT NOT NULL DEFAULT '',
	sender_id         TEXT NOT NULL DEFAULT '',
	sender_first_name TEXT NOT NULL DEFAULT '',
	sender_last_name  TEXT NOT NULL DEFAULT '',
	sender_avatar     TEXT NOT NULL DEFAULT '',
	data              TEXT NOT NULL DEFAULT '',
	is_read           INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, is_read);

CREATE INDEX IF NOT EXISTS idx_notifications_user_category
	ON notifications(user_id, category);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
