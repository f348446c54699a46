package store

// Schema is the complete trackd schema. Timestamps are Unix milliseconds.
const Schema = `
-- Monitored resources
CREATE TABLE IF NOT EXISTS trackers (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    url           TEXT NOT NULL,
    owner_id      INTEGER NOT NULL,
    mode          TEXT NOT NULL CHECK(mode IN ('hash', 'text', 'element')),
    selector      TEXT NOT NULL DEFAULT '',
    interval_secs INTEGER NOT NULL CHECK(interval_secs > 0),
    last_hash     TEXT NOT NULL DEFAULT '',
    last_content  TEXT NOT NULL DEFAULT '',
    next_check_at INTEGER NOT NULL,
    status        TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'paused')),
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trackers_due ON trackers(status, next_check_at);
CREATE INDEX IF NOT EXISTS idx_trackers_owner ON trackers(owner_id);

-- Administrators (exactly one owner, seeded at first run)
CREATE TABLE IF NOT EXISTS admins (
    user_id  INTEGER PRIMARY KEY,
    role     TEXT NOT NULL CHECK(role IN ('owner', 'admin')),
    added_by INTEGER NOT NULL,
    added_at INTEGER NOT NULL
);
`
