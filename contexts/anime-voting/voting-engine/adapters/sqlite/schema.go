package sqliteadapter

// Timestamps are stored as fixed-width UTC text so lexical order matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS voting_sessions (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL CHECK (length(title) <= 100),
    description TEXT NOT NULL DEFAULT '',
    master_id TEXT NOT NULL,
    is_public INTEGER NOT NULL DEFAULT 1,
    allow_multiple_votes INTEGER NOT NULL DEFAULT 1,
    max_votes_per_user INTEGER NOT NULL DEFAULT 1000 CHECK (max_votes_per_user > 0),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_voting_sessions_master_id ON voting_sessions(master_id);
CREATE INDEX IF NOT EXISTS idx_voting_sessions_is_public ON voting_sessions(is_public);

CREATE TABLE IF NOT EXISTS voting_session_items (
    session_id TEXT NOT NULL REFERENCES voting_sessions(id) ON DELETE CASCADE,
    item_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    added_at TEXT NOT NULL,
    PRIMARY KEY (session_id, item_id)
);

CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES voting_sessions(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    entries TEXT NOT NULL,
    cast_at TEXT NOT NULL,
    created_at TEXT NOT NULL,
    CONSTRAINT votes_session_user_key UNIQUE (session_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_user_id ON votes(user_id);

CREATE TABLE IF NOT EXISTS voting_idempotency (
    key TEXT PRIMARY KEY,
    request_hash TEXT NOT NULL,
    session_id TEXT NOT NULL,
    expires_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS voting_outbox (
    outbox_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    partition_key TEXT NOT NULL DEFAULT '',
    payload BLOB NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'published')),
    created_at TEXT NOT NULL,
    published_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_voting_outbox_status ON voting_outbox(status, created_at);
`
