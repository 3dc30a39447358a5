package db

// Journal of every file written by an export, plus a small settings table
const schema = `
CREATE TABLE IF NOT EXISTS exports (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    kind TEXT NOT NULL,        -- document, attachment or placeholder
    subject TEXT,
    sender TEXT,
    filename TEXT,
    folder TEXT,
    success BOOLEAN NOT NULL DEFAULT 0,
    error TEXT,
    size INTEGER DEFAULT 0,
    created_at DATETIME NOT NULL
);

-- Full-text search over exported subjects and file names
CREATE VIRTUAL TABLE IF NOT EXISTS exports_fts USING fts5(
    subject,
    sender,
    filename,
    content='exports',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS exports_ai AFTER INSERT ON exports BEGIN
    INSERT INTO exports_fts(rowid, subject, sender, filename)
    VALUES (new.rowid, new.subject, new.sender, new.filename);
END;

CREATE TRIGGER IF NOT EXISTS exports_ad AFTER DELETE ON exports BEGIN
    INSERT INTO exports_fts(exports_fts, rowid, subject, sender, filename)
    VALUES ('delete', old.rowid, old.subject, old.sender, old.filename);
END;

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_exports_session ON exports(session_id, created_at DESC);
`
