// ABOUTME: SQLite database schema for the chunk vector index
// ABOUTME: One row per chunk with its metadata columns and a float64 BLOB vector
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Schema bookkeeping
CREATE TABLE IF NOT EXISTS schema_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexed chunks; id is document_id:pN:cI:start-end
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    page_number INTEGER NOT NULL DEFAULT 0,
    chunk_index INTEGER NOT NULL DEFAULT 0,
    char_start INTEGER NOT NULL DEFAULT 0,
    char_end INTEGER NOT NULL DEFAULT 0,
    section_path TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    embedding_model TEXT NOT NULL DEFAULT '',
    dimension INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_category ON chunks(category);
CREATE INDEX IF NOT EXISTS idx_chunks_page ON chunks(document_id, page_number, chunk_index);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
