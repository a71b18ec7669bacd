package store

// AUTOINCREMENT keeps SQLite from handing out the id of a deleted row again.
// The triple index is deliberately not UNIQUE: duplicates are refused on
// create only, and a partial update may produce one.
const schema = `
CREATE TABLE IF NOT EXISTS jogos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    creator_name TEXT NOT NULL,
    game_name TEXT NOT NULL,
    release_date TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jogos_triple ON jogos(creator_name, game_name, release_date);
`
