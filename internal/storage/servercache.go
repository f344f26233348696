package storage

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/FocuswithJustin/CedarPulpit/core/bible"
	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
)

// maxClearOldDays bounds ClearOld's age argument.
const maxClearOldDays = 365

var timeNow = time.Now

// ServerCache is the server-side chapter cache backed by SQLite. Unlike
// the client cache it is unbounded; entries age out only through
// ClearOld. Each read increments a persisted access counter so
// popularity survives restarts.
type ServerCache struct {
	db *sql.DB
}

const serverCacheSchema = `
CREATE TABLE IF NOT EXISTS chapter_cache (
	key          TEXT PRIMARY KEY,
	reference    TEXT NOT NULL,
	text         TEXT NOT NULL,
	translation  TEXT NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	cached_at    INTEGER NOT NULL,
	accessed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chapter_cache_cached_at ON chapter_cache(cached_at);
`

// NewServerCache creates the cache table if needed.
func NewServerCache(db *sql.DB) (*ServerCache, error) {
	if _, err := db.Exec(serverCacheSchema); err != nil {
		return nil, errors.Wrap(err, "creating chapter_cache table")
	}
	return &ServerCache{db: db}, nil
}

// Get returns the cached chapter for the key, incrementing its access
// counter. A miss is reported through ok, not an error.
func (c *ServerCache) Get(ctx context.Context, book string, chapter int, translation string) (*bible.Chapter, bool, error) {
	key := bible.Key(book, chapter, translation)
	row := c.db.QueryRowContext(ctx,
		`SELECT reference, text, translation FROM chapter_cache WHERE key = ?`, key)

	var ch bible.Chapter
	if err := row.Scan(&ch.Reference, &ch.Text, &ch.Translation); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "reading cached chapter")
	}

	if _, err := c.db.ExecContext(ctx,
		`UPDATE chapter_cache SET access_count = access_count + 1, accessed_at = ? WHERE key = ?`,
		timeNow().Unix(), key); err != nil {
		// A failed counter bump does not invalidate the content.
		logging.WarnContext(ctx, "failed to bump cache access counter", "key", key, "error", err)
	}
	return &ch, true, nil
}

// Set stores or replaces the cached chapter for the key. A replaced
// entry's access counter restarts at zero.
func (c *ServerCache) Set(ctx context.Context, book string, chapter int, translation string, ch *bible.Chapter) error {
	key := bible.Key(book, chapter, translation)
	now := timeNow().Unix()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO chapter_cache (key, reference, text, translation, access_count, cached_at, accessed_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			reference = excluded.reference,
			text = excluded.text,
			translation = excluded.translation,
			access_count = 0,
			cached_at = excluded.cached_at,
			accessed_at = excluded.accessed_at`,
		key, ch.Reference, ch.Text, ch.Translation, now, now)
	if err != nil {
		return errors.Wrap(err, "storing cached chapter")
	}
	return nil
}

// ClearOld deletes entries cached more than daysOld days ago and
// returns how many were removed. daysOld must be an integer in [0, 365];
// 0 clears everything.
func (c *ServerCache) ClearOld(ctx context.Context, daysOld float64) (int64, error) {
	if daysOld != math.Trunc(daysOld) {
		return 0, errors.NewValidation("days", "must be a whole number of days")
	}
	days := int(daysOld)
	if days < 0 || days > maxClearOldDays {
		return 0, errors.NewValidation("days", "must be between 0 and 365")
	}

	cutoff := timeNow().AddDate(0, 0, -days).Unix()
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM chapter_cache WHERE cached_at <= ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "clearing old cache entries")
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting cleared entries")
	}
	logging.InfoContext(ctx, "cleared old cache entries", "days", days, "removed", removed)
	return removed, nil
}

// PopularChapter is one row of the popularity report.
type PopularChapter struct {
	Reference   string `json:"reference"`
	Translation string `json:"translation"`
	AccessCount int64  `json:"access_count"`
}

// TopChapters returns the n most-accessed cached chapters.
func (c *ServerCache) TopChapters(ctx context.Context, n int) ([]PopularChapter, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT reference, translation, access_count
		FROM chapter_cache
		ORDER BY access_count DESC, accessed_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "querying popular chapters")
	}
	defer rows.Close()

	var out []PopularChapter
	for rows.Next() {
		var p PopularChapter
		if err := rows.Scan(&p.Reference, &p.Translation, &p.AccessCount); err != nil {
			return nil, errors.Wrap(err, "scanning popular chapter")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Len returns the number of cached chapters.
func (c *ServerCache) Len(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapter_cache`).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "counting cache entries")
	}
	return n, nil
}
