package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
)

// StoredSermon is one sermon row as the server persists and serves it.
type StoredSermon struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Speaker        string    `json:"speaker,omitempty"`
	Series         string    `json:"series,omitempty"`
	VerseReference string    `json:"verse_reference,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Date           string    `json:"date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SermonPage is one page of a paginated sermon listing.
type SermonPage struct {
	Items      []*StoredSermon `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// SermonStore persists sermon records in SQLite for the sync API.
type SermonStore struct {
	db *sql.DB
}

const sermonSchema = `
CREATE TABLE IF NOT EXISTS sermons (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	speaker         TEXT NOT NULL DEFAULT '',
	series          TEXT NOT NULL DEFAULT '',
	verse_reference TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	date            TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sermons_updated_at ON sermons(updated_at);
`

// NewSermonStore creates the sermons table if needed.
func NewSermonStore(db *sql.DB) (*SermonStore, error) {
	if _, err := db.Exec(sermonSchema); err != nil {
		return nil, errors.Wrap(err, "creating sermons table")
	}
	return &SermonStore{db: db}, nil
}

// Create inserts a sermon, assigning an ID when the caller supplied none.
func (s *SermonStore) Create(ctx context.Context, rec *StoredSermon) (*StoredSermon, error) {
	if rec.Title == "" {
		return nil, errors.NewValidation("title", "title is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := timeNow().UTC().Truncate(time.Second)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "encoding tags")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sermons (id, title, speaker, series, verse_reference, notes, tags, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Speaker, rec.Series, rec.VerseReference,
		rec.Notes, string(tags), rec.Date, now.Unix(), now.Unix())
	if err != nil {
		return nil, errors.Wrap(err, "inserting sermon")
	}
	return rec, nil
}

// Get returns one sermon by ID.
func (s *SermonStore) Get(ctx context.Context, id string) (*StoredSermon, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, speaker, series, verse_reference, notes, tags, date, created_at, updated_at
		FROM sermons WHERE id = ?`, id)
	rec, err := scanSermon(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("sermon", id)
		}
		return nil, errors.Wrap(err, "reading sermon")
	}
	return rec, nil
}

// Update replaces a sermon's mutable fields and bumps updated_at.
func (s *SermonStore) Update(ctx context.Context, rec *StoredSermon) (*StoredSermon, error) {
	if rec.ID == "" {
		return nil, errors.NewValidation("id", "id is required")
	}
	if rec.Title == "" {
		return nil, errors.NewValidation("title", "title is required")
	}
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "encoding tags")
	}
	now := timeNow().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, `
		UPDATE sermons SET title = ?, speaker = ?, series = ?, verse_reference = ?,
			notes = ?, tags = ?, date = ?, updated_at = ?
		WHERE id = ?`,
		rec.Title, rec.Speaker, rec.Series, rec.VerseReference,
		rec.Notes, string(tags), rec.Date, now.Unix(), rec.ID)
	if err != nil {
		return nil, errors.Wrap(err, "updating sermon")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "updating sermon")
	}
	if affected == 0 {
		return nil, errors.NewNotFound("sermon", rec.ID)
	}
	return s.Get(ctx, rec.ID)
}

// Delete removes one sermon by ID.
func (s *SermonStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sermons WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting sermon")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting sermon")
	}
	if affected == 0 {
		return errors.NewNotFound("sermon", id)
	}
	return nil
}

// List returns one page of sermons ordered newest-modified first.
// Pages are 1-based; an out-of-range page returns an empty item list,
// not an error.
func (s *SermonStore) List(ctx context.Context, page, pageSize int) (*SermonPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sermons`).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "counting sermons")
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages == 0 {
		totalPages = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, speaker, series, verse_reference, notes, tags, date, created_at, updated_at
		FROM sermons ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "listing sermons")
	}
	defer rows.Close()

	out := &SermonPage{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
	for rows.Next() {
		rec, err := scanSermon(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning sermon")
		}
		out.Items = append(out.Items, rec)
	}
	return out, rows.Err()
}

// BulkImport inserts many sermons in one transaction. Records that fail
// validation are skipped and counted; a storage failure aborts the whole
// import.
func (s *SermonStore) BulkImport(ctx context.Context, recs []*StoredSermon) (imported, skipped int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "starting bulk import")
	}
	defer tx.Rollback()

	now := timeNow().UTC().Truncate(time.Second)
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sermons (id, title, speaker, series, verse_reference, notes, tags, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, speaker = excluded.speaker, series = excluded.series,
			verse_reference = excluded.verse_reference, notes = excluded.notes,
			tags = excluded.tags, date = excluded.date, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, 0, errors.Wrap(err, "preparing bulk import")
	}
	defer stmt.Close()

	for _, rec := range recs {
		if rec.Title == "" {
			skipped++
			continue
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		tags, merr := json.Marshal(rec.Tags)
		if merr != nil {
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, rec.Title, rec.Speaker, rec.Series,
			rec.VerseReference, rec.Notes, string(tags), rec.Date, now.Unix(), now.Unix()); err != nil {
			return 0, 0, errors.Wrap(err, "bulk inserting sermon")
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, errors.Wrap(err, "committing bulk import")
	}
	return imported, skipped, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSermon(row rowScanner) (*StoredSermon, error) {
	var rec StoredSermon
	var tags string
	var created, updated int64
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Speaker, &rec.Series,
		&rec.VerseReference, &rec.Notes, &tags, &rec.Date, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		rec.Tags = nil
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()
	rec.UpdatedAt = time.Unix(updated, 0).UTC()
	return &rec, nil
}
