// Package sermon defines the sermon record and the local library
// collection the search and sync layers operate on.
package sermon

import (
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
)

// Record is one sermon in the library.
type Record struct {
	ID             string     `json:"id"`
	RemoteID       string     `json:"remote_id,omitempty"`
	Title          string     `json:"title"`
	Speaker        string     `json:"speaker"`
	Series         string     `json:"series"`
	VerseReference string     `json:"verse_reference"`
	Notes          string     `json:"notes"`
	Tags           []string   `json:"tags,omitempty"`
	Date           string     `json:"date,omitempty"` // scheduled preaching date, YYYY-MM-DD
	CreatedAt      time.Time  `json:"created_at"`
	LastModified   time.Time  `json:"last_modified"`
	LastSynced     *time.Time `json:"last_synced,omitempty"`
	NeedsSync      bool       `json:"needs_sync"`
}

// HasTag reports whether the record carries the given tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Library is the local, in-memory sermon collection. It is owned by the
// composition root and handed to the search engine and sync coordinator
// by reference; nothing else mutates it while a sync pass runs.
type Library struct {
	records []*Record
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{}
}

// LoadLibrary creates a library from existing records (e.g. restored
// from durable storage).
func LoadLibrary(records []*Record) *Library {
	l := &Library{records: make([]*Record, len(records))}
	copy(l.records, records)
	return l
}

// Add inserts a new record. A missing ID is assigned; timestamps are
// initialized and the record is flagged for sync.
func (l *Library) Add(r *Record) *Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.LastModified = now
	r.NeedsSync = true
	l.records = append(l.records, r)
	return r
}

// Get returns the record with the given local ID.
func (l *Library) Get(id string) (*Record, error) {
	for _, r := range l.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NewNotFound("sermon", id)
}

// Update applies fields from upd to the stored record, bumps
// LastModified and flags the record for sync.
func (l *Library) Update(id string, upd *Record) (*Record, error) {
	r, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	r.Title = upd.Title
	r.Speaker = upd.Speaker
	r.Series = upd.Series
	r.VerseReference = upd.VerseReference
	r.Notes = upd.Notes
	r.Tags = upd.Tags
	r.Date = upd.Date
	r.LastModified = time.Now()
	r.NeedsSync = true
	return r, nil
}

// Remove deletes the record with the given local ID.
func (l *Library) Remove(id string) error {
	for i, r := range l.records {
		if r.ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return nil
		}
	}
	return errors.NewNotFound("sermon", id)
}

// ByRemoteID returns the record matching a remote ID, if any.
func (l *Library) ByRemoteID(remoteID string) *Record {
	if remoteID == "" {
		return nil
	}
	for _, r := range l.records {
		if r.RemoteID == remoteID {
			return r
		}
	}
	return nil
}

// All returns the records in insertion order. The slice is a copy; the
// records are shared.
func (l *Library) All() []*Record {
	out := make([]*Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Library) Len() int {
	return len(l.records)
}
