// Package sync reconciles the local sermon library against a remote
// collection, uploading local changes and materializing remote records.
package sync

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/core/sermon"
	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
)

// ConflictPolicy decides what happens when a remote record is newer
// than its local counterpart.
type ConflictPolicy string

const (
	// LocalFirst counts conflicts without touching local data. Default.
	LocalFirst ConflictPolicy = "local-first"
	// CloudFirst overwrites local fields from the newer remote record.
	CloudFirst ConflictPolicy = "cloud-first"
)

// RemoteRecord is a sermon as the remote store represents it.
type RemoteRecord struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Speaker        string    `json:"speaker"`
	Series         string    `json:"series"`
	VerseReference string    `json:"verse_reference"`
	Notes          string    `json:"notes"`
	Tags           []string  `json:"tags,omitempty"`
	Date           string    `json:"date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Page is one page of the remote collection.
type Page struct {
	Items      []*RemoteRecord `json:"items"`
	TotalPages int             `json:"total_pages"`
}

// RemoteStore is the remote object store the coordinator reconciles
// against. Implementations live elsewhere (HTTP client, test fakes).
type RemoteStore interface {
	List(ctx context.Context, page, pageSize int) (*Page, error)
	Create(ctx context.Context, r *sermon.Record) (*RemoteRecord, error)
	Update(ctx context.Context, remoteID string, r *sermon.Record) (*RemoteRecord, error)
}

// Result summarizes one sync pass.
type Result struct {
	Uploaded   int `json:"uploaded"`
	Downloaded int `json:"downloaded"`
	Conflicts  int `json:"conflicts"`
	Errors     int `json:"errors"`
}

// Coordinator runs full sync passes. At most one pass runs at a time;
// a concurrent call fails fast with ErrSyncInProgress.
type Coordinator struct {
	remote   RemoteStore
	policy   ConflictPolicy
	pageSize int
	syncing  atomic.Bool
}

// NewCoordinator creates a coordinator. An empty policy defaults to
// LocalFirst; a non-positive pageSize defaults to 50.
func NewCoordinator(remote RemoteStore, policy ConflictPolicy, pageSize int) *Coordinator {
	if policy == "" {
		policy = LocalFirst
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Coordinator{remote: remote, policy: policy, pageSize: pageSize}
}

// Policy returns the configured conflict policy.
func (c *Coordinator) Policy() ConflictPolicy { return c.policy }

// FullSync reconciles the library against the remote store: an upload
// pass for unsynced/dirty local records, then a paginated walk of the
// remote collection for downloads and conflict detection.
//
// Per-record failures are counted in Result.Errors and leave the record
// flagged for the next pass; they never abort the pass. A failure to
// list the remote collection ends the pass early and is returned as an
// error alongside the partial result; records that individually
// succeeded keep their new state, everything else is untouched.
func (c *Coordinator) FullSync(ctx context.Context, lib *sermon.Library) (*Result, error) {
	if !c.syncing.CompareAndSwap(false, true) {
		return nil, errors.ErrSyncInProgress
	}
	defer c.syncing.Store(false)

	result := &Result{}
	uploadedThisPass := make(map[string]bool)

	// Upload pass.
	for _, local := range lib.All() {
		if local.RemoteID != "" && !local.NeedsSync {
			continue
		}
		if err := c.upload(ctx, local); err != nil {
			result.Errors++
			logging.Warn("sync upload failed", "sermon_id", local.ID, "error", err)
			continue
		}
		uploadedThisPass[local.RemoteID] = true
		result.Uploaded++
	}

	// Download and conflict passes share one walk of the remote pages.
	for page := 1; ; page++ {
		remotePage, err := c.remote.List(ctx, page, c.pageSize)
		if err != nil {
			logging.Warn("sync list failed", "page", page, "error", err)
			return result, errors.Wrap(err, "listing remote collection")
		}
		for _, remote := range remotePage.Items {
			c.reconcile(lib, remote, uploadedThisPass, result)
		}
		if page >= remotePage.TotalPages {
			break
		}
	}

	logging.Info("sync complete",
		"uploaded", result.Uploaded,
		"downloaded", result.Downloaded,
		"conflicts", result.Conflicts,
		"errors", result.Errors)
	return result, nil
}

// upload pushes one local record, transitioning it to Synced on success.
// A failed record keeps NeedsSync set and is retried on the next pass.
func (c *Coordinator) upload(ctx context.Context, local *sermon.Record) error {
	var (
		remote *RemoteRecord
		err    error
	)
	if local.RemoteID == "" {
		remote, err = c.remote.Create(ctx, local)
	} else {
		remote, err = c.remote.Update(ctx, local.RemoteID, local)
	}
	if err != nil {
		return &errors.SyncError{LocalID: local.ID, Operation: "upload", Err: err}
	}

	local.RemoteID = remote.ID
	local.NeedsSync = false
	now := time.Now()
	local.LastSynced = &now
	return nil
}

// reconcile handles one remote record: materialize it locally when
// unknown, otherwise detect (and under CloudFirst, apply) conflicts.
// Records uploaded in this same pass are already current and skipped.
func (c *Coordinator) reconcile(lib *sermon.Library, remote *RemoteRecord, uploadedThisPass map[string]bool, result *Result) {
	local := lib.ByRemoteID(remote.ID)
	if local == nil {
		now := time.Now()
		lib.Add(&sermon.Record{
			ID:             uuid.NewString(),
			RemoteID:       remote.ID,
			Title:          remote.Title,
			Speaker:        remote.Speaker,
			Series:         remote.Series,
			VerseReference: remote.VerseReference,
			Notes:          remote.Notes,
			Tags:           remote.Tags,
			Date:           remote.Date,
			CreatedAt:      remote.CreatedAt,
		})
		// Add flags for sync; a downloaded record is already current.
		downloaded := lib.ByRemoteID(remote.ID)
		downloaded.LastModified = remote.UpdatedAt
		downloaded.NeedsSync = false
		downloaded.LastSynced = &now
		result.Downloaded++
		return
	}

	if uploadedThisPass[remote.ID] {
		return
	}

	if remote.UpdatedAt.After(local.LastModified) {
		result.Conflicts++
		if c.policy == CloudFirst {
			local.Title = remote.Title
			local.Speaker = remote.Speaker
			local.Series = remote.Series
			local.VerseReference = remote.VerseReference
			local.Notes = remote.Notes
			local.Tags = remote.Tags
			local.Date = remote.Date
			local.LastModified = remote.UpdatedAt
			local.NeedsSync = false
			now := time.Now()
			local.LastSynced = &now
		}
	}
}
