package note

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ecolehub/backend/core"
)

// PublishResult is the server's answer to a published note.
type PublishResult struct {
	Success  bool   `json:"success"`
	RemoteID string `json:"remote_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PublishHandler sends a note with its details to the server.
type PublishHandler func(ctx context.Context, n Note) (PublishResult, error)

type PublishOptions struct {
	// NoteIDs restricts the publish to these unpublished notes. Empty means all.
	NoteIDs []string
	// KeepLocal keeps the synced notes in the local store.
	KeepLocal bool
	// OnProgress is called before each note with its 1-based position.
	OnProgress func(done, total int)
}

type SyncError struct {
	NoteID string `json:"note_id"`
	Error  string `json:"error"`
}

type SyncResult struct {
	Success     bool        `json:"success"`
	SyncedNotes []string    `json:"synced_notes"`
	FailedNotes []string    `json:"failed_notes"`
	Errors      []SyncError `json:"errors"`
}

func newSyncResult() SyncResult {
	return SyncResult{Success: true, SyncedNotes: []string{}, FailedNotes: []string{}, Errors: []SyncError{}}
}

func (res *SyncResult) fail(id, msg string) {
	res.FailedNotes = append(res.FailedNotes, id)
	if msg != "" {
		res.Errors = append(res.Errors, SyncError{NoteID: id, Error: msg})
	}
}

// Syncer publishes local notes. One sync runs at a time.
type Syncer struct {
	store  Store
	logger core.Logger

	mu      sync.Mutex
	syncing bool
	handler PublishHandler
}

func NewSyncer(store Store, logger core.Logger) *Syncer {
	return &Syncer{store: store, logger: logger}
}

func (s *Syncer) SetPublishHandler(h PublishHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Syncer) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// begin marks a sync running and returns the handler to use.
func (s *Syncer) begin(needHandler bool) (PublishHandler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing {
		return nil, ErrSyncInProgress
	}
	if needHandler && s.handler == nil {
		return nil, ErrNoPublishHandler
	}
	s.syncing = true
	return s.handler, nil
}

func (s *Syncer) end() {
	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
}

// PublishNotes sends the unpublished notes one at a time. A failed note stays
// local and dirty for a later retry.
func (s *Syncer) PublishNotes(ctx context.Context, opts PublishOptions) (SyncResult, error) {
	handler, err := s.begin(true)
	if err != nil {
		return SyncResult{}, err
	}
	defer s.end()

	res := newSyncResult()
	notes, err := s.store.UnpublishedNotes(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if len(opts.NoteIDs) > 0 {
		notes = filterNotes(notes, opts.NoteIDs)
	}

	for i, n := range notes {
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(notes))
		}
		pr, err := handler(ctx, n)
		switch {
		case err != nil:
			res.fail(n.ID, err.Error())
		case !pr.Success:
			msg := pr.Error
			if msg == "" {
				msg = "unknown error"
			}
			res.fail(n.ID, msg)
		default:
			if err = s.store.UpdateSyncTimestamp(ctx, n.ID); err != nil {
				return res, err
			}
			res.SyncedNotes = append(res.SyncedNotes, n.ID)
		}
	}

	if !opts.KeepLocal && len(res.SyncedNotes) > 0 {
		if err = s.store.ClearAfterPublish(ctx, res.SyncedNotes); err != nil {
			return res, err
		}
	}
	res.Success = len(res.FailedNotes) == 0
	return res, nil
}

func filterNotes(notes []Note, ids []string) []Note {
	filtered := make([]Note, 0, len(ids))
	for _, n := range notes {
		if core.StringInSlice(n.ID, ids) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// ProcessSyncQueue replays the pending queue items through the publish handler.
func (s *Syncer) ProcessSyncQueue(ctx context.Context) (SyncResult, error) {
	handler, err := s.begin(false)
	if err != nil {
		return SyncResult{}, err
	}
	defer s.end()

	res := newSyncResult()
	items, err := s.store.PendingItems(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	for _, item := range items {
		ok, pErr := s.processItem(ctx, handler, item)
		if pErr != nil {
			msg := pErr.Error()
			s.logger.Warn(fmt.Sprintf("processing sync item %s: %s", item.ID, msg), pErr)
			if err := s.store.MarkFailed(ctx, item.ID, msg); err != nil {
				return res, err
			}
			res.fail(item.RecordID, msg)
			continue
		}
		if !ok {
			if err := s.store.MarkFailed(ctx, item.ID, "processing failed"); err != nil {
				return res, err
			}
			res.fail(item.RecordID, "")
			continue
		}
		if err := s.store.MarkCompleted(ctx, item.ID); err != nil {
			return res, err
		}
		res.SyncedNotes = append(res.SyncedNotes, item.RecordID)
	}
	res.Success = len(res.FailedNotes) == 0
	return res, nil
}

func (s *Syncer) processItem(ctx context.Context, handler PublishHandler, item SyncItem) (bool, error) {
	if handler == nil {
		return false, ErrNoPublishHandler
	}

	var noteID string
	switch item.TableName {
	case TableNotes:
		if item.Operation == OpDelete {
			return true, nil
		}
		noteID = item.RecordID
	case TableDetails:
		var data DetailData
		if err := json.Unmarshal([]byte(item.Data), &data); err != nil || data.NoteID == "" {
			return true, nil
		}
		noteID = data.NoteID
	default:
		return true, nil
	}

	n, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if core.IsCode(err, core.CodeNotFound) {
			// deleted locally since it was queued
			return true, nil
		}
		return false, err
	}
	pr, err := handler(ctx, n)
	if err != nil {
		return false, err
	}
	return pr.Success, nil
}

func (s *Syncer) CleanupSyncQueue(ctx context.Context) error {
	return s.store.ClearCompleted(ctx)
}

func (s *Syncer) PendingSyncCount(ctx context.Context) (int, error) {
	return s.store.PendingCount(ctx)
}
