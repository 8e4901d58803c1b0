package note

import (
	"context"

	"github.com/ecolehub/backend/core"
)

var (
	// errors
	ErrNotFound         = core.NotFound("errors.notes.notFound")
	ErrSyncInProgress   = core.Conflict("errors.sync.inProgress")
	ErrNoPublishHandler = core.NewAppError(core.CodeInternal, "errors.sync.noPublishHandler")
)

// Scope narrows note queries. Empty fields match any note.
type Scope struct {
	SchoolID  string
	ClassID   string
	TeacherID string
}

type (
	// Notes holds the local drafts. Every write marks the touched rows dirty and
	// queues a sync item. Unpublished notes are the dirty, non-deleted ones.
	Notes interface {
		SaveNote(ctx context.Context, n Note, details []Detail) error
		// UpdateNote upserts details by student.
		UpdateNote(ctx context.Context, id string, upd Update, details []Detail) error
		// DeleteNote soft-deletes the note and its details.
		DeleteNote(ctx context.Context, id string) error
		UpdateStudentGrade(ctx context.Context, noteID, studentID string, value float64) error
		PublishNote(ctx context.Context, id string) error

		// GetNote returns a non-deleted note with its details, or ErrNotFound.
		GetNote(ctx context.Context, id string) (Note, error)
		FindNote(ctx context.Context, key Key) (Note, error)
		NotesByClass(ctx context.Context, classID string, publishedOnly bool) ([]Note, error)
		NotesByTeacher(ctx context.Context, teacherID, classID string, publishedOnly bool) ([]Note, error)
		UnpublishedNotes(ctx context.Context) ([]Note, error)
		FindUnpublishedNote(ctx context.Context, key Key) (Note, error)
		CountUnpublished(ctx context.Context) (int, error)
		// DraftNotes and CountDrafts return the notes never published within scope.
		DraftNotes(ctx context.Context, scope Scope) ([]Note, error)
		CountDrafts(ctx context.Context, scope Scope) (int, error)
		GradesByNote(ctx context.Context, noteID string) ([]Detail, error)
	}

	Queue interface {
		// PendingItems is ordered by creation.
		PendingItems(ctx context.Context) ([]SyncItem, error)
		MarkCompleted(ctx context.Context, id string) error
		// MarkFailed keeps the item pending until MaxAttempts is reached.
		MarkFailed(ctx context.Context, id, msg string) error
		// UpdateSyncTimestamp clears the dirty flag of the note and its details.
		UpdateSyncTimestamp(ctx context.Context, noteID string) error
		ClearCompleted(ctx context.Context) error
		PendingCount(ctx context.Context) (int, error)
		// ClearAfterPublish deletes the notes with their details and the completed items.
		ClearAfterPublish(ctx context.Context, noteIDs []string) error
	}

	// Snapshots persists encoded cache entries.
	Snapshots interface {
		PutSnapshot(ctx context.Context, key string, payload []byte) error
		// GetSnapshot reports false when key is absent.
		GetSnapshot(ctx context.Context, key string) ([]byte, bool, error)
		DeleteSnapshot(ctx context.Context, key string) error
		SnapshotKeys(ctx context.Context, prefix string) ([]string, error)
	}

	Store interface {
		Notes
		Queue
		Snapshots
	}
)
