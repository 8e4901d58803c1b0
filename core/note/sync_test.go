package note_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/note"
	"github.com/ecolehub/backend/storage/localdb"
	"github.com/ecolehub/backend/testutil"
)

const (
	studentA = "11111111-2222-4333-8444-555555555555"
	studentB = "66666666-7777-4888-9999-aaaaaaaaaaaa"
)

func openStore(t *testing.T) *localdb.Store {
	testutil.TickingClock(t)
	store, err := localdb.Open(filepath.Join(t.TempDir(), "notes.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveNote(t *testing.T, store note.Store, title, classID string, details ...note.Detail) note.Note {
	n := note.NewNote{
		SchoolID:  "7d0b1a8e-4b7c-4c55-9a39-3f1b8a2b2c01",
		ClassID:   classID,
		SubjectID: "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d",
		TermID:    "0f9e8d7c-6b5a-4c3d-2e1f-0a9b8c7d6e5f",
		TeacherID: "2b7f3c1d-9e8a-4f6b-8c5d-4a3b2c1d0e9f",
		Title:     title,
		Type:      "quiz",
		Weight:    1,
		GradeDate: "2024-10-01",
	}.Note()
	require.NoError(t, store.SaveNote(context.Background(), n, details))
	return n
}

// recorder is a publish handler refusing the notes titled in refuse.
type recorder struct {
	mu        sync.Mutex
	published []string
	refuse    map[string]string
	err       error
}

func (r *recorder) handle(_ context.Context, n note.Note) (note.PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return note.PublishResult{}, r.err
	}
	if msg, ok := r.refuse[n.Title]; ok {
		return note.PublishResult{Success: false, Error: msg}, nil
	}
	r.published = append(r.published, n.Title)
	return note.PublishResult{Success: true, RemoteID: "r-" + n.ID}, nil
}

func newSyncer(store note.Store, h note.PublishHandler) *note.Syncer {
	s := note.NewSyncer(store, testutil.NewLogger(core.NewTestConfig()))
	if h != nil {
		s.SetPublishHandler(h)
	}
	return s
}

func TestSyncer_PublishNotes(t *testing.T) {
	ctx := context.Background()

	t.Run("no handler", func(t *testing.T) {
		s := newSyncer(openStore(t), nil)
		_, err := s.PublishNotes(ctx, note.PublishOptions{})
		assert.ErrorIs(t, err, note.ErrNoPublishHandler)
		assert.False(t, s.IsSyncing())
	})

	t.Run("partial failure", func(t *testing.T) {
		store := openStore(t)
		ok := saveNote(t, store, "Interro 1", "c1", note.Detail{StudentID: studentA, Value: 12})
		ko := saveNote(t, store, "Interro 2", "c1")
		rec := &recorder{refuse: map[string]string{"Interro 2": ""}}
		s := newSyncer(store, rec.handle)

		var progress [][2]int
		res, err := s.PublishNotes(ctx, note.PublishOptions{OnProgress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		}})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, []string{ok.ID}, res.SyncedNotes)
		assert.Equal(t, []string{ko.ID}, res.FailedNotes)
		assert.Equal(t, []note.SyncError{{NoteID: ko.ID, Error: "unknown error"}}, res.Errors)
		assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)

		_, err = store.GetNote(ctx, ok.ID)
		assert.ErrorIs(t, err, note.ErrNotFound)
		n, err := store.GetNote(ctx, ko.ID)
		require.NoError(t, err)
		assert.True(t, n.IsDirty)
	})

	t.Run("selected notes kept local", func(t *testing.T) {
		store := openStore(t)
		first := saveNote(t, store, "Interro 1", "c1")
		saveNote(t, store, "Interro 2", "c1")
		rec := new(recorder)
		s := newSyncer(store, rec.handle)

		res, err := s.PublishNotes(ctx, note.PublishOptions{NoteIDs: []string{first.ID}, KeepLocal: true})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, []string{"Interro 1"}, rec.published)

		n, err := store.GetNote(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, n.IsDirty)
		count, err := store.CountUnpublished(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("handler error", func(t *testing.T) {
		store := openStore(t)
		n := saveNote(t, store, "Interro 1", "c1")
		s := newSyncer(store, (&recorder{err: errors.New("connection refused")}).handle)

		res, err := s.PublishNotes(ctx, note.PublishOptions{})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, []note.SyncError{{NoteID: n.ID, Error: "connection refused"}}, res.Errors)
	})

	t.Run("one sync at a time", func(t *testing.T) {
		store := openStore(t)
		saveNote(t, store, "Interro 1", "c1")

		entered, release := make(chan struct{}), make(chan struct{})
		s := newSyncer(store, func(ctx context.Context, n note.Note) (note.PublishResult, error) {
			close(entered)
			<-release
			return note.PublishResult{Success: true}, nil
		})

		done := make(chan error)
		go func() {
			_, err := s.PublishNotes(ctx, note.PublishOptions{})
			done <- err
		}()
		<-entered
		assert.True(t, s.IsSyncing())
		_, err := s.PublishNotes(ctx, note.PublishOptions{})
		assert.ErrorIs(t, err, note.ErrSyncInProgress)
		_, err = s.ProcessSyncQueue(ctx)
		assert.ErrorIs(t, err, note.ErrSyncInProgress)

		close(release)
		require.NoError(t, <-done)
		assert.False(t, s.IsSyncing())
	})
}

func TestSyncer_ProcessSyncQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("replays changes", func(t *testing.T) {
		store := openStore(t)
		n := saveNote(t, store, "Interro 1", "c1")
		require.NoError(t, store.UpdateStudentGrade(ctx, n.ID, studentA, 14))
		gone := saveNote(t, store, "Brouillon", "c1")
		require.NoError(t, store.DeleteNote(ctx, gone.ID))

		rec := new(recorder)
		s := newSyncer(store, rec.handle)
		res, err := s.ProcessSyncQueue(ctx)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Len(t, res.SyncedNotes, 4)
		assert.Equal(t, []string{"Interro 1", "Interro 1"}, rec.published)

		count, err := s.PendingSyncCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		require.NoError(t, s.CleanupSyncQueue(ctx))
		items, err := store.PendingItems(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("failures are retried then given up", func(t *testing.T) {
		store := openStore(t)
		saveNote(t, store, "Interro 1", "c1")
		s := newSyncer(store, (&recorder{refuse: map[string]string{"Interro 1": "refused"}}).handle)

		for i := 1; i <= note.MaxAttempts; i++ {
			res, err := s.ProcessSyncQueue(ctx)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Len(t, res.FailedNotes, 1)
		}
		count, err := s.PendingSyncCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		res, err := s.ProcessSyncQueue(ctx)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Empty(t, res.SyncedNotes)
	})

	t.Run("transport error", func(t *testing.T) {
		store := openStore(t)
		n := saveNote(t, store, "Interro 1", "c1")
		s := newSyncer(store, (&recorder{err: errors.New("dial tcp: network is unreachable")}).handle)

		res, err := s.ProcessSyncQueue(ctx)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, []string{n.ID}, res.FailedNotes)
		assert.Equal(t, []note.SyncError{{NoteID: n.ID, Error: "dial tcp: network is unreachable"}}, res.Errors)
		items, err := store.PendingItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 1, items[0].Attempts)
		assert.Equal(t, "dial tcp: network is unreachable", items[0].Error)
		assert.False(t, s.IsSyncing())
	})

	t.Run("no handler", func(t *testing.T) {
		store := openStore(t)
		n := saveNote(t, store, "Interro 1", "c1")
		s := newSyncer(store, nil)

		res, err := s.ProcessSyncQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{n.ID}, res.FailedNotes)
		items, err := store.PendingItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 1, items[0].Attempts)
	})
}
