package localdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/note"
)

type Store struct {
	pool *sqlitex.Pool
}

var _ note.Store = (*Store)(nil)

const noteColumns = `id, school_id, class_id, subject_id, term_id, teacher_id, title, type, weight,
	description, grade_date, is_published, is_dirty, is_deleted, last_sync_at, created_at, updated_at`

const detailColumns = `id, note_id, student_id, value, graded_at, is_dirty, is_deleted, last_sync_at, updated_at`

func millis(t time.Time) int64 { return t.UnixMilli() }

func nullMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func columnTime(stmt *sqlite.Stmt, col int) time.Time {
	return time.UnixMilli(stmt.ColumnInt64(col)).UTC()
}

func columnNullTime(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	t := columnTime(stmt, col)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanNote(stmt *sqlite.Stmt) note.Note {
	return note.Note{
		ID:          stmt.ColumnText(0),
		SchoolID:    stmt.ColumnText(1),
		ClassID:     stmt.ColumnText(2),
		SubjectID:   stmt.ColumnText(3),
		TermID:      stmt.ColumnText(4),
		TeacherID:   stmt.ColumnText(5),
		Title:       stmt.ColumnText(6),
		Type:        stmt.ColumnText(7),
		Weight:      stmt.ColumnInt(8),
		Description: stmt.ColumnText(9),
		GradeDate:   stmt.ColumnText(10),
		IsPublished: stmt.ColumnInt64(11) != 0,
		IsDirty:     stmt.ColumnInt64(12) != 0,
		IsDeleted:   stmt.ColumnInt64(13) != 0,
		LastSyncAt:  columnNullTime(stmt, 14),
		CreatedAt:   columnTime(stmt, 15),
		UpdatedAt:   columnTime(stmt, 16),
	}
}

func scanDetail(stmt *sqlite.Stmt) note.Detail {
	return note.Detail{
		ID:         stmt.ColumnText(0),
		NoteID:     stmt.ColumnText(1),
		StudentID:  stmt.ColumnText(2),
		Value:      stmt.ColumnFloat(3),
		GradedAt:   columnNullTime(stmt, 4),
		IsDirty:    stmt.ColumnInt64(5) != 0,
		IsDeleted:  stmt.ColumnInt64(6) != 0,
		LastSyncAt: columnNullTime(stmt, 7),
		UpdatedAt:  columnTime(stmt, 8),
	}
}

func queryNotes(conn *sqlite.Conn, where string, args ...interface{}) ([]note.Note, error) {
	notes := make([]note.Note, 0)
	err := sqlitex.Execute(conn, "SELECT "+noteColumns+" FROM notes WHERE "+where, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			notes = append(notes, scanNote(stmt))
			return nil
		},
	})
	return notes, errors.Wrap(err, "localdb: querying notes")
}

func queryDetails(conn *sqlite.Conn, noteID string) ([]note.Detail, error) {
	details := make([]note.Detail, 0)
	err := sqlitex.Execute(conn,
		"SELECT "+detailColumns+" FROM note_details WHERE note_id = ? AND is_deleted = 0 ORDER BY student_id",
		&sqlitex.ExecOptions{
			Args: []interface{}{noteID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				details = append(details, scanDetail(stmt))
				return nil
			},
		})
	return details, errors.Wrap(err, "localdb: querying note details")
}

func withDetails(conn *sqlite.Conn, notes []note.Note) ([]note.Note, error) {
	for i := range notes {
		details, err := queryDetails(conn, notes[i].ID)
		if err != nil {
			return nil, err
		}
		notes[i].Details = details
	}
	return notes, nil
}

// enqueue records a change to sync. Item IDs are table-recordId-unixmillis.
func enqueue(conn *sqlite.Conn, op, table, recordID string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "localdb: encoding sync data")
	}
	now := core.NowFunc().UTC()
	id := fmt.Sprintf("%s-%s-%d", table, recordID, now.UnixMilli())
	err = sqlitex.Execute(conn,
		`INSERT INTO sync_queue (id, operation, table_name, record_id, data, status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, status = excluded.status`,
		&sqlitex.ExecOptions{Args: []interface{}{id, op, table, recordID, string(payload), note.ItemPending, millis(now)}})
	return errors.Wrap(err, "localdb: queueing change")
}

func insertDetail(conn *sqlite.Conn, d note.Detail) error {
	err := sqlitex.Execute(conn,
		"INSERT INTO note_details ("+detailColumns+") VALUES (?, ?, ?, ?, ?, 1, 0, NULL, ?)",
		&sqlitex.ExecOptions{Args: []interface{}{d.ID, d.NoteID, d.StudentID, d.Value, nullMillis(d.GradedAt), millis(d.UpdatedAt)}})
	return errors.Wrap(err, "localdb: inserting note detail")
}

// findDetail returns the live detail of a student in a note.
func findDetail(conn *sqlite.Conn, noteID, studentID string) (note.Detail, bool, error) {
	var d note.Detail
	var found bool
	err := sqlitex.Execute(conn,
		"SELECT "+detailColumns+" FROM note_details WHERE note_id = ? AND student_id = ? AND is_deleted = 0 LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []interface{}{noteID, studentID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				d, found = scanDetail(stmt), true
				return nil
			},
		})
	return d, found, errors.Wrap(err, "localdb: finding note detail")
}

func newDetailID(noteID, studentID string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", noteID, studentID, now.UnixMilli())
}

func (s *Store) SaveNote(ctx context.Context, n note.Note, details []note.Detail) error {
	now := core.NowFunc().UTC()
	if n.ID == "" {
		n.ID = core.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, NULL, ?, ?)",
			&sqlitex.ExecOptions{Args: []interface{}{
				n.ID, n.SchoolID, n.ClassID, n.SubjectID, n.TermID, n.TeacherID, n.Title, n.Type, n.Weight,
				n.Description, n.GradeDate, boolInt(n.IsPublished), millis(n.CreatedAt), millis(now),
			}})
		if err != nil {
			return errors.Wrap(err, "localdb: inserting note")
		}
		for _, d := range details {
			d.NoteID = n.ID
			d.UpdatedAt = now
			if d.ID == "" {
				d.ID = newDetailID(n.ID, d.StudentID, now)
			}
			if err = insertDetail(conn, d); err != nil {
				return err
			}
		}
		n.Details = nil
		return enqueue(conn, note.OpCreate, note.TableNotes, n.ID, n)
	})
}

func (s *Store) UpdateNote(ctx context.Context, id string, upd note.Update, details []note.Detail) error {
	now := core.NowFunc().UTC()
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		n, err := getNote(conn, id)
		if err != nil {
			return err
		}
		if upd.Title != nil {
			n.Title = *upd.Title
		}
		if upd.Description != nil {
			n.Description = *upd.Description
		}
		if upd.Weight != nil {
			n.Weight = *upd.Weight
		}
		if upd.GradeDate != nil {
			n.GradeDate = *upd.GradeDate
		}
		err = sqlitex.Execute(conn,
			"UPDATE notes SET title = ?, description = ?, weight = ?, grade_date = ?, is_dirty = 1, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{n.Title, n.Description, n.Weight, n.GradeDate, millis(now), id}})
		if err != nil {
			return errors.Wrap(err, "localdb: updating note")
		}

		for _, d := range details {
			existing, found, err := findDetail(conn, id, d.StudentID)
			if err != nil {
				return err
			}
			if found {
				err = sqlitex.Execute(conn,
					"UPDATE note_details SET value = ?, graded_at = ?, is_dirty = 1, updated_at = ? WHERE id = ?",
					&sqlitex.ExecOptions{Args: []interface{}{d.Value, nullMillis(d.GradedAt), millis(now), existing.ID}})
				if err != nil {
					return errors.Wrap(err, "localdb: updating note detail")
				}
				continue
			}
			d.NoteID = id
			d.UpdatedAt = now
			if d.ID == "" {
				d.ID = newDetailID(id, d.StudentID, now)
			}
			if err = insertDetail(conn, d); err != nil {
				return err
			}
		}
		return enqueue(conn, note.OpUpdate, note.TableNotes, id, upd)
	})
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	now := millis(core.NowFunc().UTC())
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		if _, err := getNote(conn, id); err != nil {
			return err
		}
		err := sqlitex.Execute(conn, "UPDATE notes SET is_deleted = 1, is_dirty = 1, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{now, id}})
		if err != nil {
			return errors.Wrap(err, "localdb: deleting note")
		}
		err = sqlitex.Execute(conn, "UPDATE note_details SET is_deleted = 1, is_dirty = 1, updated_at = ? WHERE note_id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{now, id}})
		if err != nil {
			return errors.Wrap(err, "localdb: deleting note details")
		}
		return enqueue(conn, note.OpDelete, note.TableNotes, id, map[string]string{"id": id})
	})
}

func (s *Store) UpdateStudentGrade(ctx context.Context, noteID, studentID string, value float64) error {
	now := core.NowFunc().UTC()
	data := note.DetailData{NoteID: noteID, StudentID: studentID, Value: value}
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		if _, err := getNote(conn, noteID); err != nil {
			return err
		}
		// a changed grade makes the note unpublished again
		err := sqlitex.Execute(conn, "UPDATE notes SET is_dirty = 1, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{millis(now), noteID}})
		if err != nil {
			return errors.Wrap(err, "localdb: updating note")
		}
		existing, found, err := findDetail(conn, noteID, studentID)
		if err != nil {
			return err
		}
		if found {
			err = sqlitex.Execute(conn,
				"UPDATE note_details SET value = ?, graded_at = ?, is_dirty = 1, updated_at = ? WHERE id = ?",
				&sqlitex.ExecOptions{Args: []interface{}{value, millis(now), millis(now), existing.ID}})
			if err != nil {
				return errors.Wrap(err, "localdb: updating grade")
			}
			return enqueue(conn, note.OpUpdate, note.TableDetails, existing.ID, data)
		}

		d := note.Detail{
			ID:        newDetailID(noteID, studentID, now),
			NoteID:    noteID,
			StudentID: studentID,
			Value:     value,
			GradedAt:  &now,
			UpdatedAt: now,
		}
		if err = insertDetail(conn, d); err != nil {
			return err
		}
		return enqueue(conn, note.OpCreate, note.TableDetails, d.ID, data)
	})
}

func (s *Store) PublishNote(ctx context.Context, id string) error {
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		if _, err := getNote(conn, id); err != nil {
			return err
		}
		err := sqlitex.Execute(conn, "UPDATE notes SET is_published = 1, is_dirty = 1, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{millis(core.NowFunc().UTC()), id}})
		if err != nil {
			return errors.Wrap(err, "localdb: publishing note")
		}
		return enqueue(conn, note.OpUpdate, note.TableNotes, id, map[string]bool{"is_published": true})
	})
}

func getNote(conn *sqlite.Conn, id string) (note.Note, error) {
	notes, err := queryNotes(conn, "id = ? AND is_deleted = 0 LIMIT 1", id)
	if err != nil {
		return note.Note{}, err
	}
	if len(notes) == 0 {
		return note.Note{}, note.ErrNotFound
	}
	n := notes[0]
	if n.Details, err = queryDetails(conn, id); err != nil {
		return note.Note{}, err
	}
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, id string) (n note.Note, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		n, err = getNote(conn, id)
		return err
	})
	return n, err
}

func (s *Store) findNote(ctx context.Context, key note.Key, unpublished bool) (n note.Note, err error) {
	where := "class_id = ? AND subject_id = ? AND term_id = ? AND type = ? AND teacher_id = ? AND is_deleted = 0"
	if unpublished {
		where += " AND is_dirty = 1"
	}
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		notes, err := queryNotes(conn, where+" ORDER BY created_at DESC LIMIT 1",
			key.ClassID, key.SubjectID, key.TermID, key.Type, key.TeacherID)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			return note.ErrNotFound
		}
		n = notes[0]
		n.Details, err = queryDetails(conn, n.ID)
		return err
	})
	return n, err
}

func (s *Store) FindNote(ctx context.Context, key note.Key) (note.Note, error) {
	return s.findNote(ctx, key, false)
}

func (s *Store) FindUnpublishedNote(ctx context.Context, key note.Key) (note.Note, error) {
	return s.findNote(ctx, key, true)
}

func (s *Store) NotesByClass(ctx context.Context, classID string, publishedOnly bool) (notes []note.Note, err error) {
	where := "class_id = ? AND is_deleted = 0"
	if publishedOnly {
		where += " AND is_published = 1"
	}
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		notes, err = queryNotes(conn, where+" ORDER BY created_at DESC", classID)
		return err
	})
	return notes, err
}

func (s *Store) NotesByTeacher(ctx context.Context, teacherID, classID string, publishedOnly bool) (notes []note.Note, err error) {
	where := "teacher_id = ? AND is_deleted = 0"
	args := []interface{}{teacherID}
	if classID != "" {
		where += " AND class_id = ?"
		args = append(args, classID)
	}
	if publishedOnly {
		where += " AND is_published = 1"
	}
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		notes, err = queryNotes(conn, where+" ORDER BY created_at DESC", args...)
		return err
	})
	return notes, err
}

func (s *Store) UnpublishedNotes(ctx context.Context) (notes []note.Note, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		if notes, err = queryNotes(conn, "is_dirty = 1 AND is_deleted = 0 ORDER BY created_at DESC"); err != nil {
			return err
		}
		notes, err = withDetails(conn, notes)
		return err
	})
	return notes, err
}

func (s *Store) CountUnpublished(ctx context.Context) (count int, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM notes WHERE is_dirty = 1 AND is_deleted = 0", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	return count, errors.Wrap(err, "localdb: counting unpublished notes")
}

// draftWhere matches the live notes of scope never published.
func draftWhere(scope note.Scope) (string, []interface{}) {
	where := "is_published = 0 AND is_deleted = 0"
	var args []interface{}
	for _, f := range []struct{ col, val string }{
		{"school_id", scope.SchoolID},
		{"class_id", scope.ClassID},
		{"teacher_id", scope.TeacherID},
	} {
		if f.val != "" {
			where += " AND " + f.col + " = ?"
			args = append(args, f.val)
		}
	}
	return where, args
}

func (s *Store) DraftNotes(ctx context.Context, scope note.Scope) (notes []note.Note, err error) {
	where, args := draftWhere(scope)
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		if notes, err = queryNotes(conn, where+" ORDER BY created_at DESC", args...); err != nil {
			return err
		}
		notes, err = withDetails(conn, notes)
		return err
	})
	return notes, err
}

func (s *Store) CountDrafts(ctx context.Context, scope note.Scope) (count int, err error) {
	where, args := draftWhere(scope)
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM notes WHERE "+where, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	return count, errors.Wrap(err, "localdb: counting draft notes")
}

func (s *Store) GradesByNote(ctx context.Context, noteID string) (details []note.Detail, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		details, err = queryDetails(conn, noteID)
		return err
	})
	return details, err
}

func (s *Store) PendingItems(ctx context.Context) ([]note.SyncItem, error) {
	items := make([]note.SyncItem, 0)
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT id, operation, table_name, record_id, data, status, attempts, error, last_attempt, created_at
			FROM sync_queue WHERE status = ? ORDER BY created_at, id`,
			&sqlitex.ExecOptions{
				Args: []interface{}{note.ItemPending},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					items = append(items, note.SyncItem{
						ID:          stmt.ColumnText(0),
						Operation:   stmt.ColumnText(1),
						TableName:   stmt.ColumnText(2),
						RecordID:    stmt.ColumnText(3),
						Data:        stmt.ColumnText(4),
						Status:      stmt.ColumnText(5),
						Attempts:    stmt.ColumnInt(6),
						Error:       stmt.ColumnText(7),
						LastAttempt: columnNullTime(stmt, 8),
						CreatedAt:   columnTime(stmt, 9),
					})
					return nil
				},
			})
	})
	return items, errors.Wrap(err, "localdb: querying sync queue")
}

func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "UPDATE sync_queue SET status = ?, last_attempt = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{note.ItemCompleted, millis(core.NowFunc().UTC()), id}})
		return errors.Wrap(err, "localdb: completing sync item")
	})
}

func (s *Store) MarkFailed(ctx context.Context, id, msg string) error {
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		attempts := -1
		err := sqlitex.Execute(conn, "SELECT attempts FROM sync_queue WHERE id = ?", &sqlitex.ExecOptions{
			Args: []interface{}{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				attempts = stmt.ColumnInt(0)
				return nil
			},
		})
		if err != nil {
			return errors.Wrap(err, "localdb: reading sync item")
		}
		if attempts < 0 {
			return nil
		}
		status := note.ItemPending
		if attempts+1 >= note.MaxAttempts {
			status = note.ItemFailed
		}
		err = sqlitex.Execute(conn, "UPDATE sync_queue SET status = ?, error = ?, attempts = ?, last_attempt = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{status, msg, attempts + 1, millis(core.NowFunc().UTC()), id}})
		return errors.Wrap(err, "localdb: failing sync item")
	})
}

func (s *Store) UpdateSyncTimestamp(ctx context.Context, noteID string) error {
	now := millis(core.NowFunc().UTC())
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "UPDATE notes SET is_dirty = 0, last_sync_at = ?, updated_at = ? WHERE id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{now, now, noteID}})
		if err != nil {
			return errors.Wrap(err, "localdb: updating note sync time")
		}
		err = sqlitex.Execute(conn, "UPDATE note_details SET is_dirty = 0, last_sync_at = ?, updated_at = ? WHERE note_id = ?",
			&sqlitex.ExecOptions{Args: []interface{}{now, now, noteID}})
		return errors.Wrap(err, "localdb: updating details sync time")
	})
}

func clearCompleted(conn *sqlite.Conn) error {
	err := sqlitex.Execute(conn, "DELETE FROM sync_queue WHERE status = ?",
		&sqlitex.ExecOptions{Args: []interface{}{note.ItemCompleted}})
	return errors.Wrap(err, "localdb: clearing sync queue")
}

func (s *Store) ClearCompleted(ctx context.Context) error {
	return s.withConn(ctx, clearCompleted)
}

func (s *Store) PendingCount(ctx context.Context) (count int, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM sync_queue WHERE status = ?", &sqlitex.ExecOptions{
			Args: []interface{}{note.ItemPending},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	return count, errors.Wrap(err, "localdb: counting sync items")
}

func (s *Store) ClearAfterPublish(ctx context.Context, noteIDs []string) error {
	return s.inTx(ctx, func(conn *sqlite.Conn) error {
		for _, id := range noteIDs {
			if err := sqlitex.Execute(conn, "DELETE FROM note_details WHERE note_id = ?",
				&sqlitex.ExecOptions{Args: []interface{}{id}}); err != nil {
				return errors.Wrap(err, "localdb: clearing note details")
			}
			if err := sqlitex.Execute(conn, "DELETE FROM notes WHERE id = ?",
				&sqlitex.ExecOptions{Args: []interface{}{id}}); err != nil {
				return errors.Wrap(err, "localdb: clearing note")
			}
		}
		return clearCompleted(conn)
	})
}

func (s *Store) PutSnapshot(ctx context.Context, key string, payload []byte) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`INSERT INTO cache_snapshots (key, payload, created_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
			&sqlitex.ExecOptions{Args: []interface{}{key, payload, millis(core.NowFunc().UTC())}})
		return errors.Wrap(err, "localdb: saving snapshot")
	})
}

func (s *Store) GetSnapshot(ctx context.Context, key string) (payload []byte, found bool, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT payload FROM cache_snapshots WHERE key = ?", &sqlitex.ExecOptions{
			Args: []interface{}{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, payload)
				found = true
				return nil
			},
		})
	})
	return payload, found, errors.Wrap(err, "localdb: reading snapshot")
}

func (s *Store) DeleteSnapshot(ctx context.Context, key string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM cache_snapshots WHERE key = ?",
			&sqlitex.ExecOptions{Args: []interface{}{key}})
		return errors.Wrap(err, "localdb: deleting snapshot")
	})
}

func (s *Store) SnapshotKeys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT key FROM cache_snapshots ORDER BY key", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if k := stmt.ColumnText(0); strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
				return nil
			},
		})
	})
	return keys, errors.Wrap(err, "localdb: listing snapshots")
}
