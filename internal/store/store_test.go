package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/vconscribe/internal/logging"
	"github.com/soyeahso/vconscribe/internal/vcon"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	log := logging.New(nil, "silent")
	st, err := New(t.TempDir(), log)
	require.NoError(t, err)
	return st
}

func testRecord(t *testing.T) *vcon.Record {
	t.Helper()
	rec := vcon.New("uuid-1", "Recording of Test Room", time.Now())
	rec.Parties = append(rec.Parties, vcon.Party{
		Tel:    "alice",
		Name:   "alice",
		Mailto: "alice@example.org",
		Meta:   vcon.PartyMeta{Role: "agent", Extension: "1"},
	})
	rec.Dialog = append(rec.Dialog, vcon.Dialog{
		Body:       "hi",
		Meta:       vcon.DialogMeta{MatrixEvent: []byte(`{"event_id":"e1"}`)},
		Type:       "text",
		Start:      "2026-08-30T12:00:00Z",
		Parties:    []int{0},
		Originator: []int{0},
		Encoding:   "text/plain",
	})
	return rec
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	st := testStore(t)
	path := st.PathFor("Test Room", "!r1:example.org")
	rec := testRecord(t)

	require.NoError(t, st.Save(path, rec))

	loaded, err := st.Load(path)
	require.NoError(t, err)
	assert.Equal(t, rec.UUID, loaded.UUID)
	assert.Equal(t, rec.Subject, loaded.Subject)
	assert.Equal(t, rec.CreatedAt, loaded.CreatedAt)
	assert.Equal(t, rec.Parties, loaded.Parties)

	// Indented persistence reformats the retained raw event, so the
	// dialog compares field by field.
	require.Len(t, loaded.Dialog, 1)
	assert.Equal(t, rec.Dialog[0].Body, loaded.Dialog[0].Body)
	assert.Equal(t, rec.Dialog[0].Parties, loaded.Dialog[0].Parties)
	assert.JSONEq(t, string(rec.Dialog[0].Meta.MatrixEvent), string(loaded.Dialog[0].Meta.MatrixEvent))
}

func TestLoad_NotFound(t *testing.T) {
	st := testStore(t)

	_, err := st.Load(filepath.Join(st.Dir(), "missing.vcon"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	st := testStore(t)
	path := filepath.Join(st.Dir(), "broken.vcon")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := st.Load(path)

	var corrupt *CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)
}

func TestQuarantine_PreservesBytes(t *testing.T) {
	st := testStore(t)
	path := filepath.Join(st.Dir(), "broken.vcon")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	require.NoError(t, st.Quarantine(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestList_OnlyRecordFiles(t *testing.T) {
	st := testStore(t)

	require.NoError(t, st.Save(st.PathFor("Room A", "!a:x"), testRecord(t)))
	require.NoError(t, st.Save(st.PathFor("Room B", "!b:x"), testRecord(t)))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "stray.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "bad.vcon.corrupt"), []byte("x"), 0o600))

	paths, err := st.List()
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestDelete(t *testing.T) {
	st := testStore(t)
	path := st.PathFor("Test Room", "!r1:example.org")
	require.NoError(t, st.Save(path, testRecord(t)))

	require.NoError(t, st.Delete(path))

	_, err := st.Load(path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPathFor_Deterministic(t *testing.T) {
	st := testStore(t)

	a := st.PathFor("Test Room", "!r1:example.org")
	b := st.PathFor("Test Room", "!r1:example.org")
	assert.Equal(t, a, b)
	assert.Equal(t, "Test Room:!r1:example.org.vcon", filepath.Base(a))
}

func TestPathFor_SanitizesSeparators(t *testing.T) {
	st := testStore(t)

	path := st.PathFor("evil/../room", "!r1:x")
	assert.Equal(t, st.Dir(), filepath.Dir(path))
}

func TestSave_FailedEncodeLeavesExistingFile(t *testing.T) {
	st := testStore(t)
	path := st.PathFor("Test Room", "!r1:example.org")
	require.NoError(t, st.Save(path, testRecord(t)))

	// Overwrite with a modified record and confirm a full rewrite happens
	// rather than a partial append.
	rec := testRecord(t)
	rec.Subject = "updated"
	require.NoError(t, st.Save(path, rec))

	loaded, err := st.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "updated", loaded.Subject)
	assert.Len(t, loaded.Dialog, 1)
}

func TestWithLock_Serializes(t *testing.T) {
	st := testStore(t)
	path := st.PathFor("Test Room", "!r1:example.org")

	var order []int
	done := make(chan struct{})
	started := make(chan struct{})

	go func() {
		st.WithLock(path, func() error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			order = append(order, 1)
			return nil
		})
		close(done)
	}()

	<-started
	st.WithLock(path, func() error {
		order = append(order, 2)
		return nil
	})
	<-done

	assert.Equal(t, []int{1, 2}, order)
}
