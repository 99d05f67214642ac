package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/store"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecords(session string) []*store.Record {
	return []*store.Record{
		{
			URL:         "https://cdn.example.com/master.m3u8",
			MediaType:   store.MediaHLSPlaylist,
			Session:     session,
			Method:      "GET",
			FirstSeenAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			Validation: store.Validation{
				Status:     store.StatusOK,
				Structure:  store.StructureMaster,
				Resolution: "1920x1080",
				Bandwidth:  3000000,
			},
		},
		{
			URL:       "https://cdn.example.com/movie.mp4",
			MediaType: store.MediaMP4,
			Session:   session,
			Method:    "GET",
		},
	}
}

func TestDB_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.db")

	db := openTestDB(t, path)
	if err := db.SaveSession("tab-1", sampleRecords("tab-1")); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := db.SaveSession("tab-2", sampleRecords("tab-2")[:1]); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	db.Close()

	reopened := openTestDB(t, path)
	sessions, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	recs := sessions["tab-1"]
	if len(recs) != 2 {
		t.Fatalf("tab-1 records = %d, want 2", len(recs))
	}
	if recs[0].URL != "https://cdn.example.com/master.m3u8" {
		t.Errorf("url = %s", recs[0].URL)
	}
	if recs[0].Validation.Status != store.StatusOK || recs[0].Validation.Resolution != "1920x1080" {
		t.Errorf("validation not round-tripped: %+v", recs[0].Validation)
	}
}

func TestDB_SaveOverwritesWholesale(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "streams.db"))

	if err := db.SaveSession("tab-1", sampleRecords("tab-1")); err != nil {
		t.Fatal(err)
	}
	// Second save with fewer records must replace, not merge.
	if err := db.SaveSession("tab-1", sampleRecords("tab-1")[:1]); err != nil {
		t.Fatal(err)
	}

	sessions, err := db.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions["tab-1"]) != 1 {
		t.Errorf("records = %d, want 1 after overwrite", len(sessions["tab-1"]))
	}
}

func TestDB_DeleteSession(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "streams.db"))

	db.SaveSession("tab-1", sampleRecords("tab-1"))
	db.SaveSession("tab-2", sampleRecords("tab-2"))
	if err := db.DeleteSession("tab-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	sessions, _ := db.Load()
	if _, ok := sessions["tab-1"]; ok {
		t.Error("tab-1 still present after delete")
	}
	if _, ok := sessions["tab-2"]; !ok {
		t.Error("tab-2 lost by deleting tab-1")
	}
}

func TestDB_DottedSessionID(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "streams.db"))

	id := "page.7F2A.worker"
	if err := db.SaveSession(id, sampleRecords(id)); err != nil {
		t.Fatal(err)
	}

	sessions, _ := db.Load()
	if len(sessions[id]) != 2 {
		t.Fatalf("dotted session id not round-tripped: %v", sessions)
	}
	if err := db.DeleteSession(id); err != nil {
		t.Fatal(err)
	}
	sessions, _ = db.Load()
	if len(sessions) != 0 {
		t.Error("dotted session id not deleted")
	}
}

func TestDB_EmptyStart(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "streams.db"))
	sessions, err := db.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("fresh database should be empty, got %v", sessions)
	}
}
