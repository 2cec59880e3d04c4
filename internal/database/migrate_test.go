package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestFreshDatabaseAtLatestVersion(t *testing.T) {
	db := openTestDB(t)

	version, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.InsertArticle(testArticle("Gazette"))
	db.Close()

	// Reopening runs migrate again; data must survive.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("unexpected error on reopen: %v", err)
	}
	defer db.Close()

	articles, err := db.AllArticles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 {
		t.Errorf("expected 1 article after reopen, got %d", len(articles))
	}
}

func TestLegacyDatabaseStamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// Simulate a pre-migration database: articles table exists, version 0.
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := conn.Exec("CREATE TABLE articles (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()

	version, _ := schemaVersion(db.conn)
	if version < 1 {
		t.Errorf("expected legacy database stamped to at least version 1, got %d", version)
	}
}
