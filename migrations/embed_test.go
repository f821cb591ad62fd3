package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsMigrationFiles(t *testing.T) {
	tests := []struct {
		dir  string
		file string
	}{
		{CatalogDir, "001_catalog.sql"},
		{HistoryDir, "001_expansion_jobs.sql"},
	}

	for _, tt := range tests {
		entries, err := FS.ReadDir(tt.dir)
		if err != nil {
			t.Fatalf("failed to read %s: %v", tt.dir, err)
		}
		found := false
		for _, entry := range entries {
			if entry.Name() == tt.file {
				found = true
			}
		}
		if !found {
			t.Errorf("%s not found in %s", tt.file, tt.dir)
		}
	}
}

func TestEmbeddedFS_HasGooseDirectives(t *testing.T) {
	for _, name := range []string{"001_catalog.sql", "history/001_expansion_jobs.sql"} {
		content, err := FS.ReadFile(name)
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		text := string(content)
		if !strings.Contains(text, "-- +goose Up") {
			t.Errorf("%s missing goose Up directive", name)
		}
		if !strings.Contains(text, "-- +goose Down") {
			t.Errorf("%s missing goose Down directive", name)
		}
	}
}

func TestEmbeddedFS_CatalogExcludesHistory(t *testing.T) {
	content, err := FS.ReadFile("001_catalog.sql")
	if err != nil {
		t.Fatalf("failed to read catalog migration: %v", err)
	}
	if strings.Contains(string(content), "expansion_jobs") {
		t.Error("catalog migration must not create the job history table")
	}
}
