package store

import (
	"context"

	"github.com/icewall905/tuneforge/internal/constants"
)

type indexDef struct {
	name string
	ddl  string
}

func indexDefs() []indexDef {
	return []indexDef{
		{constants.IndexTracksTitleArtist, "CREATE INDEX IF NOT EXISTS " + constants.IndexTracksTitleArtist +
			" ON " + constants.TracksTable + "(title COLLATE NOCASE, artist COLLATE NOCASE)"},
		{constants.IndexFeaturesTrackID, "CREATE INDEX IF NOT EXISTS " + constants.IndexFeaturesTrackID +
			" ON " + constants.FeaturesTable + "(track_id)"},
		{constants.IndexTracksIDTitleArtist, "CREATE INDEX IF NOT EXISTS " + constants.IndexTracksIDTitleArtist +
			" ON " + constants.TracksTable + "(id, title, artist)"},
	}
}

// ListIndexes returns the names of the lookup indexes present in the catalog.
func (db *DB) ListIndexes(ctx context.Context) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'sonic\_%' ESCAPE '\' ORDER BY name`)
	return names, err
}

// EnsureIndexes creates the lookup indexes that do not exist yet and returns
// the names it created. A failed index is logged and skipped so the others
// still get a chance. Calling it again is a no-op.
func (db *DB) EnsureIndexes(ctx context.Context) ([]string, error) {
	existing, err := db.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	var created []string
	for _, def := range indexDefs() {
		if have[def.name] {
			continue
		}
		if _, err := db.ExecContext(ctx, def.ddl); err != nil {
			db.Logger.Warn("Failed to create index", "index", def.name, "error", err)
			continue
		}
		db.Logger.Info("Created index", "index", def.name)
		created = append(created, def.name)
	}
	return created, nil
}
