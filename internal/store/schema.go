package store

import (
	"context"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
)

// RequiredFeatureColumns lists the columns the feature table must expose.
func RequiredFeatureColumns() []string {
	cols := []string{"track_id"}
	for _, f := range domain.Features() {
		cols = append(cols, f.String())
	}
	return cols
}

// ValidateSchema reports whether the feature table has every required
// column. An unreachable catalog or missing table reports all columns missing.
func (db *DB) ValidateSchema(ctx context.Context) (bool, []string) {
	required := RequiredFeatureColumns()

	type columnInfo struct {
		CID     int     `db:"cid"`
		Name    string  `db:"name"`
		Type    string  `db:"type"`
		NotNull int     `db:"notnull"`
		Default *string `db:"dflt_value"`
		PK      int     `db:"pk"`
	}

	var cols []columnInfo
	if err := db.SelectContext(ctx, &cols, "PRAGMA table_info("+constants.FeaturesTable+")"); err != nil {
		db.Logger.Warn("Failed to inspect feature table", "error", err)
		return false, required
	}

	existing := make(map[string]bool, len(cols))
	for _, c := range cols {
		existing[c.Name] = true
	}

	var missing []string
	for _, c := range required {
		if !existing[c] {
			missing = append(missing, c)
		}
	}
	return len(missing) == 0, missing
}

// Coverage returns how many tracks have a feature row and how many tracks exist.
func (db *DB) Coverage(ctx context.Context) (withFeatures, total int, err error) {
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+constants.TracksTable); err != nil {
		return 0, 0, err
	}
	if err := db.GetContext(ctx, &withFeatures, "SELECT COUNT(*) FROM "+constants.FeaturesTable); err != nil {
		return 0, total, err
	}
	return withFeatures, total, nil
}
