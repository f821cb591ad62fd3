package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
)

// maxBatchVars keeps IN lists under SQLite's host parameter limit.
const maxBatchVars = 500

// featureRow is the catalog's column-per-feature shape. It is converted to
// domain.FeatureRow immediately after scanning.
type featureRow struct {
	TrackID          int64           `db:"track_id"`
	Energy           sql.NullFloat64 `db:"energy"`
	Valence          sql.NullFloat64 `db:"valence"`
	Tempo            sql.NullFloat64 `db:"tempo"`
	Danceability     sql.NullFloat64 `db:"danceability"`
	Acousticness     sql.NullFloat64 `db:"acousticness"`
	Instrumentalness sql.NullFloat64 `db:"instrumentalness"`
	Loudness         sql.NullFloat64 `db:"loudness"`
	Speechiness      sql.NullFloat64 `db:"speechiness"`
}

func (r featureRow) toDomain() domain.FeatureRow {
	out := domain.FeatureRow{TrackID: r.TrackID}
	out.Values[domain.Energy] = r.Energy
	out.Values[domain.Valence] = r.Valence
	out.Values[domain.Danceability] = r.Danceability
	out.Values[domain.Tempo] = r.Tempo
	out.Values[domain.Acousticness] = r.Acousticness
	out.Values[domain.Instrumentalness] = r.Instrumentalness
	out.Values[domain.Loudness] = r.Loudness
	out.Values[domain.Speechiness] = r.Speechiness
	return out
}

func featureSelect() string {
	return "SELECT " + strings.Join(RequiredFeatureColumns(), ", ") + " FROM " + constants.FeaturesTable
}

// FetchOne returns the feature row for a track. Absent rows and access
// failures both report false.
func (db *DB) FetchOne(ctx context.Context, trackID int64) (domain.FeatureRow, bool) {
	var row featureRow
	err := db.GetContext(ctx, &row, featureSelect()+" WHERE track_id = ?", trackID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			db.Logger.Warn("Failed to fetch track features", "track_id", trackID, "error", err)
		}
		return domain.FeatureRow{}, false
	}
	return row.toDomain(), true
}

// FetchMany returns feature rows for the tracks that have one. Missing ids are
// left out. Duplicate ids are fine; an empty input does no I/O.
func (db *DB) FetchMany(ctx context.Context, trackIDs []int64) map[int64]domain.FeatureRow {
	result := make(map[int64]domain.FeatureRow)
	if len(trackIDs) == 0 {
		return result
	}

	seen := make(map[int64]bool, len(trackIDs))
	unique := make([]int64, 0, len(trackIDs))
	for _, id := range trackIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	for start := 0; start < len(unique); start += maxBatchVars {
		end := min(start+maxBatchVars, len(unique))

		query, args, err := sqlx.In(featureSelect()+" WHERE track_id IN (?)", unique[start:end])
		if err != nil {
			db.Logger.Warn("Failed to build batch feature query", "error", err)
			return result
		}

		var rows []featureRow
		if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
			db.Logger.Warn("Failed to fetch batch features", "count", end-start, "error", err)
			continue
		}
		for _, r := range rows {
			result[r.TrackID] = r.toDomain()
		}
	}

	return result
}

// FeatureBounds computes min and max for every feature across all rows.
// Features without any value have invalid bounds; an empty table yields
// all-invalid stats.
func (db *DB) FeatureBounds(ctx context.Context) (domain.FeatureStats, error) {
	var stats domain.FeatureStats

	parts := make([]string, 0, domain.NumFeatures*2)
	for _, f := range domain.Features() {
		parts = append(parts, fmt.Sprintf("MIN(%[1]s), MAX(%[1]s)", f.String()))
	}
	query := "SELECT " + strings.Join(parts, ", ") + " FROM " + constants.FeaturesTable

	values := make([]sql.NullFloat64, domain.NumFeatures*2)
	dest := make([]interface{}, len(values))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := db.QueryRowxContext(ctx, query).Scan(dest...); err != nil {
		return stats, fmt.Errorf("failed to compute feature bounds: %w", err)
	}

	for i := range stats {
		mn, mx := values[2*i], values[2*i+1]
		if mn.Valid && mx.Valid {
			stats[i] = domain.Bounds{Min: mn.Float64, Max: mx.Float64, Valid: true}
		}
	}
	return stats, nil
}

// SaveFeatures inserts or replaces a track's feature row.
func (db *DB) SaveFeatures(ctx context.Context, row domain.FeatureRow) error {
	cols := RequiredFeatureColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := "INSERT OR REPLACE INTO " + constants.FeaturesTable + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"

	args := make([]interface{}, 0, len(cols))
	args = append(args, row.TrackID)
	for _, v := range row.Values {
		args = append(args, v)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save features for track %d: %w", row.TrackID, err)
	}
	return nil
}
