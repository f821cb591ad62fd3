package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
)

const trackColumns = "id, title, artist, album, genre"

// GetTrack fetches a track by id.
func (db *DB) GetTrack(ctx context.Context, id int64) (*domain.Track, error) {
	var track domain.Track
	err := db.GetContext(ctx, &track, "SELECT "+trackColumns+" FROM "+constants.TracksTable+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track %d: %w", id, err)
	}
	return &track, nil
}

// FindExactTrack matches title and artist case-insensitively after trimming.
// Among several equal matches the lowest id wins.
func (db *DB) FindExactTrack(ctx context.Context, title, artist string) (*domain.Track, error) {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, ErrNotFound
	}

	query := "SELECT " + trackColumns + " FROM " + constants.TracksTable + `
		WHERE LOWER(title) = LOWER(?) AND LOWER(artist) = LOWER(?)
		ORDER BY id ASC LIMIT 1`

	var track domain.Track
	err := db.GetContext(ctx, &track, query, title, artist)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed exact track lookup: %w", err)
	}
	return &track, nil
}

// FindFuzzyTrack matches when the catalog title contains the given title and
// the catalog artist contains the given artist. Containment is one way only,
// so a short catalog value never absorbs a longer unrelated name. The closest
// title length wins, then the lowest id.
func (db *DB) FindFuzzyTrack(ctx context.Context, title, artist string) (*domain.Track, error) {
	title, artist = strings.ToLower(strings.TrimSpace(title)), strings.ToLower(strings.TrimSpace(artist))
	if title == "" || artist == "" {
		return nil, ErrNotFound
	}

	query := "SELECT " + trackColumns + " FROM " + constants.TracksTable + `
		WHERE instr(LOWER(title), ?) > 0
		  AND instr(LOWER(artist), ?) > 0
		ORDER BY abs(length(title) - ?) ASC, id ASC
		LIMIT 1`

	var track domain.Track
	err := db.GetContext(ctx, &track, query, title, artist, len([]rune(title)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fuzzy track lookup: %w", err)
	}
	return &track, nil
}

// CreateTrack inserts a track and sets its id.
func (db *DB) CreateTrack(ctx context.Context, track *domain.Track) error {
	query := "INSERT INTO " + constants.TracksTable + " (title, artist, album, genre) VALUES (?, ?, ?, ?) RETURNING id"

	if err := db.QueryRowxContext(ctx, query, track.Title, track.Artist, track.Album, track.Genre).Scan(&track.ID); err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

// DeleteTrack removes a track. Its feature row goes with it.
func (db *DB) DeleteTrack(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+constants.TracksTable+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete track %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTracks returns the number of catalog tracks.
func (db *DB) CountTracks(ctx context.Context) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+constants.TracksTable)
	return n, err
}
