package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

// newFeedID returns an opaque unique token for a new registry entry.
func newFeedID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate feed id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Add persists a new feed record, initially invalid; the caller flips it
// valid after the initial refresh succeeds.
func (r *feedRepository) Add(name, url string) (*Feed, error) {
	id, err := newFeedID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(`
		INSERT INTO feeds (id, name, url, valid, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, id, name, url, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feed: %w", err)
	}

	return r.Get(id)
}

func (r *feedRepository) Rename(id, name string) error {
	result, err := r.db.Exec(`
		UPDATE feeds SET name = ?, updated_at = ? WHERE id = ?
	`, name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rename feed: %w", err)
	}
	return requireRow(result)
}

func (r *feedRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return requireRow(result)
}

func (r *feedRepository) Get(id string) (*Feed, error) {
	row := r.db.QueryRow(`
		SELECT id, name, url, valid, etag, last_modified, episode_count,
		       last_error, last_checked_at, created_at, updated_at
		FROM feeds
		WHERE id = ?
	`, id)
	return scanFeed(row)
}

func (r *feedRepository) List() ([]Feed, error) {
	return r.list(`
		SELECT id, name, url, valid, etag, last_modified, episode_count,
		       last_error, last_checked_at, created_at, updated_at
		FROM feeds
		ORDER BY created_at
	`)
}

// ListValid returns the feeds the background sweep should refresh:
// valid feeds plus registered ones never checked yet (seed-file
// entries). Feeds that failed a check stay skipped until an
// operator-initiated refresh restores them.
func (r *feedRepository) ListValid() ([]Feed, error) {
	return r.list(`
		SELECT id, name, url, valid, etag, last_modified, episode_count,
		       last_error, last_checked_at, created_at, updated_at
		FROM feeds
		WHERE valid = 1 OR last_checked_at IS NULL
		ORDER BY created_at
	`)
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// UpdateFetchSuccess records new conditional tokens after a successful
// parse and marks the feed valid.
func (r *feedRepository) UpdateFetchSuccess(id, etag, lastModified string, episodeCount int) error {
	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE feeds
		SET valid = 1, etag = ?, last_modified = ?, episode_count = ?,
		    last_error = '', last_checked_at = ?, updated_at = ?
		WHERE id = ?
	`, etag, lastModified, episodeCount, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update feed after fetch: %w", err)
	}
	return requireRow(result)
}

// UpdateFetchUnchanged handles the 304 path: the feed stays valid and
// only last_checked_at moves.
func (r *feedRepository) UpdateFetchUnchanged(id string) error {
	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE feeds
		SET valid = 1, last_error = '', last_checked_at = ?, updated_at = ?
		WHERE id = ?
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update feed after 304: %w", err)
	}
	return requireRow(result)
}

// UpdateFetchFailure marks the feed invalid with the failure reason.
// Cached and durable episode data is deliberately left alone.
func (r *feedRepository) UpdateFetchFailure(id, reason string) error {
	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE feeds
		SET valid = 0, last_error = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ?
	`, reason, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update feed after failure: %w", err)
	}
	return requireRow(result)
}

func (r *feedRepository) list(query string) ([]Feed, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeedRow(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	return feeds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row *sql.Row) (*Feed, error) {
	feed, err := scanFeedRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return feed, err
}

func scanFeedRow(row rowScanner) (*Feed, error) {
	var feed Feed
	var lastChecked sql.NullTime
	err := row.Scan(
		&feed.ID, &feed.Name, &feed.URL, &feed.Valid, &feed.ETag,
		&feed.LastModified, &feed.EpisodeCount, &feed.LastError,
		&lastChecked, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed row: %w", err)
	}
	if lastChecked.Valid {
		feed.LastCheckedAt = &lastChecked.Time
	}
	return &feed, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
