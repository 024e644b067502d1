package database

import (
	"database/sql"
	"fmt"
)

type imageRepository struct {
	db *DB
}

func NewImageRepository(db *DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Get(urlHash string) (*Image, error) {
	var img Image
	err := r.db.QueryRow(`
		SELECT url_hash, source_url, local_name, etag, last_modified,
		       kind, feed_id, cached_at
		FROM images
		WHERE url_hash = ?
	`, urlHash).Scan(
		&img.URLHash, &img.SourceURL, &img.LocalName, &img.ETag,
		&img.LastModified, &img.Kind, &img.FeedID, &img.CachedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image mapping: %w", err)
	}
	return &img, nil
}

func (r *imageRepository) Upsert(img Image) error {
	_, err := r.db.Exec(`
		INSERT INTO images (
			url_hash, source_url, local_name, etag, last_modified,
			kind, feed_id, cached_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url_hash) DO UPDATE SET
			local_name = excluded.local_name,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			kind = excluded.kind,
			feed_id = excluded.feed_id,
			cached_at = excluded.cached_at
	`, img.URLHash, img.SourceURL, img.LocalName, img.ETag,
		img.LastModified, img.Kind, img.FeedID, img.CachedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert image mapping: %w", err)
	}
	return nil
}

func (r *imageRepository) DeleteFeed(feedID string) error {
	_, err := r.db.Exec(`DELETE FROM images WHERE feed_id = ?`, feedID)
	if err != nil {
		return fmt.Errorf("failed to delete image mappings: %w", err)
	}
	return nil
}
