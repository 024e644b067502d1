package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/thewpminute/podloom/app/feed"
)

type episodeRepository struct {
	db *DB
}

func NewEpisodeRepository(db *DB) EpisodeRepository {
	return &episodeRepository{db: db}
}

// Upsert writes the episode list of one refresh, keyed by
// (feed_id, episode_id). The whole batch goes through a single
// transaction so a refresh never leaves partial rows behind.
func (r *episodeRepository) Upsert(feedID string, episodes []feed.Episode) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO episodes (
			feed_id, episode_id, title, description, content, link,
			published_at, author, audio_url, audio_type, duration,
			image_url, extensions, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, episode_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			content = excluded.content,
			link = excluded.link,
			published_at = excluded.published_at,
			author = excluded.author,
			audio_url = excluded.audio_url,
			audio_type = excluded.audio_type,
			duration = excluded.duration,
			image_url = excluded.image_url,
			extensions = excluded.extensions
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, episode := range episodes {
		extensions, err := json.Marshal(episode.Extensions)
		if err != nil {
			return fmt.Errorf("failed to marshal extensions: %w", err)
		}

		_, err = stmt.Exec(
			feedID, episode.ID, episode.Title, episode.Description,
			episode.Content, episode.Link, episode.PublishedAt,
			episode.Author, episode.AudioURL, episode.AudioType,
			episode.Duration, episode.ImageURL, string(extensions), now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert episode: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit episode upsert: %w", err)
	}
	return nil
}

func (r *episodeRepository) Get(feedID string, limit, offset int) ([]feed.Episode, error) {
	rows, err := r.db.Query(`
		SELECT episode_id, title, description, content, link, published_at,
		       author, audio_url, audio_type, duration, image_url, extensions
		FROM episodes
		WHERE feed_id = ?
		ORDER BY published_at DESC
		LIMIT ? OFFSET ?
	`, feedID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get episodes: %w", err)
	}
	defer rows.Close()

	var episodes []feed.Episode
	for rows.Next() {
		var episode feed.Episode
		var extensions string
		err := rows.Scan(
			&episode.ID, &episode.Title, &episode.Description,
			&episode.Content, &episode.Link, &episode.PublishedAt,
			&episode.Author, &episode.AudioURL, &episode.AudioType,
			&episode.Duration, &episode.ImageURL, &extensions,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode row: %w", err)
		}
		if err := json.Unmarshal([]byte(extensions), &episode.Extensions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extensions: %w", err)
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episode rows: %w", err)
	}
	return episodes, nil
}

func (r *episodeRepository) Count(feedID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM episodes WHERE feed_id = ?`, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return count, nil
}

func (r *episodeRepository) DeleteFeed(feedID string) error {
	_, err := r.db.Exec(`DELETE FROM episodes WHERE feed_id = ?`, feedID)
	if err != nil {
		return fmt.Errorf("failed to delete episodes: %w", err)
	}
	return nil
}

func (r *episodeRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM episodes`)
	if err != nil {
		return fmt.Errorf("failed to delete all episodes: %w", err)
	}
	return nil
}
