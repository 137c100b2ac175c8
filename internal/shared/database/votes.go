package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

// SetVote records userID's vote on a prompt and adjusts the prompt's
// vote_count by the difference. value 0 clears the vote. It returns the new
// vote count.
//
// Votes on one prompt are serialized on the prompt row. The delta statement
// runs after that lock is held, so its snapshot always includes the last
// committed vote and concurrent votes by the same user cannot double count.
func (db *DB) SetVote(ctx context.Context, promptID int64, userID string, value int) (int, error) {
	var query string
	args := []any{promptID, userID}

	if value == 0 {
		query = `
			WITH removed AS (
				DELETE FROM votes WHERE prompt_id = $1 AND user_id = $2 RETURNING value
			)
			UPDATE prompts
			SET vote_count = vote_count - COALESCE((SELECT value FROM removed), 0)
			WHERE id = $1
			RETURNING vote_count
		`
	} else {
		query = `
			WITH prev AS (
				SELECT value FROM votes WHERE prompt_id = $1 AND user_id = $2
			), upsert AS (
				INSERT INTO votes (prompt_id, user_id, value) VALUES ($1, $2, $3)
				ON CONFLICT (prompt_id, user_id) DO UPDATE SET value = EXCLUDED.value
			)
			UPDATE prompts
			SET vote_count = vote_count + $3 - COALESCE((SELECT value FROM prev), 0)
			WHERE id = $1
			RETURNING vote_count
		`
		args = append(args, value)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin vote on %d: %w", promptID, err)
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM prompts WHERE id = $1 FOR UPDATE`, promptID).Scan(&locked)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock prompt %d: %w", promptID, err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("set vote on %d: %w", promptID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit vote on %d: %w", promptID, err)
	}
	return count, nil
}

// ToggleFavorite adds or removes a favorite and adjusts favorite_count in
// one statement. It reports whether the prompt is now a favorite.
func (db *DB) ToggleFavorite(ctx context.Context, promptID int64, userID string) (bool, error) {
	query := `
		WITH removed AS (
			DELETE FROM favorites WHERE prompt_id = $1 AND user_id = $2 RETURNING 1
		), added AS (
			INSERT INTO favorites (prompt_id, user_id)
			SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM removed)
			ON CONFLICT DO NOTHING
			RETURNING 1
		)
		UPDATE prompts
		SET favorite_count = favorite_count + (SELECT COUNT(*) FROM added) - (SELECT COUNT(*) FROM removed)
		WHERE id = $1
		RETURNING (SELECT COUNT(*) FROM added) > 0
	`

	var favorited bool
	err := db.conn.QueryRowContext(ctx, query, promptID, userID).Scan(&favorited)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle favorite on %d: %w", promptID, err)
	}
	return favorited, nil
}

// ListFavoritePrompts returns the prompts userID has favorited, newest
// first. A favorite whose prompt has since been made private by someone
// else is left out.
func (db *DB) ListFavoritePrompts(ctx context.Context, userID string, limit, offset int) ([]models.Prompt, error) {
	query := `
		SELECT p.id, p.title, p.description, p.content, p.category_id, p.tags, p.owner_id,
		       p.forked_from_id, p.is_public, p.is_featured, p.vote_count, p.favorite_count,
		       p.fork_count, p.created_at, p.updated_at
		FROM favorites f
		JOIN prompts p ON p.id = f.prompt_id
		WHERE f.user_id = $1
		  AND (p.is_public = true OR p.owner_id = $1)
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := db.conn.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	prompts := []models.Prompt{}
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

// ListUserVotes returns userID's votes keyed by prompt id
func (db *DB) ListUserVotes(ctx context.Context, userID string) (map[int64]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT prompt_id, value FROM votes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	votes := make(map[int64]int)
	for rows.Next() {
		var promptID int64
		var value int
		if err := rows.Scan(&promptID, &value); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		votes[promptID] = value
	}
	return votes, rows.Err()
}
