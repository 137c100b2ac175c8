package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mrmushfiq/promptlib/internal/shared/models"
)

// Sort orders accepted by PromptQuery.
const (
	SortNewest   = "newest"
	SortTop      = "top"
	SortTrending = "trending"
)

// PromptQuery filters and pages a prompt listing. Zero values mean "no
// constraint", except Limit which must be set by the caller.
type PromptQuery struct {
	CategoryID   *int64
	Tag          string
	OwnerID      string
	Search       string
	FeaturedOnly bool
	PublicOnly   bool
	Sort         string
	Limit        int
	Offset       int
}

const promptColumns = `id, title, description, content, category_id, tags, owner_id,
	forked_from_id, is_public, is_featured, vote_count, favorite_count, fork_count,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (*models.Prompt, error) {
	var p models.Prompt
	var categoryID, forkedFrom sql.NullInt64
	var tags pq.StringArray

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Content,
		&categoryID,
		&tags,
		&p.OwnerID,
		&forkedFrom,
		&p.IsPublic,
		&p.IsFeatured,
		&p.VoteCount,
		&p.FavoriteCount,
		&p.ForkCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if forkedFrom.Valid {
		p.ForkedFromID = &forkedFrom.Int64
	}
	p.Tags = []string(tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func buildPromptWhere(q PromptQuery) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.PublicOnly {
		clauses = append(clauses, "is_public = true")
	}
	if q.FeaturedOnly {
		clauses = append(clauses, "is_featured = true")
	}
	if q.CategoryID != nil {
		add("category_id = $%d", *q.CategoryID)
	}
	if q.Tag != "" {
		add("$%d = ANY(tags)", q.Tag)
	}
	if q.OwnerID != "" {
		add("owner_id = $%d", q.OwnerID)
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(sort string) string {
	switch sort {
	case SortTop:
		return " ORDER BY vote_count DESC, created_at DESC"
	case SortTrending:
		// Engagement decays with age in hours
		return ` ORDER BY (vote_count + 2 * favorite_count + fork_count)
			/ POWER(EXTRACT(EPOCH FROM (NOW() - created_at)) / 3600 + 2, 1.5) DESC, id DESC`
	default:
		return " ORDER BY created_at DESC, id DESC"
	}
}

// ListPrompts returns one page of prompts matching the query
func (db *DB) ListPrompts(ctx context.Context, q PromptQuery) ([]models.Prompt, error) {
	where, args := buildPromptWhere(q)
	args = append(args, q.Limit, q.Offset)
	query := "SELECT " + promptColumns + " FROM prompts" + where + orderBy(q.Sort) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]models.Prompt, 0, q.Limit)
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return prompts, nil
}

// CountPrompts counts prompts matching the query, ignoring paging and sort
func (db *DB) CountPrompts(ctx context.Context, q PromptQuery) (int, error) {
	where, args := buildPromptWhere(q)

	var total int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM prompts"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count prompts: %w", err)
	}
	return total, nil
}

// GetPrompt retrieves a prompt by id
func (db *DB) GetPrompt(ctx context.Context, id int64) (*models.Prompt, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+promptColumns+" FROM prompts WHERE id = $1", id)
	p, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt %d: %w", id, err)
	}
	return p, nil
}

// InsertPrompt stores a new prompt and fills in its id and timestamps
func (db *DB) InsertPrompt(ctx context.Context, p *models.Prompt) error {
	query := `
		INSERT INTO prompts (title, description, content, category_id, tags, owner_id,
		                     forked_from_id, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := db.conn.QueryRowContext(ctx, query,
		p.Title,
		p.Description,
		p.Content,
		p.CategoryID,
		pq.Array(p.Tags),
		p.OwnerID,
		p.ForkedFromID,
		p.IsPublic,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

// UpdatePrompt overwrites the editable fields of a prompt owned by p.OwnerID
func (db *DB) UpdatePrompt(ctx context.Context, p *models.Prompt) error {
	query := `
		UPDATE prompts
		SET title = $1, description = $2, content = $3, category_id = $4, tags = $5,
		    is_public = $6, updated_at = NOW()
		WHERE id = $7 AND owner_id = $8
		RETURNING updated_at
	`

	err := db.conn.QueryRowContext(ctx, query,
		p.Title,
		p.Description,
		p.Content,
		p.CategoryID,
		pq.Array(p.Tags),
		p.IsPublic,
		p.ID,
		p.OwnerID,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update prompt %d: %w", p.ID, err)
	}
	return nil
}

// DeletePrompt removes a prompt owned by ownerID
func (db *DB) DeletePrompt(ctx context.Context, id int64, ownerID string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM prompts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete prompt %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete prompt %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementForkCount bumps the fork counter of the source prompt
func (db *DB) IncrementForkCount(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE prompts SET fork_count = fork_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment fork count %d: %w", id, err)
	}
	return nil
}

// CategoryCounts lists categories with the number of public prompts in each
func (db *DB) CategoryCounts(ctx context.Context) ([]models.Category, error) {
	query := `
		SELECT c.id, c.name, c.slug, COUNT(p.id)
		FROM categories c
		LEFT JOIN prompts p ON p.category_id = c.id AND p.is_public = true
		GROUP BY c.id, c.name, c.slug
		ORDER BY c.name
	`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.PromptCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
