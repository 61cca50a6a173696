package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
	"github.com/sakif/snippet-vault/internal/visibility"
)

// Compile-time check that *DB implements the interface.
var _ repository.SnippetRepository = (*DB)(nil)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

const snippetColumns = `id, user_id, title, description, code, language, category, tags,
	usage_count, is_favorite, is_public, in_community, public_expires_at,
	original_id, version, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*model.Snippet, error) {
	var (
		s       model.Snippet
		tags    string
		expires sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.Title, &s.Description, &s.Code, &s.Language, &s.Category, &tags,
		&s.UsageCount, &s.IsFavorite, &s.IsPublic, &s.InCommunity, &expires,
		&s.OriginalID, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &s.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of snippet %s: %w", s.ID, err)
	}
	s.PublicExpiresAt = fromMillis(expires)
	return &s, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new snippet, assigning its ID, version and timestamps.
// The caller's struct is updated in place.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	return db.insertSnippet(ctx, db.conn, snippet)
}

// CreateBatch inserts every snippet in one transaction. If any insert fails
// nothing is stored.
func (db *DB) CreateBatch(ctx context.Context, snippets []*model.Snippet) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	for _, snippet := range snippets {
		if err := db.insertSnippet(ctx, tx, snippet); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing snippet batch: %w", err)
	}
	return nil
}

func (db *DB) insertSnippet(ctx context.Context, ex execer, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	now := db.now()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now
	snippet.Version = 1

	tags, err := encodeTags(snippet.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID, snippet.UserID, snippet.Title, snippet.Description, snippet.Code,
		snippet.Language, snippet.Category, tags,
		snippet.UsageCount, snippet.IsFavorite, snippet.IsPublic, snippet.InCommunity,
		toMillis(snippet.PublicExpiresAt),
		snippet.OriginalID, snippet.Version, snippet.CreatedAt, snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

// GetByID fetches one snippet, or apperror.ErrNotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	s, err := scanSnippet(db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return s, nil
}

// List returns one page of snippets matching opts, newest first, plus the
// total number of matches.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) (*repository.Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := listFilter(opts)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snippets`+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: counting snippets: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets`+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return &repository.Page{Snippets: snippets, Total: total}, nil
}

// listFilter builds the WHERE clause for List. Only placeholders carry user
// input; the clause text itself is fixed.
func listFilter(opts repository.ListOptions) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if opts.OwnerID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, opts.OwnerID)
	}
	if opts.CommunityOnly {
		conds = append(conds, "in_community = 1")
	}
	if s := strings.TrimSpace(opts.Search); s != "" {
		// LIKE is case-insensitive for ASCII in SQLite.
		conds = append(conds, `title LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(s)+"%")
	}
	if opts.FavoriteOnly {
		conds = append(conds, "is_favorite = 1")
	}
	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, opts.Category)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Update overwrites the content fields of a snippet and bumps its version.
// Visibility, usage and favorite columns are not touched.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = db.now()

	tags, err := encodeTags(snippet.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, description = ?, code = ?, language = ?, category = ?, tags = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ?`,
		snippet.Title, snippet.Description, snippet.Code, snippet.Language, snippet.Category, tags,
		snippet.UpdatedAt, snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}
	if err := expectOneRow(result, "snippet", snippet.ID); err != nil {
		return err
	}
	snippet.Version++
	return nil
}

// UpdateVisibility writes only the columns present in patch.
func (db *DB) UpdateVisibility(ctx context.Context, id string, patch visibility.Patch, expectedVersion int64) (*model.Snippet, error) {
	if patch.IsEmpty() {
		return db.GetByID(ctx, id)
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if patch.IsPublic != nil {
		sets = append(sets, "is_public = ?")
		args = append(args, *patch.IsPublic)
	}
	if patch.InCommunity != nil {
		sets = append(sets, "in_community = ?")
		args = append(args, *patch.InCommunity)
	}
	if patch.ExpiresSet {
		sets = append(sets, "public_expires_at = ?")
		args = append(args, toMillis(patch.PublicExpiresAt))
	}
	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, db.now())

	query := `UPDATE snippets SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if expectedVersion > 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}

	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating visibility of snippet %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		// Either the row is gone or someone else wrote first.
		if _, err := db.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("snippet", id)
	}

	return db.GetByID(ctx, id)
}

// SetFavorite flips the favorite flag without touching the version, since it
// is per-owner bookkeeping rather than content.
func (db *DB) SetFavorite(ctx context.Context, id string, favorite bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET is_favorite = ? WHERE id = ?`, favorite, id)
	if err != nil {
		return fmt.Errorf("sqlite: setting favorite on snippet %s: %w", id, err)
	}
	return expectOneRow(result, "snippet", id)
}

// IncrementUsage adds one to usage_count atomically.
func (db *DB) IncrementUsage(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing usage of snippet %s: %w", id, err)
	}
	return expectOneRow(result, "snippet", id)
}

// Delete removes a snippet.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}
	return expectOneRow(result, "snippet", id)
}

// ListByOwner returns all of a user's snippets, newest first.
func (db *DB) ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets of %s: %w", ownerID, err)
	}
	defer rows.Close()

	var snippets []model.Snippet
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}
	return snippets, nil
}

// ClearLapsedLinks recomputes is_public for snippets whose only public channel
// was a link that has now expired.
func (db *DB) ClearLapsedLinks(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	const lapsed = `is_public = 1 AND in_community = 0
		AND public_expires_at IS NOT NULL AND public_expires_at <= ?`
	cutoff := now.UnixMilli()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM snippets WHERE `+lapsed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding lapsed links: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning lapsed id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating lapsed ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE snippets SET is_public = 0, version = version + 1, updated_at = ?
		 WHERE `+lapsed, db.now(), cutoff); err != nil {
		return nil, fmt.Errorf("sqlite: clearing lapsed links: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing lapsed links: %w", err)
	}
	return ids, nil
}

func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
