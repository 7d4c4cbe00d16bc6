package charaxy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kagra-platform/pkg/utils"
)

// PostgresRepo persists charaxy content in the nodes, blocks, and
// block_themes tables. Soft deletion is a deleted_at timestamp; every read
// filters it out.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// ===== Nodes =====

const nodeColumns = `
id, title, COALESCE(description, ''), type, is_public, user_id,
COALESCE(parent_id::text, ''), COALESCE(sort_order, 0), created_at, updated_at
`

func scanNode(row interface{ Scan(...any) error }) (Node, error) {
	var n Node
	err := row.Scan(
		&n.ID, &n.Title, &n.Description, &n.Type, &n.IsPublic, &n.UserID,
		&n.ParentID, &n.SortOrder, &n.CreatedAt, &n.UpdatedAt,
	)
	return n, err
}

func (r *PostgresRepo) ListNodes(ctx context.Context, viewerID string, offset, limit int) ([]Node, error) {
	const q = `
SELECT ` + nodeColumns + `
FROM nodes
WHERE deleted_at IS NULL AND (user_id = $1 OR is_public)
ORDER BY updated_at DESC
OFFSET $2 LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, viewerID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (r *PostgresRepo) GetNode(ctx context.Context, id string) (Node, error) {
	n, err := scanNode(r.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, ErrNodeNotFound
	}
	if err != nil {
		return Node{}, err
	}
	return n, nil
}

func (r *PostgresRepo) InsertNode(ctx context.Context, n Node) error {
	const q = `
INSERT INTO nodes (id, title, description, type, is_public, user_id, parent_id, sort_order, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		n.ID, n.Title, nullIfEmptyStr(n.Description), n.Type, n.IsPublic, n.UserID,
		nullIfEmptyStr(n.ParentID), n.SortOrder, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) UpdateNode(ctx context.Context, n Node) error {
	const q = `
UPDATE nodes SET title = $2, description = $3, type = $4, is_public = $5, updated_at = $6
WHERE id = $1 AND deleted_at IS NULL
`
	res, err := r.db.ExecContext(ctx, q, n.ID, n.Title, nullIfEmptyStr(n.Description), n.Type, n.IsPublic, n.UpdatedAt)
	return rowsOrNotFound(res, err, ErrNodeNotFound)
}

func (r *PostgresRepo) SoftDeleteNode(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	return rowsOrNotFound(res, err, ErrNodeNotFound)
}

// ===== Blocks =====

const blockColumns = `
id, title, COALESCE(content, ''), node_id, COALESCE(block_theme_id::text, ''), user_id,
COALESCE(sort_order, 0), created_at, updated_at
`

func scanBlock(row interface{ Scan(...any) error }) (Block, error) {
	var b Block
	err := row.Scan(
		&b.ID, &b.Title, &b.Content, &b.NodeID, &b.ThemeID, &b.UserID,
		&b.SortOrder, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (r *PostgresRepo) ListBlocks(ctx context.Context, nodeID string) ([]Block, error) {
	const q = `
SELECT ` + blockColumns + `
FROM blocks
WHERE node_id = $1 AND deleted_at IS NULL
ORDER BY sort_order
`
	rows, err := r.db.QueryContext(ctx, q, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetBlock(ctx context.Context, id string) (Block, error) {
	b, err := scanBlock(r.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, ErrBlockNotFound
	}
	if err != nil {
		return Block{}, err
	}
	return b, nil
}

func (r *PostgresRepo) NextSortOrder(ctx context.Context, nodeID string) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM blocks WHERE node_id = $1 AND deleted_at IS NULL`,
		nodeID,
	).Scan(&next)
	return next, err
}

func (r *PostgresRepo) InsertBlock(ctx context.Context, b Block) error {
	const q = `
INSERT INTO blocks (id, title, content, node_id, block_theme_id, user_id, sort_order, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q,
		b.ID, b.Title, nullIfEmptyStr(b.Content), b.NodeID, nullIfEmptyStr(b.ThemeID),
		b.UserID, b.SortOrder, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) UpdateBlock(ctx context.Context, b Block) error {
	const q = `
UPDATE blocks SET title = $2, content = $3, block_theme_id = $4, sort_order = $5, updated_at = $6
WHERE id = $1 AND deleted_at IS NULL
`
	res, err := r.db.ExecContext(ctx, q,
		b.ID, b.Title, nullIfEmptyStr(b.Content), nullIfEmptyStr(b.ThemeID), b.SortOrder, b.UpdatedAt)
	return rowsOrNotFound(res, err, ErrBlockNotFound)
}

func (r *PostgresRepo) SoftDeleteBlock(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE blocks SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	return rowsOrNotFound(res, err, ErrBlockNotFound)
}

func (r *PostgresRepo) ReorderBlocks(ctx context.Context, ownerID string, blockIDs []string, at time.Time) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for i, id := range blockIDs {
			res, err := tx.ExecContext(ctx, `
UPDATE blocks SET sort_order = $3, updated_at = $4
WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
`, id, ownerID, i, at)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", ErrNotOwned, id)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) ListThemeBlocks(ctx context.Context, themeID string) ([]ThemeBlock, error) {
	const q = `
SELECT b.id, b.title, COALESCE(b.content, ''), b.node_id, COALESCE(b.block_theme_id::text, ''), b.user_id,
       COALESCE(b.sort_order, 0), b.created_at, b.updated_at,
       n.title, n.is_public, n.user_id, COALESCE(p.display_name, '')
FROM blocks b
JOIN nodes n ON n.id = b.node_id AND n.deleted_at IS NULL
LEFT JOIN user_profiles p ON p.user_id = n.user_id
WHERE b.block_theme_id = $1 AND b.deleted_at IS NULL
ORDER BY b.updated_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, themeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectThemeBlocks(rows)
}

// ===== Themes =====

const themeColumns = `
id, title, COALESCE(description, ''), COALESCE(creator_id::text, ''), created_at, updated_at
`

func scanTheme(row interface{ Scan(...any) error }) (Theme, error) {
	var t Theme
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *PostgresRepo) ListThemes(ctx context.Context, creatorID string, offset, limit int) ([]Theme, error) {
	const q = `
SELECT ` + themeColumns + `
FROM block_themes
WHERE creator_id = $1
ORDER BY updated_at DESC
OFFSET $2 LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, creatorID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListThemesWithCount(ctx context.Context) ([]Theme, error) {
	const q = `
SELECT t.id, t.title, COALESCE(t.description, ''), COALESCE(t.creator_id::text, ''), t.created_at, t.updated_at,
       COUNT(b.id) FILTER (WHERE b.deleted_at IS NULL)
FROM block_themes t
LEFT JOIN blocks b ON b.block_theme_id = t.id
GROUP BY t.id
ORDER BY t.updated_at DESC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Theme
	for rows.Next() {
		var t Theme
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt, &t.BlockCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetTheme(ctx context.Context, id string) (Theme, error) {
	t, err := scanTheme(r.db.QueryRowContext(ctx,
		`SELECT `+themeColumns+` FROM block_themes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Theme{}, ErrThemeNotFound
	}
	if err != nil {
		return Theme{}, err
	}
	return t, nil
}

func (r *PostgresRepo) InsertTheme(ctx context.Context, t Theme) error {
	const q = `
INSERT INTO block_themes (id, title, description, creator_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.Title, nullIfEmptyStr(t.Description), t.CreatorID, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *PostgresRepo) UpdateTheme(ctx context.Context, t Theme) error {
	const q = `
UPDATE block_themes SET title = $2, description = $3, updated_at = $4 WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, t.ID, t.Title, nullIfEmptyStr(t.Description), t.UpdatedAt)
	return rowsOrNotFound(res, err, ErrThemeNotFound)
}

// ===== Activity and search =====

func (r *PostgresRepo) RecentBlockActivity(ctx context.Context, excludeUserID string, limit int) ([]ActivityItem, error) {
	const q = `
SELECT b.id, b.title, b.updated_at, n.id, n.title, b.user_id, COALESCE(p.display_name, '')
FROM blocks b
JOIN nodes n ON n.id = b.node_id AND n.deleted_at IS NULL AND n.is_public
LEFT JOIN user_profiles p ON p.user_id = b.user_id
WHERE b.deleted_at IS NULL AND b.user_id <> $1
ORDER BY b.updated_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, excludeUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityItem
	for rows.Next() {
		var a ActivityItem
		if err := rows.Scan(&a.BlockID, &a.BlockTitle, &a.BlockUpdatedAt, &a.NodeID, &a.NodeTitle, &a.UserID, &a.UserName); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SearchNodes(ctx context.Context, viewerID, query string, limit int) ([]Node, error) {
	const q = `
SELECT ` + nodeColumns + `
FROM nodes
WHERE deleted_at IS NULL AND (user_id = $1 OR is_public)
  AND (title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
ORDER BY updated_at DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, viewerID, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (r *PostgresRepo) SearchBlocks(ctx context.Context, viewerID, query string, limit int) ([]ThemeBlock, error) {
	const q = `
SELECT b.id, b.title, COALESCE(b.content, ''), b.node_id, COALESCE(b.block_theme_id::text, ''), b.user_id,
       COALESCE(b.sort_order, 0), b.created_at, b.updated_at,
       n.title, n.is_public, n.user_id, COALESCE(p.display_name, '')
FROM blocks b
JOIN nodes n ON n.id = b.node_id AND n.deleted_at IS NULL AND (n.user_id = $1 OR n.is_public)
LEFT JOIN user_profiles p ON p.user_id = n.user_id
WHERE b.deleted_at IS NULL
  AND (b.title ILIKE '%' || $2 || '%' OR b.content ILIKE '%' || $2 || '%')
ORDER BY b.updated_at DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, viewerID, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectThemeBlocks(rows)
}

// ===== helpers =====

func collectNodes(rows *sql.Rows) ([]Node, error) {
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func collectThemeBlocks(rows *sql.Rows) ([]ThemeBlock, error) {
	var out []ThemeBlock
	for rows.Next() {
		var tb ThemeBlock
		err := rows.Scan(
			&tb.ID, &tb.Title, &tb.Content, &tb.NodeID, &tb.ThemeID, &tb.UserID,
			&tb.SortOrder, &tb.CreatedAt, &tb.UpdatedAt,
			&tb.NodeTitle, &tb.NodeIsPublic, &tb.NodeOwnerID, &tb.AuthorName,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

func rowsOrNotFound(res sql.Result, err, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullIfEmptyStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
