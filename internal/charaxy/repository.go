package charaxy

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNodeNotFound  = errors.New("charaxy: node not found")
	ErrBlockNotFound = errors.New("charaxy: block not found")
	ErrThemeNotFound = errors.New("charaxy: theme not found")
)

// Repository persists nodes, blocks, and themes. Soft-deleted rows are
// invisible to every read.
type Repository interface {
	// Nodes.
	ListNodes(ctx context.Context, viewerID string, offset, limit int) ([]Node, error)
	GetNode(ctx context.Context, id string) (Node, error)
	InsertNode(ctx context.Context, n Node) error
	UpdateNode(ctx context.Context, n Node) error
	SoftDeleteNode(ctx context.Context, id string, at time.Time) error

	// Blocks.
	ListBlocks(ctx context.Context, nodeID string) ([]Block, error)
	GetBlock(ctx context.Context, id string) (Block, error)
	NextSortOrder(ctx context.Context, nodeID string) (int, error)
	InsertBlock(ctx context.Context, b Block) error
	UpdateBlock(ctx context.Context, b Block) error
	SoftDeleteBlock(ctx context.Context, id string, at time.Time) error
	// ReorderBlocks assigns sort orders 0..n-1 following blockIDs, all or
	// nothing. Every block must be owned by ownerID and not deleted.
	ReorderBlocks(ctx context.Context, ownerID string, blockIDs []string, at time.Time) error
	ListThemeBlocks(ctx context.Context, themeID string) ([]ThemeBlock, error)

	// Themes.
	ListThemes(ctx context.Context, creatorID string, offset, limit int) ([]Theme, error)
	ListThemesWithCount(ctx context.Context) ([]Theme, error)
	GetTheme(ctx context.Context, id string) (Theme, error)
	InsertTheme(ctx context.Context, t Theme) error
	UpdateTheme(ctx context.Context, t Theme) error

	// Activity and search.
	RecentBlockActivity(ctx context.Context, excludeUserID string, limit int) ([]ActivityItem, error)
	SearchNodes(ctx context.Context, viewerID, query string, limit int) ([]Node, error)
	SearchBlocks(ctx context.Context, viewerID, query string, limit int) ([]ThemeBlock, error)
}

var ErrNotOwned = errors.New("charaxy: block not owned by caller")
