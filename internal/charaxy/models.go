package charaxy

import "time"

// NodeTypeCharaxy is the node type the main app works with; other types
// are reserved for future surfaces.
const NodeTypeCharaxy = "charaxy"

// Node is a top-level content container. Soft-deleted rows keep their
// DeletedAt timestamp and disappear from every query.
type Node struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Type            string     `json:"type"`
	IsPublic        bool       `json:"is_public"`
	UserID          string     `json:"user_id"`
	ParentID        string     `json:"parent_id,omitempty"`
	SortOrder       int        `json:"sort_order"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"-"`
}

// NodeWithAuthor decorates a node with its author's public profile bits.
type NodeWithAuthor struct {
	Node
	AuthorName   string `json:"user_name,omitempty"`
	AuthorAvatar string `json:"user_avatar,omitempty"`
}

// Block is an ordered content unit inside a node, optionally tagged with a
// theme.
type Block struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content,omitempty"`
	NodeID    string     `json:"node_id"`
	ThemeID   string     `json:"block_theme_id,omitempty"`
	UserID    string     `json:"user_id"`
	SortOrder int        `json:"sort_order"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// ThemeBlock is a block joined with its node for the theme listing.
type ThemeBlock struct {
	Block
	NodeTitle    string `json:"node_title"`
	NodeIsPublic bool   `json:"-"`
	NodeOwnerID  string `json:"-"`
	AuthorName   string `json:"user_name,omitempty"`
}

// Theme groups blocks across nodes.
type Theme struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatorID   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	BlockCount  int       `json:"block_count"`
}

// ActivityItem is one entry in the public activity feed: a block another
// user recently updated on one of their public nodes.
type ActivityItem struct {
	BlockID        string    `json:"block_id"`
	BlockTitle     string    `json:"block_title"`
	BlockUpdatedAt time.Time `json:"block_updated_at"`
	NodeID         string    `json:"node_id"`
	NodeTitle      string    `json:"node_title"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
}

// NodeCreate carries the client-supplied fields for a new node.
type NodeCreate struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type"`
	IsPublic    bool   `json:"is_public"`
}

// NodeUpdate carries a partial node update. Nil means "leave as is".
type NodeUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	IsPublic    *bool   `json:"is_public"`
}

func (u NodeUpdate) empty() bool {
	return u.Title == nil && u.Description == nil && u.Type == nil && u.IsPublic == nil
}

// BlockCreate carries the client-supplied fields for a new block.
type BlockCreate struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
	NodeID  string `json:"node_id" binding:"required"`
	ThemeID string `json:"block_theme_id"`
}

// BlockUpdate carries a partial block update.
type BlockUpdate struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (u BlockUpdate) empty() bool { return u.Title == nil && u.Content == nil }

// ThemeCreate carries the client-supplied fields for a new theme.
type ThemeCreate struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// ThemeUpdate carries a partial theme update.
type ThemeUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (u ThemeUpdate) empty() bool { return u.Title == nil && u.Description == nil }
