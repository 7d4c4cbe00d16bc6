package charaxy

import (
	"context"
	"errors"
	"strings"
	"time"

	"kagra-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrForbidden    = errors.New("charaxy: forbidden")
	ErrNoChanges    = errors.New("charaxy: no fields to update")
	ErrInvalidInput = errors.New("charaxy: invalid input")
)

const activityLimit = 50

// AdminChecker reports whether a user holds the system admin grant.
// Lookups fail closed: errors read as "not an admin".
type AdminChecker interface {
	IsSystemAdmin(ctx context.Context, userID string) (bool, error)
}

// AuthorLookup resolves public profile bits for node authors. Optional;
// nil leaves author fields empty.
type AuthorLookup interface {
	AuthorInfo(ctx context.Context, userID string) (name, avatarURL string, err error)
}

// Service owns the node/block/theme business rules: visibility,
// ownership, soft deletion, and block ordering.
type Service struct {
	repo    Repository
	admins  AdminChecker
	authors AuthorLookup
	clock   func() time.Time
	newID   func() string
}

func NewService(repo Repository, admins AdminChecker, authors AuthorLookup) *Service {
	return &Service{
		repo:    repo,
		admins:  admins,
		authors: authors,
		clock:   time.Now,
		newID:   uuid.NewString,
	}
}

// WithClock overrides time for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) isAdmin(ctx context.Context, userID string) bool {
	if s.admins == nil {
		return false
	}
	admin, err := s.admins.IsSystemAdmin(ctx, userID)
	if err != nil {
		logger.From(ctx).Warn("admin check failed", "user_id", userID, "err", err)
		return false
	}
	return admin
}

// ===== Nodes =====

// Nodes lists the viewer's own nodes plus everyone's public ones, newest
// update first.
func (s *Service) Nodes(ctx context.Context, viewerID string, offset, limit int) ([]Node, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListNodes(ctx, viewerID, offset, limit)
}

// Node returns one node with author info. Private nodes are only visible
// to their owner.
func (s *Service) Node(ctx context.Context, viewerID, id string) (NodeWithAuthor, error) {
	n, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return NodeWithAuthor{}, err
	}
	if !n.IsPublic && n.UserID != viewerID {
		return NodeWithAuthor{}, ErrForbidden
	}

	out := NodeWithAuthor{Node: n}
	if s.authors != nil {
		name, avatar, err := s.authors.AuthorInfo(ctx, n.UserID)
		if err != nil {
			// author info decorates the node, it never gates it
			logger.From(ctx).Warn("author lookup failed", "user_id", n.UserID, "err", err)
		} else {
			out.AuthorName = name
			out.AuthorAvatar = avatar
		}
	}
	return out, nil
}

// CreateNode creates a node owned by ownerID.
func (s *Service) CreateNode(ctx context.Context, ownerID string, in NodeCreate) (Node, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Node{}, ErrInvalidInput
	}
	if in.Type == "" {
		in.Type = NodeTypeCharaxy
	}
	now := s.clock().UTC()
	n := Node{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		IsPublic:    in.IsPublic,
		UserID:      ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertNode(ctx, n); err != nil {
		return Node{}, err
	}
	return n, nil
}

// UpdateNode applies a partial update. Owner or system admin only.
func (s *Service) UpdateNode(ctx context.Context, actorID, id string, in NodeUpdate) (Node, error) {
	if in.empty() {
		return Node{}, ErrNoChanges
	}
	n, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return Node{}, err
	}
	if n.UserID != actorID && !s.isAdmin(ctx, actorID) {
		return Node{}, ErrForbidden
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return Node{}, ErrInvalidInput
		}
		n.Title = *in.Title
	}
	if in.Description != nil {
		n.Description = *in.Description
	}
	if in.Type != nil {
		n.Type = *in.Type
	}
	if in.IsPublic != nil {
		n.IsPublic = *in.IsPublic
	}
	n.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateNode(ctx, n); err != nil {
		return Node{}, err
	}
	return n, nil
}

// DeleteNode soft-deletes a node. Owner or system admin only.
func (s *Service) DeleteNode(ctx context.Context, actorID, id string) (Node, error) {
	n, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return Node{}, err
	}
	if n.UserID != actorID && !s.isAdmin(ctx, actorID) {
		return Node{}, ErrForbidden
	}
	if err := s.repo.SoftDeleteNode(ctx, id, s.clock().UTC()); err != nil {
		return Node{}, err
	}
	return n, nil
}

// ===== Blocks =====

// Blocks lists a node's blocks in sort order. The node must be visible to
// the viewer.
func (s *Service) Blocks(ctx context.Context, viewerID, nodeID string) ([]Block, error) {
	n, err := s.repo.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if !n.IsPublic && n.UserID != viewerID {
		return nil, ErrForbidden
	}
	return s.repo.ListBlocks(ctx, nodeID)
}

// Block returns one block. Owner only.
func (s *Service) Block(ctx context.Context, viewerID, id string) (Block, error) {
	b, err := s.repo.GetBlock(ctx, id)
	if err != nil {
		return Block{}, err
	}
	if b.UserID != viewerID {
		return Block{}, ErrForbidden
	}
	return b, nil
}

// CreateBlock appends a block to the end of a node the caller owns.
func (s *Service) CreateBlock(ctx context.Context, ownerID string, in BlockCreate) (Block, error) {
	if strings.TrimSpace(in.Title) == "" || in.NodeID == "" {
		return Block{}, ErrInvalidInput
	}
	n, err := s.repo.GetNode(ctx, in.NodeID)
	if err != nil {
		return Block{}, err
	}
	if n.UserID != ownerID {
		return Block{}, ErrForbidden
	}

	sortOrder, err := s.repo.NextSortOrder(ctx, in.NodeID)
	if err != nil {
		return Block{}, err
	}

	now := s.clock().UTC()
	b := Block{
		ID:        s.newID(),
		Title:     in.Title,
		Content:   in.Content,
		NodeID:    in.NodeID,
		ThemeID:   in.ThemeID,
		UserID:    ownerID,
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertBlock(ctx, b); err != nil {
		return Block{}, err
	}
	return b, nil
}

// UpdateBlock applies a partial update to a block the caller owns.
func (s *Service) UpdateBlock(ctx context.Context, actorID, id string, in BlockUpdate) (Block, error) {
	if in.empty() {
		return Block{}, ErrNoChanges
	}
	b, err := s.repo.GetBlock(ctx, id)
	if err != nil {
		return Block{}, err
	}
	if b.UserID != actorID {
		return Block{}, ErrForbidden
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return Block{}, ErrInvalidInput
		}
		b.Title = *in.Title
	}
	if in.Content != nil {
		b.Content = *in.Content
	}
	b.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateBlock(ctx, b); err != nil {
		return Block{}, err
	}
	return b, nil
}

// DeleteBlock soft-deletes a block the caller owns.
func (s *Service) DeleteBlock(ctx context.Context, actorID, id string) (Block, error) {
	b, err := s.repo.GetBlock(ctx, id)
	if err != nil {
		return Block{}, err
	}
	if b.UserID != actorID {
		return Block{}, ErrForbidden
	}
	if err := s.repo.SoftDeleteBlock(ctx, id, s.clock().UTC()); err != nil {
		return Block{}, err
	}
	return b, nil
}

// ReorderBlocks rewrites sort orders to follow blockIDs. All blocks must
// belong to the caller; the whole operation is atomic.
func (s *Service) ReorderBlocks(ctx context.Context, actorID string, blockIDs []string) error {
	if len(blockIDs) == 0 {
		return ErrInvalidInput
	}
	seen := make(map[string]struct{}, len(blockIDs))
	for _, id := range blockIDs {
		if id == "" {
			return ErrInvalidInput
		}
		if _, dup := seen[id]; dup {
			return ErrInvalidInput
		}
		seen[id] = struct{}{}
	}
	err := s.repo.ReorderBlocks(ctx, actorID, blockIDs, s.clock().UTC())
	if errors.Is(err, ErrNotOwned) {
		return ErrForbidden
	}
	return err
}

// SetBlockTheme tags (or, with an empty themeID, untags) a block the
// caller owns.
func (s *Service) SetBlockTheme(ctx context.Context, actorID, blockID, themeID string) (Block, error) {
	b, err := s.repo.GetBlock(ctx, blockID)
	if err != nil {
		return Block{}, err
	}
	if b.UserID != actorID {
		return Block{}, ErrForbidden
	}
	if themeID != "" {
		if _, err := s.repo.GetTheme(ctx, themeID); err != nil {
			return Block{}, err
		}
	}
	b.ThemeID = themeID
	b.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateBlock(ctx, b); err != nil {
		return Block{}, err
	}
	return b, nil
}

// ===== Themes =====

// Themes lists the caller's own themes.
func (s *Service) Themes(ctx context.Context, creatorID string, offset, limit int) ([]Theme, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListThemes(ctx, creatorID, offset, limit)
}

// ThemesWithCount lists every theme with its live block count.
func (s *Service) ThemesWithCount(ctx context.Context) ([]Theme, error) {
	return s.repo.ListThemesWithCount(ctx)
}

// Theme returns one theme. Creator only.
func (s *Service) Theme(ctx context.Context, viewerID, id string) (Theme, error) {
	t, err := s.repo.GetTheme(ctx, id)
	if err != nil {
		return Theme{}, err
	}
	if t.CreatorID != viewerID {
		return Theme{}, ErrForbidden
	}
	return t, nil
}

// ThemeBlocks lists a theme's blocks the viewer may see: blocks on public
// nodes plus blocks on the viewer's own nodes.
func (s *Service) ThemeBlocks(ctx context.Context, viewerID, themeID string) ([]ThemeBlock, error) {
	blocks, err := s.repo.ListThemeBlocks(ctx, themeID)
	if err != nil {
		return nil, err
	}
	out := make([]ThemeBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.NodeIsPublic || b.NodeOwnerID == viewerID {
			out = append(out, b)
		}
	}
	return out, nil
}

// CreateTheme creates a theme owned by creatorID.
func (s *Service) CreateTheme(ctx context.Context, creatorID string, in ThemeCreate) (Theme, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Theme{}, ErrInvalidInput
	}
	now := s.clock().UTC()
	t := Theme{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertTheme(ctx, t); err != nil {
		return Theme{}, err
	}
	return t, nil
}

// UpdateTheme applies a partial update to a theme the caller created.
func (s *Service) UpdateTheme(ctx context.Context, actorID, id string, in ThemeUpdate) (Theme, error) {
	if in.empty() {
		return Theme{}, ErrNoChanges
	}
	t, err := s.repo.GetTheme(ctx, id)
	if err != nil {
		return Theme{}, err
	}
	if t.CreatorID != actorID {
		return Theme{}, ErrForbidden
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return Theme{}, ErrInvalidInput
		}
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	t.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateTheme(ctx, t); err != nil {
		return Theme{}, err
	}
	return t, nil
}

// ===== Activity and search =====

// Activity returns the latest public block updates by other users.
func (s *Service) Activity(ctx context.Context, viewerID string) ([]ActivityItem, error) {
	return s.repo.RecentBlockActivity(ctx, viewerID, activityLimit)
}

// SearchResult bundles node and block matches for one query.
type SearchResult struct {
	Nodes  []Node       `json:"nodes"`
	Blocks []ThemeBlock `json:"blocks"`
}

// Search finds nodes and blocks matching query among what the viewer may
// see (own plus public).
func (s *Service) Search(ctx context.Context, viewerID, query string, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, ErrInvalidInput
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	nodes, err := s.repo.SearchNodes(ctx, viewerID, query, limit)
	if err != nil {
		return SearchResult{}, err
	}
	blocks, err := s.repo.SearchBlocks(ctx, viewerID, query, limit)
	if err != nil {
		return SearchResult{}, err
	}
	if nodes == nil {
		nodes = []Node{}
	}
	if blocks == nil {
		blocks = []ThemeBlock{}
	}
	return SearchResult{Nodes: nodes, Blocks: blocks}, nil
}
