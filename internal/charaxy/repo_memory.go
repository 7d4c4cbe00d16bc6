package charaxy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu     sync.RWMutex
	nodes  map[string]Node
	blocks map[string]Block
	themes map[string]Theme
	names  map[string]string // user_id -> display name, for joins
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		nodes:  make(map[string]Node),
		blocks: make(map[string]Block),
		themes: make(map[string]Theme),
		names:  make(map[string]string),
	}
}

// SetUserName seeds the display name used in joined results. Test helper.
func (r *MemoryRepo) SetUserName(userID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[userID] = name
}

// ===== Nodes =====

func (r *MemoryRepo) ListNodes(ctx context.Context, viewerID string, offset, limit int) ([]Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Node
	for _, n := range r.nodes {
		if n.DeletedAt != nil {
			continue
		}
		if n.UserID == viewerID || n.IsPublic {
			out = append(out, n)
		}
	}
	sortNodesByUpdated(out)
	return page(out, offset, limit), nil
}

func (r *MemoryRepo) GetNode(ctx context.Context, id string) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok || n.DeletedAt != nil {
		return Node{}, ErrNodeNotFound
	}
	return n, nil
}

func (r *MemoryRepo) InsertNode(ctx context.Context, n Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[n.ID]; ok {
		return fmt.Errorf("charaxy: node %s already exists", n.ID)
	}
	r.nodes[n.ID] = n
	return nil
}

func (r *MemoryRepo) UpdateNode(ctx context.Context, n Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.nodes[n.ID]
	if !ok || old.DeletedAt != nil {
		return ErrNodeNotFound
	}
	r.nodes[n.ID] = n
	return nil
}

func (r *MemoryRepo) SoftDeleteNode(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok || n.DeletedAt != nil {
		return ErrNodeNotFound
	}
	n.DeletedAt = &at
	r.nodes[id] = n
	return nil
}

// ===== Blocks =====

func (r *MemoryRepo) ListBlocks(ctx context.Context, nodeID string) ([]Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Block
	for _, b := range r.blocks {
		if b.DeletedAt == nil && b.NodeID == nodeID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *MemoryRepo) GetBlock(ctx context.Context, id string) (Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blocks[id]
	if !ok || b.DeletedAt != nil {
		return Block{}, ErrBlockNotFound
	}
	return b, nil
}

func (r *MemoryRepo) NextSortOrder(ctx context.Context, nodeID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	next := 0
	for _, b := range r.blocks {
		if b.DeletedAt == nil && b.NodeID == nodeID && b.SortOrder+1 > next {
			next = b.SortOrder + 1
		}
	}
	return next, nil
}

func (r *MemoryRepo) InsertBlock(ctx context.Context, b Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blocks[b.ID]; ok {
		return fmt.Errorf("charaxy: block %s already exists", b.ID)
	}
	r.blocks[b.ID] = b
	return nil
}

func (r *MemoryRepo) UpdateBlock(ctx context.Context, b Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.blocks[b.ID]
	if !ok || old.DeletedAt != nil {
		return ErrBlockNotFound
	}
	r.blocks[b.ID] = b
	return nil
}

func (r *MemoryRepo) SoftDeleteBlock(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok || b.DeletedAt != nil {
		return ErrBlockNotFound
	}
	b.DeletedAt = &at
	r.blocks[id] = b
	return nil
}

func (r *MemoryRepo) ReorderBlocks(ctx context.Context, ownerID string, blockIDs []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// validate everything before touching anything: all or nothing
	for _, id := range blockIDs {
		b, ok := r.blocks[id]
		if !ok || b.DeletedAt != nil || b.UserID != ownerID {
			return fmt.Errorf("%w: %s", ErrNotOwned, id)
		}
	}
	for i, id := range blockIDs {
		b := r.blocks[id]
		b.SortOrder = i
		b.UpdatedAt = at
		r.blocks[id] = b
	}
	return nil
}

func (r *MemoryRepo) ListThemeBlocks(ctx context.Context, themeID string) ([]ThemeBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ThemeBlock
	for _, b := range r.blocks {
		if b.DeletedAt != nil || b.ThemeID != themeID {
			continue
		}
		n, ok := r.nodes[b.NodeID]
		if !ok || n.DeletedAt != nil {
			continue
		}
		out = append(out, ThemeBlock{
			Block:        b,
			NodeTitle:    n.Title,
			NodeIsPublic: n.IsPublic,
			NodeOwnerID:  n.UserID,
			AuthorName:   r.names[n.UserID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// ===== Themes =====

func (r *MemoryRepo) ListThemes(ctx context.Context, creatorID string, offset, limit int) ([]Theme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Theme
	for _, t := range r.themes {
		if t.CreatorID == creatorID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return page(out, offset, limit), nil
}

func (r *MemoryRepo) ListThemesWithCount(ctx context.Context) ([]Theme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, b := range r.blocks {
		if b.DeletedAt == nil && b.ThemeID != "" {
			counts[b.ThemeID]++
		}
	}
	var out []Theme
	for _, t := range r.themes {
		t.BlockCount = counts[t.ID]
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryRepo) GetTheme(ctx context.Context, id string) (Theme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.themes[id]
	if !ok {
		return Theme{}, ErrThemeNotFound
	}
	return t, nil
}

func (r *MemoryRepo) InsertTheme(ctx context.Context, t Theme) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.themes[t.ID]; ok {
		return fmt.Errorf("charaxy: theme %s already exists", t.ID)
	}
	r.themes[t.ID] = t
	return nil
}

func (r *MemoryRepo) UpdateTheme(ctx context.Context, t Theme) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.themes[t.ID]; !ok {
		return ErrThemeNotFound
	}
	r.themes[t.ID] = t
	return nil
}

// ===== Activity and search =====

func (r *MemoryRepo) RecentBlockActivity(ctx context.Context, excludeUserID string, limit int) ([]ActivityItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ActivityItem
	for _, b := range r.blocks {
		if b.DeletedAt != nil || b.UserID == excludeUserID {
			continue
		}
		n, ok := r.nodes[b.NodeID]
		if !ok || n.DeletedAt != nil || !n.IsPublic {
			continue
		}
		out = append(out, ActivityItem{
			BlockID:        b.ID,
			BlockTitle:     b.Title,
			BlockUpdatedAt: b.UpdatedAt,
			NodeID:         n.ID,
			NodeTitle:      n.Title,
			UserID:         b.UserID,
			UserName:       r.names[b.UserID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockUpdatedAt.After(out[j].BlockUpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) SearchNodes(ctx context.Context, viewerID, query string, limit int) ([]Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	var out []Node
	for _, n := range r.nodes {
		if n.DeletedAt != nil || (n.UserID != viewerID && !n.IsPublic) {
			continue
		}
		if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Description), q) {
			out = append(out, n)
		}
	}
	sortNodesByUpdated(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) SearchBlocks(ctx context.Context, viewerID, query string, limit int) ([]ThemeBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	var out []ThemeBlock
	for _, b := range r.blocks {
		if b.DeletedAt != nil {
			continue
		}
		n, ok := r.nodes[b.NodeID]
		if !ok || n.DeletedAt != nil || (n.UserID != viewerID && !n.IsPublic) {
			continue
		}
		if !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Content), q) {
			continue
		}
		out = append(out, ThemeBlock{
			Block:        b,
			NodeTitle:    n.Title,
			NodeIsPublic: n.IsPublic,
			NodeOwnerID:  n.UserID,
			AuthorName:   r.names[n.UserID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ===== helpers =====

func sortNodesByUpdated(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].UpdatedAt.Equal(nodes[j].UpdatedAt) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].UpdatedAt.After(nodes[j].UpdatedAt)
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
