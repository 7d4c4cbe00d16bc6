package charaxy

import (
	"errors"
	"net/http"
	"strconv"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers wires the charaxy service to the HTTP surface. Permission
// middleware runs before these; handlers only enforce ownership.
type Handlers struct {
	Service *Service
	Audit   *audit.Service
}

func (h Handlers) meta(c *gin.Context) audit.RequestMeta {
	return audit.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func currentUser(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return uid, true
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNodeNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "node not found"})
	case errors.Is(err, ErrBlockNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "block not found"})
	case errors.Is(err, ErrThemeNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "theme not found"})
	case errors.Is(err, ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, ErrNoChanges):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
	case errors.Is(err, ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	default:
		logger.FromGin(c).Error("charaxy operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	return offset, limit
}

// ===== Nodes =====

// ListNodes handles GET /nodes.
func (h Handlers) ListNodes(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)
	nodes, err := h.Service.Nodes(c.Request.Context(), uid, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if nodes == nil {
		nodes = []Node{}
	}
	c.JSON(http.StatusOK, nodes)
}

// GetNode handles GET /nodes/:node_id.
func (h Handlers) GetNode(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.Service.Node(c.Request.Context(), uid, c.Param("node_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// CreateNode handles POST /nodes.
func (h Handlers) CreateNode(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in NodeCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	n, err := h.Service.CreateNode(c.Request.Context(), uid, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionNodeCreate, uid, "node", n.ID, h.meta(c),
		nil, map[string]any{"title": n.Title, "description": n.Description})
	c.JSON(http.StatusCreated, n)
}

// UpdateNode handles PUT /nodes/:node_id.
func (h Handlers) UpdateNode(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in NodeUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id := c.Param("node_id")
	old, _ := h.Service.repo.GetNode(c.Request.Context(), id)
	n, err := h.Service.UpdateNode(c.Request.Context(), uid, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionNodeUpdate, uid, "node", id, h.meta(c),
		map[string]any{"title": old.Title, "description": old.Description},
		map[string]any{"title": n.Title, "description": n.Description})
	c.JSON(http.StatusOK, n)
}

// DeleteNode handles DELETE /nodes/:node_id.
func (h Handlers) DeleteNode(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id := c.Param("node_id")
	n, err := h.Service.DeleteNode(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionNodeDelete, uid, "node", id, h.meta(c),
		map[string]any{"title": n.Title, "description": n.Description}, nil)
	c.JSON(http.StatusOK, gin.H{"message": "node deleted"})
}

// ===== Blocks =====

// ListBlocks handles GET /nodes/:node_id/blocks.
func (h Handlers) ListBlocks(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	blocks, err := h.Service.Blocks(c.Request.Context(), uid, c.Param("node_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if blocks == nil {
		blocks = []Block{}
	}
	c.JSON(http.StatusOK, blocks)
}

// GetBlock handles GET /blocks/:block_id.
func (h Handlers) GetBlock(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	b, err := h.Service.Block(c.Request.Context(), uid, c.Param("block_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CreateBlock handles POST /blocks.
func (h Handlers) CreateBlock(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in BlockCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	b, err := h.Service.CreateBlock(c.Request.Context(), uid, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionBlockCreate, uid, "block", b.ID, h.meta(c),
		nil, map[string]any{"title": b.Title, "node_id": b.NodeID})
	c.JSON(http.StatusCreated, b)
}

// UpdateBlock handles PUT /blocks/:block_id.
func (h Handlers) UpdateBlock(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in BlockUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id := c.Param("block_id")
	old, _ := h.Service.repo.GetBlock(c.Request.Context(), id)
	b, err := h.Service.UpdateBlock(c.Request.Context(), uid, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionBlockUpdate, uid, "block", id, h.meta(c),
		map[string]any{"title": old.Title}, map[string]any{"title": b.Title})
	c.JSON(http.StatusOK, b)
}

// DeleteBlock handles DELETE /blocks/:block_id.
func (h Handlers) DeleteBlock(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id := c.Param("block_id")
	b, err := h.Service.DeleteBlock(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionBlockDelete, uid, "block", id, h.meta(c),
		map[string]any{"title": b.Title}, nil)
	c.JSON(http.StatusOK, gin.H{"message": "block deleted"})
}

type reorderRequest struct {
	BlockIDs []string `json:"block_ids" binding:"required"`
}

// ReorderBlocks handles PUT /blocks/reorder.
func (h Handlers) ReorderBlocks(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in reorderRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Service.ReorderBlocks(c.Request.Context(), uid, in.BlockIDs); err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionBlockReorder, uid, "block", "multiple", h.meta(c),
		nil, map[string]any{"block_ids": in.BlockIDs})
	c.JSON(http.StatusOK, gin.H{"message": "blocks reordered"})
}

type setThemeRequest struct {
	ThemeID string `json:"theme_id"`
}

// SetBlockTheme handles PUT /blocks/:block_id/theme. An empty theme_id
// clears the tag.
func (h Handlers) SetBlockTheme(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in setThemeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id := c.Param("block_id")
	b, err := h.Service.SetBlockTheme(c.Request.Context(), uid, id, in.ThemeID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionBlockUpdate, uid, "block", id, h.meta(c),
		nil, map[string]any{"theme_id": b.ThemeID})
	c.JSON(http.StatusOK, gin.H{"message": "theme set"})
}

// ===== Themes =====

// ListThemes handles GET /themes (caller's own themes).
func (h Handlers) ListThemes(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	offset, limit := pagination(c)
	themes, err := h.Service.Themes(c.Request.Context(), uid, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if themes == nil {
		themes = []Theme{}
	}
	c.JSON(http.StatusOK, themes)
}

// ListThemesWithCounts handles GET /themes/counts.
func (h Handlers) ListThemesWithCounts(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	themes, err := h.Service.ThemesWithCount(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if themes == nil {
		themes = []Theme{}
	}
	c.JSON(http.StatusOK, themes)
}

// GetTheme handles GET /themes/:theme_id.
func (h Handlers) GetTheme(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	t, err := h.Service.Theme(c.Request.Context(), uid, c.Param("theme_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ListThemeBlocks handles GET /themes/:theme_id/blocks.
func (h Handlers) ListThemeBlocks(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	blocks, err := h.Service.ThemeBlocks(c.Request.Context(), uid, c.Param("theme_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if blocks == nil {
		blocks = []ThemeBlock{}
	}
	c.JSON(http.StatusOK, blocks)
}

// CreateTheme handles POST /themes.
func (h Handlers) CreateTheme(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in ThemeCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	t, err := h.Service.CreateTheme(c.Request.Context(), uid, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionThemeCreate, uid, "theme", t.ID, h.meta(c),
		nil, map[string]any{"title": t.Title, "description": t.Description})
	c.JSON(http.StatusCreated, t)
}

// UpdateTheme handles PUT /themes/:theme_id.
func (h Handlers) UpdateTheme(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in ThemeUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id := c.Param("theme_id")
	old, _ := h.Service.repo.GetTheme(c.Request.Context(), id)
	t, err := h.Service.UpdateTheme(c.Request.Context(), uid, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionThemeUpdate, uid, "theme", id, h.meta(c),
		map[string]any{"title": old.Title, "description": old.Description},
		map[string]any{"title": t.Title, "description": t.Description})
	c.JSON(http.StatusOK, t)
}

// ===== Activity =====

// Activity handles GET /activity.
func (h Handlers) Activity(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.Service.Activity(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []ActivityItem{}
	}
	c.JSON(http.StatusOK, items)
}
