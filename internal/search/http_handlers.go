package search

import (
	"errors"
	"net/http"
	"strconv"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/internal/charaxy"
	"kagra-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers exposes full-text search across the caller's visible nodes
// and blocks.
type Handlers struct {
	Charaxy *charaxy.Service
	Audit   *audit.Service
}

// Search handles GET /search?q=...&limit=...
func (h Handlers) Search(c *gin.Context) {
	ctx := c.Request.Context()

	uid, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	query := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	res, err := h.Charaxy.Search(ctx, uid, query, limit)
	if err != nil {
		if errors.Is(err, charaxy.ErrInvalidInput) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
			return
		}
		logger.FromGin(c).Error("search failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	meta := audit.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	h.Audit.LogResourceAction(ctx, audit.ActionSearch, uid, "search", "", meta,
		nil, map[string]any{"query": query, "results": len(res.Nodes) + len(res.Blocks)})
	c.JSON(http.StatusOK, gin.H{
		"query":  query,
		"nodes":  res.Nodes,
		"blocks": res.Blocks,
		"total":  len(res.Nodes) + len(res.Blocks),
	})
}
