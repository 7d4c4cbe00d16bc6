package main

import (
	"database/sql"
	"net/http"
	"time"

	"kagra-platform/internal/admin"
	"kagra-platform/internal/auth"
	"kagra-platform/internal/charaxy"
	"kagra-platform/internal/ratelimit"
	"kagra-platform/internal/rbac"
	"kagra-platform/internal/search"
	"kagra-platform/internal/users"

	"kagra-platform/internal/audit"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type appDeps struct {
	db        *sql.DB
	rdb       *redis.Client
	verifier  *auth.Verifier
	permStore *rbac.SystemPermissionStore

	authH    auth.Handlers
	usersH   users.Handlers
	charaxyH charaxy.Handlers
	adminH   admin.Handlers
	searchH  search.Handlers

	roleLookup auth.RoleLookup
	audit      *audit.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d appDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		ctx := c.Request.Context()
		status := http.StatusOK
		checks := gin.H{"database": "ok", "redis": "ok"}
		if err := d.db.PingContext(ctx); err != nil {
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})

	v1 := r.Group("/api/v1")
	v1.Use(ratelimit.Middleware(d.rdb, ratelimit.Limit{Tag: "api", Requests: 300, Window: time.Minute}, d.audit))

	// authentication (public; login/register get a tighter budget)
	authGroup := v1.Group("/auth")
	authGroup.Use(ratelimit.Middleware(d.rdb, ratelimit.Limit{Tag: "auth", Requests: 20, Window: time.Minute}, d.audit))
	{
		authGroup.POST("/register", d.authH.Register)
		authGroup.POST("/login", d.authH.Login)
		authGroup.POST("/logout", d.authH.Logout)
		authGroup.POST("/refresh", d.authH.Refresh)
		authGroup.GET("/me", d.authH.Me)
	}

	// everything below requires a verified bearer token
	authed := v1.Group("")
	authed.Use(auth.RequireUser(d.verifier, d.roleLookup))

	usersGroup := authed.Group("/users")
	{
		usersGroup.GET("/me", d.usersH.Me)
		usersGroup.PUT("/me", d.usersH.UpdateMe)
		usersGroup.GET("/me/permissions", d.usersH.MyPermissions)
		usersGroup.GET("", rbac.RequirePermission(rbac.PermUserRead), d.usersH.List)
		usersGroup.GET("/:user_id", rbac.RequirePermission(rbac.PermUserRead), d.usersH.Get)
	}

	nodes := authed.Group("/nodes")
	{
		nodes.GET("", rbac.RequirePermission(rbac.PermNodeRead), d.charaxyH.ListNodes)
		nodes.POST("", rbac.RequirePermission(rbac.PermNodeCreate), d.charaxyH.CreateNode)
		nodes.GET("/:node_id", rbac.RequirePermission(rbac.PermNodeRead), d.charaxyH.GetNode)
		nodes.PUT("/:node_id", rbac.RequirePermission(rbac.PermNodeUpdate), d.charaxyH.UpdateNode)
		nodes.DELETE("/:node_id", rbac.RequirePermission(rbac.PermNodeDelete), d.charaxyH.DeleteNode)
		nodes.GET("/:node_id/blocks", rbac.RequirePermission(rbac.PermBlockRead), d.charaxyH.ListBlocks)
	}

	blocks := authed.Group("/blocks")
	{
		blocks.POST("", rbac.RequirePermission(rbac.PermBlockCreate), d.charaxyH.CreateBlock)
		blocks.PUT("/reorder", rbac.RequirePermission(rbac.PermBlockUpdate), d.charaxyH.ReorderBlocks)
		blocks.GET("/:block_id", rbac.RequirePermission(rbac.PermBlockRead), d.charaxyH.GetBlock)
		blocks.PUT("/:block_id", rbac.RequirePermission(rbac.PermBlockUpdate), d.charaxyH.UpdateBlock)
		blocks.DELETE("/:block_id", rbac.RequirePermission(rbac.PermBlockDelete), d.charaxyH.DeleteBlock)
		blocks.PUT("/:block_id/theme", rbac.RequirePermission(rbac.PermBlockUpdate), d.charaxyH.SetBlockTheme)
	}

	themes := authed.Group("/themes")
	{
		themes.GET("", rbac.RequirePermission(rbac.PermThemeRead), d.charaxyH.ListThemes)
		themes.POST("", rbac.RequirePermission(rbac.PermThemeCreate), d.charaxyH.CreateTheme)
		themes.GET("/counts", rbac.RequirePermission(rbac.PermThemeRead), d.charaxyH.ListThemesWithCounts)
		themes.GET("/:theme_id", rbac.RequirePermission(rbac.PermThemeRead), d.charaxyH.GetTheme)
		themes.PUT("/:theme_id", rbac.RequirePermission(rbac.PermThemeUpdate), d.charaxyH.UpdateTheme)
		themes.GET("/:theme_id/blocks", rbac.RequirePermission(rbac.PermThemeRead), d.charaxyH.ListThemeBlocks)
	}

	authed.GET("/activity", rbac.RequirePermission(rbac.PermBlockRead), d.charaxyH.Activity)

	authed.GET("/search",
		ratelimit.Middleware(d.rdb, ratelimit.Limit{Tag: "search", Requests: 60, Window: time.Minute}, d.audit),
		d.searchH.Search)

	// system administration: a database grant, not a role string, opens this
	adminGroup := authed.Group("/admin/system")
	adminGroup.Use(rbac.RequireSystemAdmin(d.permStore))
	{
		adminGroup.GET("/users", d.adminH.ListUsers)
		adminGroup.GET("/users/:user_id/permissions", d.adminH.UserPermissions)
		adminGroup.POST("/users/:user_id/permissions/admin", d.adminH.GrantAdmin)
		adminGroup.DELETE("/users/:user_id/permissions/admin", d.adminH.RevokeAdmin)
	}
}
