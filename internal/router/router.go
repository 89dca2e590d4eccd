package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/handler"
	"github.com/pagewright/internal/metrics"
)

const sessionName = "pagewright_session"

// SetupRouter 配置 Gin 引擎和路由；secureCookies 仅在 HTTPS 部署下开启
func SetupRouter(api *handler.API, sessionSecret string, secureCookies bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestID(), metrics.Middleware(), api.RequestLogger())

	// 配置会话中间件
	if strings.TrimSpace(sessionSecret) == "" {
		sessionSecret = "pagewright-dev-secret"
	}
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", api.Ping)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 以下路由均需要解析站点与语言
	site := r.Group("")
	site.Use(api.SiteMiddleware())
	{
		site.GET("/p/:slug", api.RenderPublicPage)

		editor := site.Group("/api")
		{
			editor.GET("/pages/:slug/parts", api.GetPageParts)
			editor.PUT("/pages/:slug/blocks", api.UpdateBlocks)
			editor.POST("/pages/:slug/reorder", api.ReorderParts)
			editor.POST("/pages/:slug/placements/reorder", api.ReorderPlacements)
			editor.POST("/pages/:slug/placements", api.AddPlacement)
			editor.PATCH("/pages/:slug/visibility", api.SetVisibility)
			editor.DELETE("/placements/:id", api.DeletePlacement)

			editor.GET("/parts", api.ListEditorParts)
			editor.POST("/parts/reorder", api.ReorderEditorParts)

			editor.PUT("/session/locale", api.UpdateSessionLocale)
		}
	}

	return r
}
