package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pagewright/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	websiteHeader       = "X-Website"
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "__request_id"
	siteContextKey      = "__site"
)

// RequestID assigns every request an id, reusing a well-formed incoming one.
func (a *API) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func (a *API) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := a.requestLog(c).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"duration": time.Since(start).String(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

// SiteMiddleware resolves the website and locale of a request into a
// service.Site shared by every handler down the chain.
func (a *API) SiteMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := strings.TrimSpace(c.GetHeader(websiteHeader))
		if slug == "" {
			slug = a.defaultWebsite
		}
		if slug == "" {
			respondCode(c, http.StatusBadRequest, "website_required", "no website given")
			c.Abort()
			return
		}

		website, err := a.websites.GetBySlug(c.Request.Context(), slug)
		if err != nil {
			a.respondServiceError(c, err)
			c.Abort()
			return
		}

		site := service.NewSite(website.ID, a.requestLocale(c, website))
		site.RequestID = c.GetString(requestIDContextKey)
		c.Set(siteContextKey, site)

		c.Header("Content-Language", site.Locale)
		appendVaryHeader(c, "Accept-Language", "Cookie", websiteHeader)
		c.Next()
	}
}

func siteFrom(c *gin.Context) (*service.Site, bool) {
	value, ok := c.Get(siteContextKey)
	if !ok {
		return nil, false
	}
	site, ok := value.(*service.Site)
	return site, ok
}

// mustSite returns the request's site or answers 500 when the middleware
// did not run.
func (a *API) mustSite(c *gin.Context) (*service.Site, bool) {
	site, ok := siteFrom(c)
	if !ok {
		respondCode(c, http.StatusInternalServerError, "internal_error", "website not resolved")
		return nil, false
	}
	return site, true
}
