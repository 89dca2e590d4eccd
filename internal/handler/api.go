package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/locale"
	"github.com/pagewright/internal/parts"
	"github.com/pagewright/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options configures an API.
type Options struct {
	// DefaultWebsite is the website slug used when a request names none.
	DefaultWebsite string
	DefaultLocale  string
	Log            logrus.FieldLogger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db             *gorm.DB
	registry       *parts.Registry
	websites       *service.WebsiteService
	settings       *service.WebsiteSettingService
	pages          *service.PageService
	parts          *service.PagePartService
	composition    *service.CompositionService
	defaultWebsite string
	defaultLocale  string
	log            logrus.FieldLogger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, registry *parts.Registry, opts Options) *API {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	defaultLocale := locale.Normalize(opts.DefaultLocale)
	if defaultLocale == "" {
		defaultLocale = locale.Fallback
	}

	services := service.NewServices(db, registry, defaultLocale, opts.Log)

	return &API{
		db:             db,
		registry:       registry,
		websites:       services.Websites,
		settings:       services.Settings,
		pages:          services.Pages,
		parts:          services.Parts,
		composition:    services.Composition,
		defaultWebsite: strings.TrimSpace(opts.DefaultWebsite),
		defaultLocale:  defaultLocale,
		log:            opts.Log,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Registry exposes the part catalogue.
func (a *API) Registry() *parts.Registry {
	return a.registry
}

// Ping answers health checks.
func (a *API) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}
