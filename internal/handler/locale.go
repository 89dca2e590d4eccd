package handler

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/locale"
)

const (
	localeQueryKey   = "locale"
	sessionLocaleKey = "editor_locale"
)

// requestLocale picks the locale of a request: the locale query parameter,
// the editor session, Accept-Language against the website's supported
// locales, then the website default.
func (a *API) requestLocale(c *gin.Context, website *db.Website) string {
	if override := locale.Normalize(c.Query(localeQueryKey)); override != "" {
		return override
	}
	if stored := sessionLocale(c); stored != "" {
		return stored
	}

	settings, err := a.settings.Locales(c.Request.Context(), website)
	if err != nil {
		c.Error(err)
		return a.defaultLocale
	}
	if negotiated := locale.Negotiate(c.GetHeader("Accept-Language"), settings.SupportedLocales); negotiated != "" {
		return negotiated
	}
	return settings.DefaultLocale
}

// sessionLocale reads the editor locale; requests without a session store
// simply have none.
func sessionLocale(c *gin.Context) string {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	value, _ := sessions.Default(c).Get(sessionLocaleKey).(string)
	return locale.Normalize(value)
}

type sessionLocalePayload struct {
	Locale string `json:"locale"`
}

// UpdateSessionLocale stores the locale the editor works in.
func (a *API) UpdateSessionLocale(c *gin.Context) {
	var payload sessionLocalePayload
	if !bindJSON(c, &payload, "invalid locale payload") {
		return
	}

	normalized := locale.Normalize(payload.Locale)
	if normalized == "" {
		respondCode(c, http.StatusBadRequest, "locale_required", "locale is required")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionLocaleKey, normalized)
	if err := session.Save(); err != nil {
		a.requestLog(c).WithError(err).Error("failed to save session")
		respondCode(c, http.StatusInternalServerError, "internal_error", "failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"locale": normalized})
}

func appendVaryHeader(c *gin.Context, headers ...string) {
	existing := c.Writer.Header().Get("Vary")
	seen := make(map[string]struct{})
	order := make([]string, 0, len(headers))
	for _, token := range append(strings.Split(existing, ","), headers...) {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		order = append(order, trimmed)
	}
	if len(order) > 0 {
		c.Header("Vary", strings.Join(order, ", "))
	}
}
