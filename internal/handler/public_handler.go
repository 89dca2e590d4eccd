package handler

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/service"
)

var publicPageTemplate = template.Must(template.New("public_page").Parse(`<!DOCTYPE html>
<html lang="{{ .Locale }}">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
{{ with .Description }}<meta name="description" content="{{ . }}">{{ end }}
</head>
<body>
{{ .Body }}
</body>
</html>
`))

type publicPageView struct {
	Locale      string
	Title       string
	Description string
	Body        template.HTML
}

// RenderPublicPage serves the assembled HTML of a visible page.
func (a *API) RenderPublicPage(c *gin.Context) {
	site, ok := a.mustSite(c)
	if !ok {
		return
	}

	rendered, err := a.composition.RenderPage(c.Request.Context(), site, c.Param("slug"))
	if err != nil {
		svcErr := service.AsError(err)
		if svcErr.Kind == service.KindNotFound {
			c.String(http.StatusNotFound, "page not found")
			return
		}
		a.requestLog(c).WithError(err).Error("failed to render page")
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}

	for _, warning := range rendered.Warnings {
		a.requestLog(c).WithField("page", rendered.Page.Slug).Warn(warning)
	}

	title := rendered.Page.SeoTitle
	if title == "" {
		title = rendered.Page.Title
	}

	var buf bytes.Buffer
	if err := publicPageTemplate.Execute(&buf, publicPageView{
		Locale:      site.Locale,
		Title:       title,
		Description: rendered.Page.MetaDescription,
		Body:        rendered.HTML,
	}); err != nil {
		a.requestLog(c).WithError(err).Error("failed to render page shell")
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
