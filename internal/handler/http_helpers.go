package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/service"
	"github.com/sirupsen/logrus"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondCode(c, http.StatusBadRequest, "bad_request", message)
		return false
	}
	return true
}

func respondCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": message, "code": code})
}

var statusByKind = map[service.ErrorKind]int{
	service.KindNotFound:   http.StatusNotFound,
	service.KindValidation: http.StatusUnprocessableEntity,
	service.KindBadRequest: http.StatusBadRequest,
	service.KindConflict:   http.StatusConflict,
	service.KindInternal:   http.StatusInternalServerError,
}

// respondServiceError writes err as {"error", "code", ...details}. Causes of
// internal errors are logged and never sent to the client.
func (a *API) respondServiceError(c *gin.Context, err error) {
	svcErr := service.AsError(err)
	status, ok := statusByKind[svcErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		a.requestLog(c).WithError(err).Error("request failed")
		c.Error(err)
	}

	body := gin.H{"error": svcErr.Message, "code": svcErr.Code}
	for key, value := range svcErr.Details {
		body[key] = value
	}
	if len(svcErr.Fields) > 0 {
		body["fields"] = svcErr.Fields
	}
	c.JSON(status, body)
}

func (a *API) requestLog(c *gin.Context) logrus.FieldLogger {
	entry := a.log.WithField("request_id", c.GetString(requestIDContextKey))
	if site, ok := siteFrom(c); ok {
		entry = entry.WithField("website_id", site.WebsiteID)
	}
	return entry
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func queryBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(c.Query(key))
	return err == nil && value
}
