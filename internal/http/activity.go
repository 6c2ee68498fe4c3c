package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/spinestock/internal/audit"
	"github.com/mrlokans/spinestock/internal/auth"
	"github.com/mrlokans/spinestock/internal/entities"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ActivityResponse is a page of the caller's activity log.
type ActivityResponse struct {
	Events []entities.AuditEvent `json:"events"`
	Total  int64                 `json:"total"`
}

// ActivityController serves /api/users/:uid/activity.
type ActivityController struct {
	audit *audit.Service
}

func NewActivityController(auditLog *audit.Service) *ActivityController {
	return &ActivityController{audit: auditLog}
}

// List returns the newest events first. limit and offset page through the
// log; limit is capped.
func (ac *ActivityController) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultActivityLimit)
	if err != nil || limit <= 0 {
		respondBadRequest(c, "invalid limit")
		return
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		respondBadRequest(c, "invalid offset")
		return
	}

	events, total, err := ac.audit.Events(c.Request.Context(), auth.GetUserID(c), limit, offset)
	if err != nil {
		respondInternalError(c, err, "list activity")
		return
	}
	c.JSON(http.StatusOK, ActivityResponse{Events: events, Total: total})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
