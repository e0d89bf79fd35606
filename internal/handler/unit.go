package handler

import (
	"net/http"
	"strconv"

	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/service"
	"github.com/gin-gonic/gin"
)

const maxUnitLimit = 1000

type UnitHandler struct {
	svc *service.AuditService
}

func NewUnitHandler(svc *service.AuditService) *UnitHandler {
	return &UnitHandler{svc: svc}
}

// List returns unit records newest first. ?chamber= filters, ?limit= caps the page.
func (h *UnitHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxUnitLimit)
	}

	records, err := h.svc.List(c.Request.Context(), c.Query("chamber"), limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, records)
}
