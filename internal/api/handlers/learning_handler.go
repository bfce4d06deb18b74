package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordercast/ordercast/internal/service"
)

type LearningHandler struct {
	service *service.LearningService
}

func NewLearningHandler(service *service.LearningService) *LearningHandler {
	return &LearningHandler{service: service}
}

// Evaluate scores all unevaluated snapshots whose period has elapsed.
func (h *LearningHandler) Evaluate(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}

	report, err := h.service.EvaluateForecasts(c.Request.Context(), asOf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evaluate forecasts", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Run executes one parameter-learning cycle over all active products.
func (h *LearningHandler) Run(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}

	report, err := h.service.LearnParameters(c.Request.Context(), asOf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to run learning", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// parseAsOf reads the optional as_of query parameter; a zero time means
// the service should anchor on now.
func parseAsOf(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("as_of"))
	if raw == "" {
		return time.Time{}, true
	}

	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of, expected YYYY-MM-DD"})
		return time.Time{}, false
	}

	return t, true
}
