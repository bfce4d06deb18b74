// internal/api/handlers/forecast_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordercast/ordercast/internal/domain"
	"github.com/ordercast/ordercast/internal/service"
)

type ForecastHandler struct {
	service *service.ForecastService
}

func NewForecastHandler(service *service.ForecastService) *ForecastHandler {
	return &ForecastHandler{service: service}
}

// Calculate runs the forecast for one store and returns order
// recommendations grouped by supplier.
func (h *ForecastHandler) Calculate(c *gin.Context) {
	var req service.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	result, err := h.service.Calculate(c.Request.Context(), req)
	if err != nil {
		var parseErr *time.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to calculate forecast", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProduct returns the diagnostic view for one product: statistics,
// sales history and learned parameters.
func (h *ForecastHandler) GetProduct(c *gin.Context) {
	storeID, ok := parseStoreID(c)
	if !ok {
		return
	}
	productID := c.Param("productId")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	detail, err := h.service.ProductDetail(c.Request.Context(), storeID, productID, days)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch product detail", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetAccuracy returns recent evaluation records for a store.
func (h *ForecastHandler) GetAccuracy(c *gin.Context) {
	storeID, ok := parseStoreID(c)
	if !ok {
		return
	}
	productID := strings.TrimSpace(c.Query("product_id"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	records, err := h.service.Accuracy(c.Request.Context(), storeID, productID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch accuracy records", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

// GetParams returns the learned per-product parameters for a store.
func (h *ForecastHandler) GetParams(c *gin.Context) {
	storeID, ok := parseStoreID(c)
	if !ok {
		return
	}

	params, err := h.service.Params(c.Request.Context(), storeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch forecast params", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"params": params,
		"total":  len(params),
	})
}

// GetStores returns all known stores.
func (h *ForecastHandler) GetStores(c *gin.Context) {
	stores, err := h.service.Stores(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stores", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

func parseStoreID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Query("store_id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "store_id is required"})
		return 0, false
	}

	return id, true
}
