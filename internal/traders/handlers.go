package traders

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hiiliketocode/polycopy-sub003/internal/auth"
	"github.com/hiiliketocode/polycopy-sub003/pkg/response"
)

// GinHandlers contains HTTP handlers for copied-order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListCopiedOrdersHandler handles GET requests for a user's copied orders.
// Query parameter: limit (optional)
func (h *GinHandlers) ListCopiedOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := clientIDFrom(c)
		if userID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		records, err := h.service.ListCopiedOrders(userID, limit)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{
			"copied_orders": records,
			"count":         len(records),
		})
	}
}

// RefreshCopiedOrdersHandler handles POST requests to reconcile a user's
// open copied orders against the exchange.
func (h *GinHandlers) RefreshCopiedOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := clientIDFrom(c)
		if userID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		summary, err := h.service.RefreshCopiedOrders(c.Request.Context(), userID)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, summary)
	}
}

func clientIDFrom(c *gin.Context) string {
	if id := c.GetString("clientID"); id != "" {
		return id
	}
	claims, exists := c.Get("claims")
	if !exists {
		return ""
	}
	return auth.GetClientID(claims)
}
