package orders

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hiiliketocode/polycopy-sub003/internal/auth"
	"github.com/hiiliketocode/polycopy-sub003/internal/types"
	"github.com/hiiliketocode/polycopy-sub003/pkg/response"
)

// GinHandlers contains HTTP handlers for order placement endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceOrderHandler handles POST requests to place orders.
// Requires a valid JWT token; the token's client id owns the order.
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := clientIDFrom(c)
		if userID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		var req types.PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		ctx := WithRequestID(c.Request.Context(), uuid.New().String())
		result, err := h.service.PlaceOrder(ctx, userID, &req)
		if err != nil {
			writePlacementError(c, err)
			return
		}

		c.JSON(placementStatus(result), result)
	}
}

// GetOrderIntentHandler handles GET requests for an intent and its audit
// event. URL parameter: intent_id
func (h *GinHandlers) GetOrderIntentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := clientIDFrom(c)
		if userID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		intentID := c.Param("intent_id")
		if intentID == "" {
			response.BadRequest(c, "Intent ID is required")
			return
		}

		intent, event, err := h.service.GetIntent(intentID, userID)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if intent == nil {
			response.NotFound(c, "Order intent not found")
			return
		}

		response.Success(c, gin.H{
			"intent": intent,
			"event":  event,
		})
	}
}

func writePlacementError(c *gin.Context, err error) {
	var vf *ValidationFailure
	if errors.As(err, &vf) {
		response.ValidationFailed(c, vf.Errors)
		return
	}

	var pf *PreconditionFailure
	if errors.As(err, &pf) {
		if pf.Unavailable {
			response.ServiceUnavailable(c, pf.Message)
			return
		}
		response.BadRequest(c, pf.Message)
		return
	}

	switch {
	case errors.Is(err, ErrDuplicateInFlight):
		response.TooManyRequests(c, err.Error(), 2)
	case errors.Is(err, ErrIntentConflict):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, "An unexpected error occurred")
	}
}

// placementStatus maps a terminal result onto an HTTP status. Replays keep
// their original payload but come back 200; edge blocks are 502 by
// convention since the order never reached the exchange application.
func placementStatus(result *types.PlaceOrderResult) int {
	if result.Idempotent {
		return http.StatusOK
	}
	if result.OK {
		return http.StatusCreated
	}
	if result.BlockedByCloudflare {
		return http.StatusBadGateway
	}
	if result.ErrorType == ErrTypeNetwork {
		return http.StatusBadGateway
	}
	if result.UpstreamStatus >= 400 {
		return result.UpstreamStatus
	}
	return http.StatusBadGateway
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
