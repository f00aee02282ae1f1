package handler

import (
	creditsapp "github.com/auton8n/backend/internal/application/credits"
	"github.com/auton8n/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// CheckoutHandler handles credit purchase endpoints
type CheckoutHandler struct {
	BaseHandler
	checkoutService *creditsapp.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService *creditsapp.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

// CreateCheckoutRequest selects a package to purchase. Only the package
// ID crosses the wire; credits and price come from the server catalog.
type CreateCheckoutRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

// VerifyCheckoutRequest identifies the checkout session to verify
type VerifyCheckoutRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// CreateCheckout creates a pending purchase and a provider checkout
// session, returning the URL the client should redirect to
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	checkout, err := h.checkoutService.CreateCheckout(c.Request.Context(), userID, req.PackageID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, checkout)
}

// VerifyCheckout verifies a checkout session against the payment
// provider and settles it. Safe to call repeatedly; a settled session
// is reported as completed without crediting again.
func (h *CheckoutHandler) VerifyCheckout(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	var req VerifyCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.checkoutService.VerifyCheckout(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
