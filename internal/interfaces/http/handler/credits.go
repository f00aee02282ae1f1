package handler

import (
	creditsapp "github.com/auton8n/backend/internal/application/credits"
	"github.com/auton8n/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CreditsHandler handles credit balance and ledger endpoints
type CreditsHandler struct {
	BaseHandler
	ledgerService   *creditsapp.LedgerService
	checkoutService *creditsapp.CheckoutService
}

// NewCreditsHandler creates a new CreditsHandler
func NewCreditsHandler(ledgerService *creditsapp.LedgerService, checkoutService *creditsapp.CheckoutService) *CreditsHandler {
	return &CreditsHandler{
		ledgerService:   ledgerService,
		checkoutService: checkoutService,
	}
}

// GetBalance returns the caller's current credit balance. First contact
// creates the account with the starting grant.
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balance)
}

// ListPackages returns the purchasable credit packages. The catalog is
// server-side only; clients never submit prices.
func (h *CreditsHandler) ListPackages(c *gin.Context) {
	h.Success(c, h.checkoutService.ListPackages())
}

// ListTransactions returns the caller's ledger entries, newest first
func (h *CreditsHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	transactions, total, err := h.ledgerService.ListTransactions(c.Request.Context(), userID, req.PageSize, req.Offset())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, transactions, total, req.Page, req.PageSize)
}

// ListPurchases returns the caller's purchase history, newest first
func (h *CreditsHandler) ListPurchases(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	purchases, total, err := h.checkoutService.ListPurchases(c.Request.Context(), userID, req.PageSize, req.Offset())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, purchases, total, req.Page, req.PageSize)
}
