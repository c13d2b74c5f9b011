package handlers

import (
	"net/http"
	"strconv"

	"example.com/coverlane/services/claims/internal/api/middleware"
	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/services"
	"example.com/coverlane/services/claims/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminHandler handles admin review HTTP requests
type AdminHandler struct {
	claimsService *services.ClaimsService
	tracer        tracing.Tracer
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(claimsService *services.ClaimsService, tracer tracing.Tracer) *AdminHandler {
	return &AdminHandler{
		claimsService: claimsService,
		tracer:        tracer,
	}
}

// UpdateStatusRequest is an admin review decision
type UpdateStatusRequest struct {
	Status       string   `json:"status" binding:"required"`
	AdminNotes   *string  `json:"admin_notes"`
	PayoutAmount *float64 `json:"payout_amount"`
}

// HandleUpdateStatus applies a review decision to a claim
func (h *AdminHandler) HandleUpdateStatus(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-admin-update-status")
	defer h.tracer.EndTransaction(txn)

	adminID, ok := middleware.AdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin identity missing"})
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	claimID := c.Param("claim_id")
	h.tracer.AddAttribute(txn, "claim_id", claimID)
	h.tracer.AddAttribute(txn, "status", req.Status)

	err := h.claimsService.UpdateClaimStatus(c, adminID, claimID, services.StatusUpdate{
		Status:       claims.Status(req.Status),
		AdminNotes:   req.AdminNotes,
		PayoutAmount: req.PayoutAmount,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Claim status updated successfully",
	})
}

// ProcessPaymentRequest records a completed payout
type ProcessPaymentRequest struct {
	PayoutAmount   float64 `json:"payout_amount" binding:"required"`
	PaymentMethod  string  `json:"payment_method"`
	TransactionRef string  `json:"transaction_ref"`
}

// HandleProcessPayment marks a claim as paid
func (h *AdminHandler) HandleProcessPayment(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-admin-process-payment")
	defer h.tracer.EndTransaction(txn)

	adminID, ok := middleware.AdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin identity missing"})
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	err := h.claimsService.ProcessClaimPayment(c, adminID, c.Param("claim_id"), services.PaymentRequest{
		PayoutAmount:   req.PayoutAmount,
		PaymentMethod:  req.PaymentMethod,
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment processed successfully",
	})
}

// HandleListAllClaims returns one page of claims across every wallet
func (h *AdminHandler) HandleListAllClaims(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-admin-list-claims")
	defer h.tracer.EndTransaction(txn)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	status := c.DefaultQuery("status", "all")
	policyType := c.DefaultQuery("policy_type", "all")

	result, err := h.claimsService.ListAllClaims(c, status, policyType, page, limit)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleClaimDetails returns the full claim record for review
func (h *AdminHandler) HandleClaimDetails(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-admin-claim-details")
	defer h.tracer.EndTransaction(txn)

	detail, err := h.claimsService.GetClaimDetails(c, c.Param("claim_id"))
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// HandleSearchClaims runs a free-text query against the claim search index
func (h *AdminHandler) HandleSearchClaims(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-admin-search-claims")
	defer h.tracer.EndTransaction(txn)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	results, err := h.claimsService.SearchClaims(c, c.Query("q"), limit)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// HandleStatistics returns aggregate claim statistics
func (h *AdminHandler) HandleStatistics(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-admin-statistics")
	defer h.tracer.EndTransaction(txn)

	stats, err := h.claimsService.GetStatistics(c)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers the handler's routes behind the admin auth
// middleware
func (h *AdminHandler) RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	admin := router.Group("/api/v1/admin", auth)
	admin.GET("/claims", h.HandleListAllClaims)
	admin.PATCH("/claims/:claim_id/status", h.HandleUpdateStatus)
	admin.POST("/claims/:claim_id/payment", h.HandleProcessPayment)
	admin.GET("/claims/:claim_id", h.HandleClaimDetails)
	admin.GET("/search", h.HandleSearchClaims)
	admin.GET("/statistics", h.HandleStatistics)
}
