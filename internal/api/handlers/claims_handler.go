package handlers

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/services"
	"example.com/coverlane/services/claims/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ClaimsHandler handles wallet-facing claim HTTP requests
type ClaimsHandler struct {
	claimsService *services.ClaimsService
	tracer        tracing.Tracer
	limits        claims.UploadLimits
}

// NewClaimsHandler creates a new claims handler
func NewClaimsHandler(claimsService *services.ClaimsService, tracer tracing.Tracer, limits claims.UploadLimits) *ClaimsHandler {
	return &ClaimsHandler{
		claimsService: claimsService,
		tracer:        tracer,
		limits:        limits,
	}
}

// HandleSubmitClaim accepts a multipart claim submission with up to the
// configured number of document files
func (h *ClaimsHandler) HandleSubmitClaim(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-submit-claim")
	defer h.tracer.EndTransaction(txn)

	form, err := c.MultipartForm()
	if err != nil {
		log.Error().Err(err).Msg("Invalid multipart form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		h.tracer.RecordError(txn, err)
		return
	}

	submission := &claims.Submission{
		WalletAddress: c.PostForm("wallet_address"),
		PolicyType:    c.PostForm("policy_type"),
		Description:   c.PostForm("description"),
		IncidentDate:  c.PostForm("incident_date"),
	}
	if raw := c.PostForm("policy_id"); raw != "" {
		policyID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "policy_id must be a positive integer"})
			return
		}
		submission.PolicyID = uint(policyID)
	}
	if raw := c.PostForm("claim_amount"); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "claim_amount must be a number"})
			return
		}
		submission.ClaimAmount = amount
	}

	h.tracer.AddAttribute(txn, "wallet", submission.WalletAddress)
	h.tracer.AddAttribute(txn, "policy_type", submission.PolicyType)

	// Reject oversized or surplus files before buffering their content
	files := form.File["documents"]
	if len(files) > h.limits.MaxFiles {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many files"})
		return
	}
	for _, fileHeader := range files {
		if fileHeader.Size > h.limits.MaxFileSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file " + fileHeader.Filename + " exceeds the maximum size"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			log.Error().Err(err).Str("file_name", fileHeader.Filename).Msg("Failed to open uploaded file")
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
			h.tracer.RecordError(txn, err)
			return
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			log.Error().Err(err).Str("file_name", fileHeader.Filename).Msg("Failed to read uploaded file")
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
			h.tracer.RecordError(txn, err)
			return
		}

		submission.Attachments = append(submission.Attachments, claims.Attachment{
			FileName: fileHeader.Filename,
			Content:  content,
			MimeType: fileHeader.Header.Get("Content-Type"),
		})
	}

	result, err := h.claimsService.SubmitClaim(c, submission)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Claim submitted successfully",
		"claim":   result,
	})
}

// HandleListClaims returns one page of a wallet's claims
func (h *ClaimsHandler) HandleListClaims(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-claims")
	defer h.tracer.EndTransaction(txn)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	status := c.DefaultQuery("status", "all")

	result, err := h.claimsService.ListClaims(c, c.Param("wallet_address"), page, limit, status)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleClaimStatus returns one claim with its processing timeline
func (h *ClaimsHandler) HandleClaimStatus(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-claim-status")
	defer h.tracer.EndTransaction(txn)

	result, err := h.claimsService.GetClaimStatus(c, c.Param("claim_id"), c.Query("wallet_address"))
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UploadDocumentRequest is a supplementary document upload
type UploadDocumentRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	DocumentType  string `json:"document_type" binding:"required"`
	FileName      string `json:"file_name" binding:"required"`
	FileData      string `json:"file_data" binding:"required"`
	MimeType      string `json:"mime_type" binding:"required"`
}

// HandleUploadDocument attaches one more document to an existing claim
func (h *ClaimsHandler) HandleUploadDocument(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-upload-document")
	defer h.tracer.EndTransaction(txn)

	var req UploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.FileData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_data must be base64 encoded"})
		return
	}

	result, err := h.claimsService.UploadDocument(c, c.Param("claim_id"), req.WalletAddress, req.DocumentType, req.FileName, content, req.MimeType)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  "Document uploaded successfully",
		"document": result,
	})
}

// RegisterRoutes registers the handler's routes
func (h *ClaimsHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.POST("/claims", h.HandleSubmitClaim)
	v1.GET("/claims/:claim_id/status", h.HandleClaimStatus)
	v1.POST("/claims/:claim_id/documents", h.HandleUploadDocument)
	v1.GET("/wallets/:wallet_address/claims", h.HandleListClaims)
}
