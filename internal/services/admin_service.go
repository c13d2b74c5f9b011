package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/coverlane/services/claims/internal/cache"
	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/messaging"
	"example.com/coverlane/services/claims/internal/models"
	"example.com/coverlane/services/claims/internal/repositories"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StatusUpdate is an admin review decision applied to a claim
type StatusUpdate struct {
	Status       claims.Status
	AdminNotes   *string
	PayoutAmount *float64
}

// UpdateClaimStatus applies an admin review decision. The transition is
// validated against the claim lifecycle and applied with a conditional
// update, so two admins racing on the same claim cannot both win: the loser
// gets ErrConflict.
func (s *ClaimsService) UpdateClaimStatus(ctx context.Context, adminID uuid.UUID, claimID string, update StatusUpdate) error {
	start := time.Now()
	txn := s.tracer.StartTransaction("update-claim-status")
	defer s.tracer.EndTransaction(txn)

	if claimID == "" {
		return claims.NewValidationError("claim id is required")
	}
	if !update.Status.ValidTarget() {
		return claims.NewValidationError("invalid target status %q", update.Status)
	}
	if update.PayoutAmount != nil && *update.PayoutAmount <= 0 {
		return claims.NewValidationError("payout amount must be positive")
	}

	claim, err := s.claimRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return claims.ErrClaimNotFound
		}
		return errors.Wrap(err, "failed to get claim")
	}

	from := claims.Status(claim.Status)
	if !claims.CanTransition(from, update.Status) {
		s.metrics.RecordError("update_claim_status")
		return errors.Wrapf(claims.ErrInvalidTransition, "cannot transition claim %s from %s to %s", claimID, from, update.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      string(update.Status),
		"reviewed_by": adminID,
		"reviewed_at": now,
		"admin_notes": update.AdminNotes,
	}
	if update.PayoutAmount != nil && update.Status.PayoutEligible() {
		updates["payout_amount"] = *update.PayoutAmount
	}
	if update.Status == claims.StatusPaid {
		updates["payout_date"] = now
	}

	ok, err := s.claimRepo.TransitionStatus(ctx, claimID, from, updates)
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("update_claim_status")
		return errors.Wrap(err, "failed to update claim status")
	}
	if !ok {
		// Someone else moved the claim between our read and our write
		s.metrics.RecordError("update_claim_status")
		return errors.Wrapf(claims.ErrConflict, "claim %s is no longer in status %s", claimID, from)
	}

	s.notifyBestEffort(ctx, claim.WalletAddress, "status_update", "Claim Status Updated",
		statusNotificationMessage(claimID, update))

	s.recordAdminAction(ctx, adminID, "update_claim_status", claimID, map[string]interface{}{
		"from_status":   string(from),
		"to_status":     string(update.Status),
		"admin_notes":   update.AdminNotes,
		"payout_amount": update.PayoutAmount,
	})

	s.invalidateStatistics(ctx)

	s.publishEvent(ctx, messaging.ClaimEvent{
		Type:          messaging.EventStatusChanged,
		ClaimID:       claimID,
		WalletAddress: claim.WalletAddress,
		PolicyType:    claim.PolicyType,
		Status:        string(update.Status),
		OccurredAt:    time.Now().UTC(),
	})
	s.reindexBestEffort(ctx, claimID)

	s.metrics.RecordSuccess("update_claim_status")
	s.metrics.IncrementCounter("claim_status_updates")
	s.metrics.RecordTimer("update_claim_status", time.Since(start).Milliseconds())

	log.Info().
		Str("claim_id", claimID).
		Str("admin_id", adminID.String()).
		Str("from", string(from)).
		Str("to", string(update.Status)).
		Msg("Claim status updated")

	return nil
}

// PaymentRequest records a completed payout for a claim
type PaymentRequest struct {
	PayoutAmount   float64
	PaymentMethod  string
	TransactionRef string
}

// ProcessClaimPayment marks a claim as paid and records the payout. Only
// approved or processing_payment claims are eligible; payment method and
// transaction reference are kept in the audit trail, not on the claim.
func (s *ClaimsService) ProcessClaimPayment(ctx context.Context, adminID uuid.UUID, claimID string, payment PaymentRequest) error {
	start := time.Now()
	txn := s.tracer.StartTransaction("process-claim-payment")
	defer s.tracer.EndTransaction(txn)

	if claimID == "" {
		return claims.NewValidationError("claim id is required")
	}
	if payment.PayoutAmount <= 0 {
		return claims.NewValidationError("payout amount must be positive")
	}

	claim, err := s.claimRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return claims.ErrClaimNotFound
		}
		return errors.Wrap(err, "failed to get claim")
	}

	from := claims.Status(claim.Status)
	if from != claims.StatusApproved && from != claims.StatusProcessingPayment {
		s.metrics.RecordError("process_payment")
		return errors.Wrapf(claims.ErrInvalidTransition, "cannot pay claim %s in status %s", claimID, from)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        string(claims.StatusPaid),
		"payout_amount": payment.PayoutAmount,
		"payout_date":   now,
		"reviewed_by":   adminID,
		"reviewed_at":   now,
	}

	ok, err := s.claimRepo.TransitionStatus(ctx, claimID, from, updates)
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("process_payment")
		return errors.Wrap(err, "failed to record claim payment")
	}
	if !ok {
		s.metrics.RecordError("process_payment")
		return errors.Wrapf(claims.ErrConflict, "claim %s is no longer in status %s", claimID, from)
	}

	s.notifyBestEffort(ctx, claim.WalletAddress, "payment_processed", "Payment Processed",
		fmt.Sprintf("Your claim %s has been paid. Amount: $%.2f", claimID, payment.PayoutAmount))

	s.recordAdminAction(ctx, adminID, "process_payment", claimID, map[string]interface{}{
		"payout_amount":   payment.PayoutAmount,
		"payment_method":  payment.PaymentMethod,
		"transaction_ref": payment.TransactionRef,
	})

	s.invalidateStatistics(ctx)

	s.publishEvent(ctx, messaging.ClaimEvent{
		Type:          messaging.EventPaymentProcessed,
		ClaimID:       claimID,
		WalletAddress: claim.WalletAddress,
		PolicyType:    claim.PolicyType,
		Status:        string(claims.StatusPaid),
		OccurredAt:    time.Now().UTC(),
	})
	s.reindexBestEffort(ctx, claimID)

	s.metrics.RecordSuccess("process_payment")
	s.metrics.IncrementCounter("payments_processed")
	s.metrics.RecordTimer("process_payment", time.Since(start).Milliseconds())

	log.Info().
		Str("claim_id", claimID).
		Str("admin_id", adminID.String()).
		Float64("payout_amount", payment.PayoutAmount).
		Msg("Claim payment processed")

	return nil
}

// DocumentInfo is an admin's view of one attached document, with the inline
// data URL used by the review UI
type DocumentInfo struct {
	ID            uuid.UUID `json:"id"`
	DocumentType  string    `json:"document_type"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	FormattedSize string    `json:"formatted_size"`
	MimeType      string    `json:"mime_type"`
	UploadedBy    string    `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
	IsImage       bool      `json:"is_image"`
	IsPDF         bool      `json:"is_pdf"`
	DownloadURL   string    `json:"download_url"`
}

// AdminClaimDetail is the full admin review view of one claim
type AdminClaimDetail struct {
	Claim           models.Claim   `json:"claim"`
	FormattedWallet string         `json:"formatted_wallet"`
	FormattedAmount string         `json:"formatted_amount"`
	FormattedPayout *string        `json:"formatted_payout"`
	ReviewedByName  *string        `json:"reviewed_by_name"`
	ReviewedByEmail *string        `json:"reviewed_by_email"`
	PolicyDetails   *models.Policy `json:"policy_details"`
	Documents       []DocumentInfo `json:"documents"`
}

// GetClaimDetails returns the full claim record for admin review, including
// all attached documents and the reviewing admin's identity when set
func (s *ClaimsService) GetClaimDetails(ctx context.Context, claimID string) (*AdminClaimDetail, error) {
	if claimID == "" {
		return nil, claims.NewValidationError("claim id is required")
	}

	claim, err := s.claimRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, claims.ErrClaimNotFound
		}
		return nil, errors.Wrap(err, "failed to get claim")
	}

	detail := &AdminClaimDetail{
		Claim:           *claim,
		FormattedWallet: shortWallet(claim.WalletAddress) + "...",
		FormattedAmount: formatUSD(claim.ClaimAmount),
	}
	if claim.PayoutAmount != nil {
		formatted := formatUSD(*claim.PayoutAmount)
		detail.FormattedPayout = &formatted
	}

	if claim.ReviewedBy != nil {
		if admin, err := s.adminRepo.GetByID(ctx, *claim.ReviewedBy); err == nil {
			detail.ReviewedByName = &admin.Name
			detail.ReviewedByEmail = &admin.Email
		}
	}

	if policy, err := s.policyRepo.GetByID(ctx, claim.PolicyID); err == nil {
		detail.PolicyDetails = policy
	}

	docs, err := s.documentRepo.ListByClaim(ctx, claim.ClaimID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claim documents")
	}
	detail.Documents = make([]DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		detail.Documents = append(detail.Documents, DocumentInfo{
			ID:            doc.ID,
			DocumentType:  doc.DocumentType,
			FileName:      doc.FileName,
			FileSize:      doc.FileSize,
			FormattedSize: formatFileSize(doc.FileSize),
			MimeType:      doc.MimeType,
			UploadedBy:    doc.UploadedBy,
			CreatedAt:     doc.CreatedAt,
			IsImage:       strings.HasPrefix(doc.MimeType, "image/"),
			IsPDF:         doc.MimeType == "application/pdf",
			DownloadURL:   fmt.Sprintf("data:%s;base64,%s", doc.MimeType, doc.FileData),
		})
	}

	return detail, nil
}

// AdminClaimSummary is one row of the admin claim listing
type AdminClaimSummary struct {
	ClaimSummary
	WalletAddress   string  `json:"wallet_address"`
	FormattedWallet string  `json:"formatted_wallet"`
	ReviewedByName  *string `json:"reviewed_by_name"`
}

// AdminClaimListResult is one page of the cross-wallet claim listing
type AdminClaimListResult struct {
	Claims     []AdminClaimSummary `json:"claims"`
	Pagination Pagination          `json:"pagination"`
}

// ListAllClaims returns one page of claims across every wallet for the admin
// panel, newest first, optionally filtered by status and policy type ("all"
// disables either filter). Reviewer names are resolved best-effort.
func (s *ClaimsService) ListAllClaims(ctx context.Context, status, policyType string, page, limit int) (*AdminClaimListResult, error) {
	if status != "all" && !claims.Status(status).Valid() {
		return nil, claims.NewValidationError("invalid status filter %q", status)
	}
	if policyType != "all" && !claims.ValidPolicyType(policyType) {
		return nil, claims.NewValidationError("invalid policy type filter %q", policyType)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	records, total, err := s.claimRepo.ListAll(ctx, status, policyType, limit, (page-1)*limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claims")
	}

	// Pages typically share a handful of reviewers
	reviewerNames := make(map[uuid.UUID]*string)

	summaries := make([]AdminClaimSummary, 0, len(records))
	for i := range records {
		claim := &records[i]
		summary := AdminClaimSummary{
			ClaimSummary:    newClaimSummary(claim),
			WalletAddress:   claim.WalletAddress,
			FormattedWallet: shortWallet(claim.WalletAddress) + "...",
		}
		if claim.ReviewedBy != nil {
			name, seen := reviewerNames[*claim.ReviewedBy]
			if !seen {
				if admin, err := s.adminRepo.GetByID(ctx, *claim.ReviewedBy); err == nil {
					name = &admin.Name
				}
				reviewerNames[*claim.ReviewedBy] = name
			}
			summary.ReviewedByName = name
		}
		summaries = append(summaries, summary)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &AdminClaimListResult{
		Claims: summaries,
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalClaims: total,
			PerPage:     limit,
		},
	}, nil
}

// ClaimsStatistics is the aggregate view served to the admin dashboard
type ClaimsStatistics struct {
	ByStatus      []repositories.StatusStat  `json:"by_status"`
	ByType        []repositories.TypeStat    `json:"by_type"`
	MonthlyTrends []repositories.MonthlyStat `json:"monthly_trends"`
}

// GetStatistics returns claim aggregates by status, policy type, and month.
// Results are cached; the cached view may lag writes by up to the TTL.
func (s *ClaimsService) GetStatistics(ctx context.Context) (*ClaimsStatistics, error) {
	cacheKey := cache.GetStatisticsCacheKey()
	if s.cache != nil {
		var cached ClaimsStatistics
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.IncrementCounter("statistics_cache_hits")
			return &cached, nil
		}
	}

	byStatus, err := s.claimRepo.StatusStatistics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get status statistics")
	}
	byType, err := s.claimRepo.TypeStatistics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get type statistics")
	}
	monthly, err := s.claimRepo.MonthlyStatistics(ctx, 12)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get monthly statistics")
	}

	stats := &ClaimsStatistics{
		ByStatus:      byStatus,
		ByType:        byType,
		MonthlyTrends: monthly,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.statsTTL); err != nil {
			log.Debug().Err(err).Msg("Failed to cache statistics")
		}
	}

	return stats, nil
}

// SearchClaims runs a free-text query against the claim search index. Only
// claim metadata is indexed, never document contents.
func (s *ClaimsService) SearchClaims(ctx context.Context, term string, limit int) ([]map[string]interface{}, error) {
	if strings.TrimSpace(term) == "" {
		return nil, claims.NewValidationError("search term is required")
	}
	if s.searchClient == nil {
		return nil, claims.ErrSearchUnavailable
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  term,
				"fields": []string{"claim_id", "wallet_address", "description", "policy_type", "status"},
			},
		},
	}

	results, err := s.searchClient.SearchClaims(ctx, query)
	if err != nil {
		s.metrics.RecordError("search_claims")
		return nil, errors.Wrap(err, "failed to search claims")
	}

	s.metrics.RecordSuccess("search_claims")
	return results, nil
}

// invalidateStatistics drops the cached dashboard aggregates after a
// decision so admins see it before the TTL expires
func (s *ClaimsService) invalidateStatistics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.GetStatisticsCacheKey()); err != nil {
		log.Debug().Err(err).Msg("Failed to invalidate statistics cache")
	}
}

func (s *ClaimsService) recordAdminAction(ctx context.Context, adminID uuid.UUID, action, claimID string, details map[string]interface{}) {
	if err := s.auditor.Record(ctx, adminID, action, "claim", claimID, details); err != nil {
		log.Error().Err(err).Str("action", action).Str("claim_id", claimID).Msg("Failed to record admin activity")
	}
}

func (s *ClaimsService) reindexBestEffort(ctx context.Context, claimID string) {
	if s.searchClient == nil {
		return
	}
	claim, err := s.claimRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		log.Warn().Err(err).Str("claim_id", claimID).Msg("Failed to reload claim for reindexing")
		return
	}
	if err := s.searchClient.IndexClaim(ctx, claim); err != nil {
		log.Warn().Err(err).Str("claim_id", claimID).Msg("Failed to reindex claim")
	}
}

// statusNotificationMessage is the wallet-facing text for a review decision.
// Approved and paid messages carry the payout amount when one was recorded,
// rejected messages carry the reviewer's notes.
func statusNotificationMessage(claimID string, update StatusUpdate) string {
	switch update.Status {
	case claims.StatusApproved:
		if update.PayoutAmount != nil {
			return fmt.Sprintf("Your claim %s has been approved for $%.2f.", claimID, *update.PayoutAmount)
		}
		return fmt.Sprintf("Your claim %s has been approved.", claimID)
	case claims.StatusRejected:
		if update.AdminNotes != nil && *update.AdminNotes != "" {
			return fmt.Sprintf("Your claim %s has been rejected. %s", claimID, *update.AdminNotes)
		}
		return fmt.Sprintf("Your claim %s has been rejected.", claimID)
	case claims.StatusProcessingPayment:
		return fmt.Sprintf("Your claim %s is being processed for payment.", claimID)
	case claims.StatusPaid:
		if update.PayoutAmount != nil {
			return fmt.Sprintf("Your claim %s has been paid ($%.2f).", claimID, *update.PayoutAmount)
		}
		return fmt.Sprintf("Your claim %s has been paid.", claimID)
	default:
		return fmt.Sprintf("Your claim %s status has been updated to %s.", claimID, update.Status)
	}
}
