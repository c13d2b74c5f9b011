package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"example.com/coverlane/services/claims/config"
	"example.com/coverlane/services/claims/internal/cache"
	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/messaging"
	"example.com/coverlane/services/claims/internal/metrics"
	"example.com/coverlane/services/claims/internal/models"
	"example.com/coverlane/services/claims/internal/notify"
	"example.com/coverlane/services/claims/internal/repositories"
	"example.com/coverlane/services/claims/internal/search"
	"example.com/coverlane/services/claims/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// claimStore is the claim persistence surface the service depends on
type claimStore interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByClaimID(ctx context.Context, claimID string) (*models.Claim, error)
	GetOwned(ctx context.Context, claimID, walletAddress string) (*models.Claim, error)
	ListByWallet(ctx context.Context, walletAddress, status string, limit, offset int) ([]models.Claim, int64, error)
	ListAll(ctx context.Context, status, policyType string, limit, offset int) ([]models.Claim, int64, error)
	SetDocumentsCount(ctx context.Context, claimID string, count int) error
	TransitionStatus(ctx context.Context, claimID string, from claims.Status, updates map[string]interface{}) (bool, error)
	StaleDocumentCounts(ctx context.Context, limit int) ([]string, error)
	StatusStatistics(ctx context.Context) ([]repositories.StatusStat, error)
	TypeStatistics(ctx context.Context) ([]repositories.TypeStat, error)
	MonthlyStatistics(ctx context.Context, months int) ([]repositories.MonthlyStat, error)
}

// documentStore is the claim document persistence surface
type documentStore interface {
	Create(ctx context.Context, doc *models.ClaimDocument) error
	ListByClaim(ctx context.Context, claimID string) ([]models.ClaimDocument, error)
	CountByClaim(ctx context.Context, claimID string) (int64, error)
}

// policyStore is the read-only policy lookup surface
type policyStore interface {
	GetOwned(ctx context.Context, id uint, walletAddress, policyType string) (*models.Policy, error)
	GetByID(ctx context.Context, id uint) (*models.Policy, error)
}

// adminStore resolves reviewing admin identities
type adminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error)
}

// claimIndexer indexes and queries claims for the admin search
type claimIndexer interface {
	IndexClaim(ctx context.Context, claim *models.Claim) error
	SearchClaims(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error)
}

// ClaimsService owns the claim lifecycle: submission, document attachment,
// admin review transitions and payout recording
type ClaimsService struct {
	db           *gorm.DB // Write database
	readOnlyDB   *gorm.DB // Read-only database
	limits       claims.UploadLimits
	statsTTL     time.Duration
	claimRepo    claimStore
	documentRepo documentStore
	policyRepo   policyStore
	adminRepo    adminStore
	notifier     notify.Notifier
	auditor      notify.Auditor
	cache        *cache.RedisCache
	searchClient claimIndexer
	publisher    messaging.EventPublisher
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
}

// NewClaimsService creates a new claims service
func NewClaimsService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	cfg config.Config,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	publisher messaging.EventPublisher,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *ClaimsService {
	limits := claims.UploadLimits{
		MaxFileSize: cfg.Uploads.MaxFileSizeBytes,
		MaxFiles:    cfg.Uploads.MaxFilesPerClaim,
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = claims.DefaultUploadLimits.MaxFileSize
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = claims.DefaultUploadLimits.MaxFiles
	}

	svc := &ClaimsService{
		db:           db,
		readOnlyDB:   readOnlyDB,
		limits:       limits,
		statsTTL:     cfg.Uploads.StatsCacheTTL,
		claimRepo:    repositories.NewClaimRepository(db, readOnlyDB),
		documentRepo: repositories.NewClaimDocumentRepository(db, readOnlyDB),
		policyRepo:   repositories.NewPolicyRepository(db, readOnlyDB),
		adminRepo:    repositories.NewAdminUserRepository(db, readOnlyDB),
		notifier:     notify.NewDBNotifier(repositories.NewNotificationRepository(db)),
		auditor:      notify.NewDBAuditor(repositories.NewAdminActivityRepository(db)),
		cache:        redisCache,
		publisher:    publisher,
		metrics:      metricsCollector,
		tracer:       tracer,
	}
	if svc.statsTTL <= 0 {
		svc.statsTTL = 5 * time.Minute
	}
	if elasticClient != nil {
		svc.searchClient = elasticClient
	}
	return svc
}

// FileInfo describes one stored document in a submission manifest
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// SubmitClaimResult is the outcome of a claim submission. DocumentsUploaded
// reflects the documents actually persisted, which may be fewer than
// submitted when storage partially fails.
type SubmitClaimResult struct {
	ClaimID           string     `json:"claim_id"`
	Status            string     `json:"status"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	DocumentsUploaded int        `json:"documents_uploaded"`
	FilesInfo         []FileInfo `json:"files_info"`
}

// SubmitClaim validates and persists a new claim in pending status together
// with its attachments. The claim row and document rows are separate writes:
// a document failure after the claim is committed does not roll the claim
// back, it only lowers the stored document count.
func (s *ClaimsService) SubmitClaim(ctx context.Context, submission *claims.Submission) (*SubmitClaimResult, error) {
	start := time.Now()
	txn := s.tracer.StartTransaction("submit-claim")
	defer s.tracer.EndTransaction(txn)

	incidentDate, err := submission.Validate(s.limits)
	if err != nil {
		s.metrics.RecordError("submit_claim")
		return nil, err
	}

	// Verify the referenced policy exists and is owned by the submitting
	// wallet before any write
	policySpan := s.tracer.StartSpan("verify-policy", txn)
	_, err = s.lookupOwnedPolicy(ctx, submission.PolicyID, submission.WalletAddress, submission.PolicyType)
	policySpan.End()
	if err != nil {
		s.metrics.RecordError("submit_claim")
		return nil, err
	}

	claim := &models.Claim{
		ID:             uuid.New(),
		ClaimID:        claims.NewClaimID(),
		WalletAddress:  submission.WalletAddress,
		PolicyType:     submission.PolicyType,
		PolicyID:       submission.PolicyID,
		ClaimAmount:    submission.ClaimAmount,
		Description:    submission.Description,
		IncidentDate:   incidentDate,
		DocumentsCount: len(submission.Attachments),
		Status:         string(claims.StatusPending),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	createSpan := s.tracer.StartSpan("create-claim", txn)
	err = s.claimRepo.Create(ctx, claim)
	createSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("submit_claim")
		return nil, errors.Wrap(err, "failed to create claim")
	}

	// Best-effort document persistence: a failed attachment is logged and
	// skipped so the claim survives for the admin to request a re-upload
	docSpan := s.tracer.StartSpan("store-documents", txn)
	filesInfo := make([]FileInfo, 0, len(submission.Attachments))
	stored := 0
	for _, attachment := range submission.Attachments {
		doc := &models.ClaimDocument{
			ID:           uuid.New(),
			ClaimID:      claim.ClaimID,
			DocumentType: claims.DefaultDocumentType,
			FileName:     attachment.FileName,
			FileData:     base64.StdEncoding.EncodeToString(attachment.Content),
			FileSize:     int64(len(attachment.Content)),
			MimeType:     attachment.MimeType,
			UploadedBy:   submission.WalletAddress,
		}
		if err := s.documentRepo.Create(ctx, doc); err != nil {
			log.Error().
				Err(err).
				Str("claim_id", claim.ClaimID).
				Str("file_name", attachment.FileName).
				Msg("Failed to store claim document")
			s.tracer.RecordError(txn, err)
			continue
		}
		stored++
		filesInfo = append(filesInfo, FileInfo{
			Name: attachment.FileName,
			Size: int64(len(attachment.Content)),
			Type: attachment.MimeType,
		})
	}
	docSpan.End()

	if stored != len(submission.Attachments) {
		log.Warn().
			Str("claim_id", claim.ClaimID).
			Int("submitted", len(submission.Attachments)).
			Int("stored", stored).
			Msg("Claim documents partially persisted")
		if err := s.claimRepo.SetDocumentsCount(ctx, claim.ClaimID, stored); err != nil {
			log.Error().Err(err).Str("claim_id", claim.ClaimID).Msg("Failed to correct documents count")
		}
		claim.DocumentsCount = stored
	}

	// Notifications are side effects; failures are logged, never fatal
	s.notifyBestEffort(ctx, claim.WalletAddress, "claim_submitted", "Claim Submitted Successfully",
		fmt.Sprintf("Your claim %s has been submitted and is being reviewed.", claim.ClaimID))
	s.notifyAdminBestEffort(ctx, "new_claim", "New Claim Submitted",
		fmt.Sprintf("New %s insurance claim %s submitted by %s...", claim.PolicyType, claim.ClaimID, shortWallet(claim.WalletAddress)))

	s.publishEvent(ctx, messaging.ClaimEvent{
		Type:          messaging.EventClaimSubmitted,
		ClaimID:       claim.ClaimID,
		WalletAddress: claim.WalletAddress,
		PolicyType:    claim.PolicyType,
		Status:        claim.Status,
		OccurredAt:    time.Now().UTC(),
	})
	s.indexClaim(ctx, claim)

	s.metrics.RecordSuccess("submit_claim")
	s.metrics.IncrementCounter("claims_submitted")
	s.metrics.IncrementCounterBy("documents_stored", int64(stored))
	s.metrics.RecordTimer("submit_claim", time.Since(start).Milliseconds())

	log.Info().
		Str("claim_id", claim.ClaimID).
		Str("wallet", claim.WalletAddress).
		Int("documents", stored).
		Msg("Claim submitted successfully")

	return &SubmitClaimResult{
		ClaimID:           claim.ClaimID,
		Status:            claim.Status,
		SubmittedAt:       claim.CreatedAt,
		DocumentsUploaded: stored,
		FilesInfo:         filesInfo,
	}, nil
}

// lookupOwnedPolicy resolves a policy by id, type and owner, consulting the
// cache first
func (s *ClaimsService) lookupOwnedPolicy(ctx context.Context, policyID uint, walletAddress, policyType string) (*models.Policy, error) {
	cacheKey := cache.GetPolicyCacheKey(policyType, policyID)
	if s.cache != nil {
		var cached models.Policy
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			if cached.WalletAddress != walletAddress {
				return nil, claims.ErrPolicyNotFound
			}
			return &cached, nil
		}
	}

	policy, err := s.policyRepo.GetOwned(ctx, policyID, walletAddress, policyType)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, claims.ErrPolicyNotFound
		}
		return nil, errors.Wrap(err, "failed to verify policy ownership")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, policy, 10*time.Minute); err != nil {
			log.Debug().Err(err).Str("key", cacheKey).Msg("Failed to cache policy")
		}
	}
	return policy, nil
}

// ClaimSummary is a claim with the derived display fields the listing
// endpoints return
type ClaimSummary struct {
	ClaimID             string     `json:"claim_id"`
	PolicyType          string     `json:"policy_type"`
	ClaimAmount         float64    `json:"claim_amount"`
	Description         string     `json:"description"`
	IncidentDate        time.Time  `json:"incident_date"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	PayoutAmount        *float64   `json:"payout_amount"`
	PayoutDate          *time.Time `json:"payout_date"`
	AdminNotes          *string    `json:"admin_notes"`
	FormattedAmount     string     `json:"formatted_amount"`
	FormattedPayout     *string    `json:"formatted_payout"`
	DaysSinceSubmission int        `json:"days_since_submission"`
}

// Pagination describes one page of a claim listing
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalClaims int64 `json:"total_claims"`
	PerPage     int   `json:"per_page"`
}

// ClaimListResult is one page of a wallet's claims
type ClaimListResult struct {
	Claims     []ClaimSummary `json:"claims"`
	Pagination Pagination     `json:"pagination"`
}

// ListClaims returns one page of a wallet's claims, newest first, optionally
// filtered by status ("all" disables the filter)
func (s *ClaimsService) ListClaims(ctx context.Context, walletAddress string, page, limit int, status string) (*ClaimListResult, error) {
	if walletAddress == "" {
		return nil, claims.NewValidationError("wallet address is required")
	}
	if status != "all" && !claims.Status(status).Valid() {
		return nil, claims.NewValidationError("invalid status filter %q", status)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	records, total, err := s.claimRepo.ListByWallet(ctx, walletAddress, status, limit, (page-1)*limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claims")
	}

	summaries := make([]ClaimSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, newClaimSummary(&records[i]))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &ClaimListResult{
		Claims: summaries,
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalClaims: total,
			PerPage:     limit,
		},
	}, nil
}

// ClaimStatusResult is a wallet's view of one claim, with the derived
// processing timeline and a policy snapshot when resolvable
type ClaimStatusResult struct {
	ClaimSummary
	PolicyID      uint                 `json:"policy_id"`
	ReviewedAt    *time.Time           `json:"reviewed_at"`
	PolicyDetails *models.Policy       `json:"policy_details"`
	Timeline      []claims.TimelineStep `json:"timeline"`
}

// GetClaimStatus returns a single claim for its owning wallet, including the
// derived timeline
func (s *ClaimsService) GetClaimStatus(ctx context.Context, claimID, walletAddress string) (*ClaimStatusResult, error) {
	if claimID == "" || walletAddress == "" {
		return nil, claims.NewValidationError("claim id and wallet address are required")
	}

	claim, err := s.claimRepo.GetOwned(ctx, claimID, walletAddress)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, claims.ErrClaimNotFound
		}
		return nil, errors.Wrap(err, "failed to get claim")
	}

	// Policy snapshot is best-effort: a claim remains readable even if the
	// policy record is gone
	var policyDetails *models.Policy
	if policy, err := s.policyRepo.GetByID(ctx, claim.PolicyID); err == nil {
		policyDetails = policy
	}

	return &ClaimStatusResult{
		ClaimSummary:  newClaimSummary(claim),
		PolicyID:      claim.PolicyID,
		ReviewedAt:    claim.ReviewedAt,
		PolicyDetails: policyDetails,
		Timeline: claims.Timeline(claims.TimelineInput{
			Status:     claims.Status(claim.Status),
			CreatedAt:  claim.CreatedAt,
			ReviewedAt: claim.ReviewedAt,
			PayoutDate: claim.PayoutDate,
		}),
	}, nil
}

// UploadDocumentResult is the outcome of a supplementary document upload
type UploadDocumentResult struct {
	DocumentID   uuid.UUID `json:"document_id"`
	ClaimID      string    `json:"claim_id"`
	DocumentType string    `json:"document_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// UploadDocument attaches a supplementary document to an existing claim. The
// claim's document count is recomputed from the authoritative count of
// attached documents, not incremented, so it stays correct under partial
// failures.
func (s *ClaimsService) UploadDocument(ctx context.Context, claimID, walletAddress, documentType, fileName string, content []byte, mimeType string) (*UploadDocumentResult, error) {
	if claimID == "" || walletAddress == "" || documentType == "" || len(content) == 0 {
		return nil, claims.NewValidationError("claim id, wallet address, document type, and file data are required")
	}
	if err := claims.ValidateAttachment(claims.Attachment{FileName: fileName, Content: content, MimeType: mimeType}, s.limits); err != nil {
		return nil, err
	}

	claim, err := s.claimRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, claims.ErrClaimNotFound
		}
		return nil, errors.Wrap(err, "failed to get claim")
	}
	if claim.WalletAddress != walletAddress {
		return nil, claims.ErrForbidden
	}

	doc := &models.ClaimDocument{
		ID:           uuid.New(),
		ClaimID:      claim.ClaimID,
		DocumentType: documentType,
		FileName:     fileName,
		FileData:     base64.StdEncoding.EncodeToString(content),
		FileSize:     int64(len(content)),
		MimeType:     mimeType,
		UploadedBy:   walletAddress,
		CreatedAt:    time.Now(),
	}
	if err := s.documentRepo.Create(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "failed to store claim document")
	}

	count, err := s.documentRepo.CountByClaim(ctx, claim.ClaimID)
	if err != nil {
		log.Error().Err(err).Str("claim_id", claim.ClaimID).Msg("Failed to recount claim documents")
	} else if err := s.claimRepo.SetDocumentsCount(ctx, claim.ClaimID, int(count)); err != nil {
		log.Error().Err(err).Str("claim_id", claim.ClaimID).Msg("Failed to update documents count")
	}

	s.notifyBestEffort(ctx, walletAddress, "document_uploaded", "Document Uploaded",
		fmt.Sprintf("Document uploaded for claim %s: %s", claim.ClaimID, documentType))

	s.metrics.IncrementCounter("documents_uploaded")

	return &UploadDocumentResult{
		DocumentID:   doc.ID,
		ClaimID:      claim.ClaimID,
		DocumentType: documentType,
		UploadedAt:   doc.CreatedAt,
	}, nil
}

// ReconcileDocumentCounts re-derives stored document counts from the
// claim_documents table. Run periodically by the worker to heal claims whose
// submission partially failed.
func (s *ClaimsService) ReconcileDocumentCounts(ctx context.Context) error {
	txn := s.tracer.StartTransaction("reconcile-document-counts")
	defer s.tracer.EndTransaction(txn)

	claimIDs, err := s.claimRepo.StaleDocumentCounts(ctx, 100)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to find claims with stale document counts")
	}

	if len(claimIDs) == 0 {
		return nil // Nothing to heal
	}

	log.Info().Msgf("Found %d claims with stale document counts for reconciliation", len(claimIDs))

	for _, claimID := range claimIDs {
		count, err := s.documentRepo.CountByClaim(ctx, claimID)
		if err != nil {
			log.Error().Err(err).Str("claim_id", claimID).Msg("Failed to recount documents during reconciliation")
			s.tracer.RecordError(txn, err)
			continue
		}
		if err := s.claimRepo.SetDocumentsCount(ctx, claimID, int(count)); err != nil {
			log.Error().Err(err).Str("claim_id", claimID).Msg("Failed to heal documents count")
			s.tracer.RecordError(txn, err)
			continue
		}
		log.Info().Str("claim_id", claimID).Int64("count", count).Msg("Reconciled claim document count")
	}

	return nil
}

// ReindexClaim re-indexes one claim in Elasticsearch, used by the worker to
// heal failed inline indexing
func (s *ClaimsService) ReindexClaim(ctx context.Context, claimID string) error {
	claim, err := s.claimRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return claims.ErrClaimNotFound
		}
		return errors.Wrap(err, "failed to get claim for reindexing")
	}
	if s.searchClient == nil {
		return nil
	}
	return s.searchClient.IndexClaim(ctx, claim)
}

func (s *ClaimsService) notifyBestEffort(ctx context.Context, walletAddress, notificationType, title, message string) {
	if err := s.notifier.NotifyWallet(ctx, walletAddress, notificationType, title, message); err != nil {
		log.Error().Err(err).Str("wallet", walletAddress).Str("type", notificationType).Msg("Failed to create notification")
	}
}

func (s *ClaimsService) notifyAdminBestEffort(ctx context.Context, notificationType, title, message string) {
	if err := s.notifier.NotifyAdmin(ctx, notificationType, title, message); err != nil {
		log.Error().Err(err).Str("type", notificationType).Msg("Failed to create admin notification")
	}
}

func (s *ClaimsService) publishEvent(ctx context.Context, event messaging.ClaimEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("claim_id", event.ClaimID).Str("event", event.Type).Msg("Failed to publish claim event")
	}
}

func (s *ClaimsService) indexClaim(ctx context.Context, claim *models.Claim) {
	if s.searchClient == nil {
		return
	}
	if err := s.searchClient.IndexClaim(ctx, claim); err != nil {
		log.Warn().Err(err).Str("claim_id", claim.ClaimID).Msg("Failed to index claim, worker will retry")
	}
}

func newClaimSummary(claim *models.Claim) ClaimSummary {
	summary := ClaimSummary{
		ClaimID:             claim.ClaimID,
		PolicyType:          claim.PolicyType,
		ClaimAmount:         claim.ClaimAmount,
		Description:         claim.Description,
		IncidentDate:        claim.IncidentDate,
		Status:              claim.Status,
		CreatedAt:           claim.CreatedAt,
		PayoutAmount:        claim.PayoutAmount,
		PayoutDate:          claim.PayoutDate,
		AdminNotes:          claim.AdminNotes,
		FormattedAmount:     formatUSD(claim.ClaimAmount),
		DaysSinceSubmission: int(time.Since(claim.CreatedAt).Hours() / 24),
	}
	if claim.PayoutAmount != nil {
		formatted := formatUSD(*claim.PayoutAmount)
		summary.FormattedPayout = &formatted
	}
	return summary
}
