package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// PolicyRepository provides read access to policy records
type PolicyRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PolicyRepository {
	return &PolicyRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetOwned gets a policy by id, type and owning wallet
func (r *PolicyRepository) GetOwned(ctx context.Context, id uint, walletAddress, policyType string) (*models.Policy, error) {
	var policy models.Policy
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).
		Where("id = ? AND wallet_address = ? AND policy_type = ?", id, walletAddress, policyType).
		First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get policy")
	}
	return &policy, nil
}

// GetByID gets a policy by id
func (r *PolicyRepository) GetByID(ctx context.Context, id uint) (*models.Policy, error) {
	var policy models.Policy
	err := r.readOnlyDB.WithContext(ctx).First(&policy, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get policy by id")
	}
	return &policy, nil
}

// ClaimRepository provides access to claim records
type ClaimRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ClaimRepository {
	return &ClaimRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create persists a new claim
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	// Use write DB for writes
	return r.db.WithContext(ctx).Create(claim).Error
}

// GetByClaimID gets a claim by its public claim identifier
func (r *ClaimRepository) GetByClaimID(ctx context.Context, claimID string) (*models.Claim, error) {
	var claim models.Claim
	err := r.readOnlyDB.WithContext(ctx).Where("claim_id = ?", claimID).First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get claim")
	}
	return &claim, nil
}

// GetOwned gets a claim by identifier and owning wallet
func (r *ClaimRepository) GetOwned(ctx context.Context, claimID, walletAddress string) (*models.Claim, error) {
	var claim models.Claim
	err := r.readOnlyDB.WithContext(ctx).
		Where("claim_id = ? AND wallet_address = ?", claimID, walletAddress).
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get claim for wallet")
	}
	return &claim, nil
}

// ListByWallet lists a wallet's claims, newest first, optionally filtered by
// status. It returns the page and the unpaginated total.
func (r *ClaimRepository) ListByWallet(ctx context.Context, walletAddress, status string, limit, offset int) ([]models.Claim, int64, error) {
	query := r.readOnlyDB.WithContext(ctx).Model(&models.Claim{}).
		Where("wallet_address = ?", walletAddress)
	if status != "all" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count claims")
	}

	var result []models.Claim
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&result).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list claims")
	}
	return result, total, nil
}

// ListAll lists claims across every wallet, newest first, optionally
// filtered by status and policy type ("all" disables either filter). It
// returns the page and the unpaginated total.
func (r *ClaimRepository) ListAll(ctx context.Context, status, policyType string, limit, offset int) ([]models.Claim, int64, error) {
	query := r.readOnlyDB.WithContext(ctx).Model(&models.Claim{})
	if status != "all" {
		query = query.Where("status = ?", status)
	}
	if policyType != "all" {
		query = query.Where("policy_type = ?", policyType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count claims")
	}

	var result []models.Claim
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&result).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list claims")
	}
	return result, total, nil
}

// SetDocumentsCount persists the authoritative attachment count of a claim
func (r *ClaimRepository) SetDocumentsCount(ctx context.Context, claimID string, count int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Claim{}).
		Where("claim_id = ?", claimID).
		Update("documents_count", count)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update documents count")
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// TransitionStatus applies a status transition conditionally on the claim
// still being in the from status. It reports whether a row was updated, so a
// stale transition never overwrites a concurrent admin's decision.
func (r *ClaimRepository) TransitionStatus(ctx context.Context, claimID string, from claims.Status, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Claim{}).
		Where("claim_id = ? AND status = ?", claimID, string(from)).
		Updates(updates)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to transition claim status")
	}

	return result.RowsAffected > 0, nil
}

// StaleDocumentCounts returns claim identifiers whose stored documents_count
// disagrees with the actual count of attached documents
func (r *ClaimRepository) StaleDocumentCounts(ctx context.Context, limit int) ([]string, error) {
	var claimIDs []string
	err := r.readOnlyDB.WithContext(ctx).Raw(`
		SELECT c.claim_id
		FROM claims c
		LEFT JOIN (
			SELECT claim_id, COUNT(*) AS actual
			FROM claim_documents
			GROUP BY claim_id
		) d ON d.claim_id = c.claim_id
		WHERE c.documents_count <> COALESCE(d.actual, 0)
		LIMIT ?`, limit).Scan(&claimIDs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find stale document counts")
	}
	return claimIDs, nil
}

// StatusStat aggregates claims by status
type StatusStat struct {
	Status      string  `json:"status"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	AvgAmount   float64 `json:"avg_amount"`
}

// TypeStat aggregates claims by policy type
type TypeStat struct {
	PolicyType  string  `json:"policy_type"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// MonthlyStat aggregates claims by submission month
type MonthlyStat struct {
	Month         string  `json:"month"`
	ClaimsCount   int64   `json:"claims_count"`
	TotalAmount   float64 `json:"total_amount"`
	ApprovedCount int64   `json:"approved_count"`
	TotalPaid     float64 `json:"total_paid"`
}

// StatusStatistics aggregates claim counts and amounts by status
func (r *ClaimRepository) StatusStatistics(ctx context.Context) ([]StatusStat, error) {
	var stats []StatusStat
	err := r.readOnlyDB.WithContext(ctx).Raw(`
		SELECT status,
		       COUNT(*) AS count,
		       COALESCE(SUM(claim_amount), 0) AS total_amount,
		       COALESCE(AVG(claim_amount), 0) AS avg_amount
		FROM claims
		GROUP BY status`).Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate claims by status")
	}
	return stats, nil
}

// TypeStatistics aggregates claim counts and amounts by policy type
func (r *ClaimRepository) TypeStatistics(ctx context.Context) ([]TypeStat, error) {
	var stats []TypeStat
	err := r.readOnlyDB.WithContext(ctx).Raw(`
		SELECT policy_type,
		       COUNT(*) AS count,
		       COALESCE(SUM(claim_amount), 0) AS total_amount
		FROM claims
		GROUP BY policy_type`).Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate claims by type")
	}
	return stats, nil
}

// MonthlyStatistics aggregates the claim trend over the trailing months
func (r *ClaimRepository) MonthlyStatistics(ctx context.Context, months int) ([]MonthlyStat, error) {
	var stats []MonthlyStat
	err := r.readOnlyDB.WithContext(ctx).Raw(`
		SELECT to_char(created_at, 'YYYY-MM') AS month,
		       COUNT(*) AS claims_count,
		       COALESCE(SUM(claim_amount), 0) AS total_amount,
		       SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END) AS approved_count,
		       COALESCE(SUM(CASE WHEN status = 'paid' THEN payout_amount ELSE 0 END), 0) AS total_paid
		FROM claims
		WHERE created_at >= NOW() - (? * INTERVAL '1 month')
		GROUP BY to_char(created_at, 'YYYY-MM')
		ORDER BY month DESC`, months).Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate monthly claim trend")
	}
	return stats, nil
}

// ClaimDocumentRepository provides access to claim documents
type ClaimDocumentRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewClaimDocumentRepository creates a new claim document repository
func NewClaimDocumentRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ClaimDocumentRepository {
	return &ClaimDocumentRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create persists a new claim document
func (r *ClaimDocumentRepository) Create(ctx context.Context, doc *models.ClaimDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// ListByClaim lists a claim's documents, oldest first
func (r *ClaimDocumentRepository) ListByClaim(ctx context.Context, claimID string) ([]models.ClaimDocument, error) {
	var docs []models.ClaimDocument
	err := r.readOnlyDB.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claim documents")
	}
	return docs, nil
}

// CountByClaim returns the authoritative number of documents attached to a
// claim
func (r *ClaimDocumentRepository) CountByClaim(ctx context.Context, claimID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ClaimDocument{}).
		Where("claim_id = ?", claimID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count claim documents")
	}
	return count, nil
}

// AdminUserRepository provides read access to admin identities
type AdminUserRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAdminUserRepository creates a new admin user repository
func NewAdminUserRepository(db *gorm.DB, readOnlyDB *gorm.DB) *AdminUserRepository {
	return &AdminUserRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets an admin user by id
func (r *AdminUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get admin user")
	}
	return &admin, nil
}

// NotificationRepository persists user-facing notifications
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// AdminActivityRepository persists the admin audit trail
type AdminActivityRepository struct {
	db *gorm.DB
}

// NewAdminActivityRepository creates a new admin activity repository
func NewAdminActivityRepository(db *gorm.DB) *AdminActivityRepository {
	return &AdminActivityRepository{db: db}
}

// Create persists an audit record
func (r *AdminActivityRepository) Create(ctx context.Context, entry *models.AdminActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
