package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Policy represents an underwriting record a claim references. Home, car and
// travel variants share one table with a policy_type discriminator; the
// variant-specific fields live in Details.
type Policy struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	WalletAddress   string         `gorm:"not null;index" json:"wallet_address"`
	PolicyType      string         `gorm:"not null;index" json:"policy_type"`
	CoverageAmount  float64        `gorm:"not null;default:0" json:"coverage_amount"`
	TotalPremium    float64        `gorm:"not null;default:0" json:"total_premium"`
	PolicyStartDate *time.Time     `json:"policy_start_date"`
	PolicyEndDate   *time.Time     `json:"policy_end_date"`
	Details         []byte         `gorm:"type:jsonb" json:"details"`
	IsActive        bool           `gorm:"not null;default:true" json:"is_active"`
}

// Claim represents a policyholder's request for payout against a policy.
// Claims are never deleted; review timestamps form the audit trail.
type Claim struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"-"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	ClaimID        string         `gorm:"not null;uniqueIndex" json:"claim_id"`
	WalletAddress  string         `gorm:"not null;index" json:"wallet_address"`
	PolicyType     string         `gorm:"not null" json:"policy_type"`
	PolicyID       uint           `gorm:"not null" json:"policy_id"`
	ClaimAmount    float64        `gorm:"not null" json:"claim_amount"`
	Description    string         `gorm:"not null" json:"description"`
	IncidentDate   time.Time      `gorm:"not null" json:"incident_date"`
	DocumentsCount int            `gorm:"not null;default:0" json:"documents_count"`
	Status         string         `gorm:"not null;default:pending;index" json:"status"`
	AdminNotes     *string        `json:"admin_notes"`
	PayoutAmount   *float64       `json:"payout_amount"`
	PayoutDate     *time.Time     `json:"payout_date"`
	ReviewedAt     *time.Time     `json:"reviewed_at"`
	ReviewedBy     *uuid.UUID     `gorm:"type:uuid" json:"reviewed_by"`
	Documents      []ClaimDocument `gorm:"foreignKey:ClaimID;references:ClaimID;constraint:OnDelete:CASCADE" json:"-"`
}

// ClaimDocument is a binary attachment evidencing a claim. Content is stored
// as a base64 blob; FileSize is the decoded byte length. Documents are
// immutable once created and are removed only with their parent claim.
type ClaimDocument struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	ClaimID      string    `gorm:"not null;index" json:"claim_id"`
	DocumentType string    `gorm:"not null" json:"document_type"`
	FileName     string    `gorm:"not null" json:"file_name"`
	FileData     string    `gorm:"type:text;not null" json:"-"`
	FileSize     int64     `gorm:"not null" json:"file_size"`
	MimeType     string    `gorm:"not null" json:"mime_type"`
	UploadedBy   string    `gorm:"not null" json:"uploaded_by"`
}

// Notification is a persisted user-facing message. Wallet "admin" addresses
// the admin channel.
type Notification struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	WalletAddress string    `gorm:"not null;index" json:"wallet_address"`
	Type          string    `gorm:"not null" json:"type"`
	Title         string    `gorm:"not null" json:"title"`
	Message       string    `gorm:"not null" json:"message"`
	IsRead        bool      `gorm:"not null;default:false" json:"is_read"`
}

// AdminUser identifies a reviewing admin
type AdminUser struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"not null;uniqueIndex" json:"email"`
}

// AdminActivityLog records every state-changing admin operation
type AdminActivityLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	AdminID      uuid.UUID `gorm:"type:uuid;not null;index" json:"admin_id"`
	Action       string    `gorm:"not null" json:"action"`
	ResourceType string    `gorm:"not null" json:"resource_type"`
	ResourceID   string    `gorm:"not null" json:"resource_id"`
	Details      []byte    `gorm:"type:jsonb" json:"details"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&Policy{},
		&Claim{},
		&ClaimDocument{},
		&Notification{},
		&AdminUser{},
		&AdminActivityLog{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
