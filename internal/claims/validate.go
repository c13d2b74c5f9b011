package claims

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Policy types a claim may reference
const (
	PolicyTypeHome   = "home"
	PolicyTypeCar    = "car"
	PolicyTypeTravel = "travel"
)

// DefaultDocumentType labels attachments supplied at submission time
const DefaultDocumentType = "supporting_document"

// incidentDateLayout is the wire format for incident dates
const incidentDateLayout = "2006-01-02"

// UploadLimits bounds a single submission's attachments
type UploadLimits struct {
	MaxFileSize int64
	MaxFiles    int
}

// DefaultUploadLimits matches the platform defaults: 10 MiB per file, 10
// files per claim.
var DefaultUploadLimits = UploadLimits{
	MaxFileSize: 10 * 1024 * 1024,
	MaxFiles:    10,
}

// allowedMimeTypes is the closed set of attachment media types: common
// images, PDF, Word documents and plain text.
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

// ValidPolicyType reports whether t is one of home, car or travel
func ValidPolicyType(t string) bool {
	switch t {
	case PolicyTypeHome, PolicyTypeCar, PolicyTypeTravel:
		return true
	}
	return false
}

// AllowedMimeType reports whether mt may be attached to a claim
func AllowedMimeType(mt string) bool {
	_, ok := allowedMimeTypes[mt]
	return ok
}

// Attachment is one document supplied with a submission or upload
type Attachment struct {
	FileName string
	Content  []byte
	MimeType string
}

// Submission carries the inputs of a claim submission
type Submission struct {
	WalletAddress string
	PolicyType    string
	PolicyID      uint
	ClaimAmount   float64
	Description   string
	IncidentDate  string
	Attachments   []Attachment
}

// ValidateAttachment checks one attachment against the limits and the media
// type allowlist
func ValidateAttachment(a Attachment, limits UploadLimits) error {
	if strings.TrimSpace(a.FileName) == "" {
		return NewValidationError("attachment file name is required")
	}
	if int64(len(a.Content)) > limits.MaxFileSize {
		return NewValidationError("file %s too large, maximum size is %d bytes", a.FileName, limits.MaxFileSize)
	}
	if !AllowedMimeType(a.MimeType) {
		return NewValidationError("invalid file type %s, only images, PDFs, and documents are allowed", a.MimeType)
	}
	return nil
}

// Validate checks all scalar fields and attachments of a submission and
// returns the parsed incident date
func (s *Submission) Validate(limits UploadLimits) (time.Time, error) {
	if strings.TrimSpace(s.WalletAddress) == "" {
		return time.Time{}, NewValidationError("wallet address is required")
	}
	if !ValidPolicyType(s.PolicyType) {
		return time.Time{}, NewValidationError("invalid policy type, must be home, car, or travel")
	}
	if s.PolicyID == 0 {
		return time.Time{}, NewValidationError("policy id is required")
	}
	if s.ClaimAmount <= 0 {
		return time.Time{}, NewValidationError("claim amount must be a positive number")
	}
	if strings.TrimSpace(s.Description) == "" {
		return time.Time{}, NewValidationError("description is required")
	}
	if strings.TrimSpace(s.IncidentDate) == "" {
		return time.Time{}, NewValidationError("incident date is required")
	}

	incidentDate, err := time.Parse(incidentDateLayout, s.IncidentDate)
	if err != nil {
		return time.Time{}, NewValidationError("incident date must be a valid date in YYYY-MM-DD format")
	}
	if incidentDate.After(time.Now()) {
		return time.Time{}, NewValidationError("incident date must not be in the future")
	}

	if len(s.Attachments) > limits.MaxFiles {
		return time.Time{}, NewValidationError("too many files, maximum %d files allowed", limits.MaxFiles)
	}
	for _, a := range s.Attachments {
		if err := ValidateAttachment(a, limits); err != nil {
			return time.Time{}, err
		}
	}

	return incidentDate, nil
}

// NewClaimID generates a new human-readable claim identifier, unique across
// all prior claims.
func NewClaimID() string {
	id := uuid.New()
	return fmt.Sprintf("CLM-%s", strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12]))
}
