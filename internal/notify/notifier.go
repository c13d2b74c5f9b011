package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/coverlane/services/claims/internal/models"
	"example.com/coverlane/services/claims/internal/repositories"
)

// AdminChannel is the wallet address notifications to the admin channel are
// recorded under
const AdminChannel = "admin"

// Notifier is the sink claim lifecycle events are reported to as user-facing
// messages
type Notifier interface {
	NotifyWallet(ctx context.Context, walletAddress, notificationType, title, message string) error
	NotifyAdmin(ctx context.Context, notificationType, title, message string) error
}

// Auditor records an audit event for every state-changing admin operation
type Auditor interface {
	Record(ctx context.Context, adminID uuid.UUID, action, resourceType, resourceID string, details map[string]interface{}) error
}

// dbNotifier persists notifications as rows for the user-facing inbox
type dbNotifier struct {
	repo *repositories.NotificationRepository
}

// NewDBNotifier creates a notifier backed by the notifications table
func NewDBNotifier(repo *repositories.NotificationRepository) Notifier {
	return &dbNotifier{repo: repo}
}

// NotifyWallet records a notification addressed to a wallet
func (n *dbNotifier) NotifyWallet(ctx context.Context, walletAddress, notificationType, title, message string) error {
	notification := &models.Notification{
		ID:            uuid.New(),
		WalletAddress: walletAddress,
		Type:          notificationType,
		Title:         title,
		Message:       message,
	}
	if err := n.repo.Create(ctx, notification); err != nil {
		return errors.Wrap(err, "failed to create notification")
	}
	return nil
}

// NotifyAdmin records a notification addressed to the admin channel
func (n *dbNotifier) NotifyAdmin(ctx context.Context, notificationType, title, message string) error {
	return n.NotifyWallet(ctx, AdminChannel, notificationType, title, message)
}

// dbAuditor persists audit events to the admin activity log
type dbAuditor struct {
	repo *repositories.AdminActivityRepository
}

// NewDBAuditor creates an auditor backed by the admin activity log
func NewDBAuditor(repo *repositories.AdminActivityRepository) Auditor {
	return &dbAuditor{repo: repo}
}

// Record persists one audit event
func (a *dbAuditor) Record(ctx context.Context, adminID uuid.UUID, action, resourceType, resourceID string, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit details")
	}

	entry := &models.AdminActivityLog{
		ID:           uuid.New(),
		AdminID:      adminID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      payload,
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		return errors.Wrap(err, "failed to record admin activity")
	}
	return nil
}
