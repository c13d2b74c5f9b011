package services

import (
	"context"
	"testing"
	"time"

	"example.com/coverlane/services/claims/config"
	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/messaging"
	"example.com/coverlane/services/claims/internal/metrics"
	"example.com/coverlane/services/claims/internal/models"
	"example.com/coverlane/services/claims/internal/repositories"
	"example.com/coverlane/services/claims/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock repositories for testing

type MockClaimStore struct {
	mock.Mock
}

func (m *MockClaimStore) Create(ctx context.Context, claim *models.Claim) error {
	args := m.Called(ctx, claim)
	return args.Error(0)
}

func (m *MockClaimStore) GetByClaimID(ctx context.Context, claimID string) (*models.Claim, error) {
	args := m.Called(ctx, claimID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Claim), args.Error(1)
}

func (m *MockClaimStore) GetOwned(ctx context.Context, claimID, walletAddress string) (*models.Claim, error) {
	args := m.Called(ctx, claimID, walletAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Claim), args.Error(1)
}

func (m *MockClaimStore) ListByWallet(ctx context.Context, walletAddress, status string, limit, offset int) ([]models.Claim, int64, error) {
	args := m.Called(ctx, walletAddress, status, limit, offset)
	return args.Get(0).([]models.Claim), args.Get(1).(int64), args.Error(2)
}

func (m *MockClaimStore) ListAll(ctx context.Context, status, policyType string, limit, offset int) ([]models.Claim, int64, error) {
	args := m.Called(ctx, status, policyType, limit, offset)
	return args.Get(0).([]models.Claim), args.Get(1).(int64), args.Error(2)
}

func (m *MockClaimStore) SetDocumentsCount(ctx context.Context, claimID string, count int) error {
	args := m.Called(ctx, claimID, count)
	return args.Error(0)
}

func (m *MockClaimStore) TransitionStatus(ctx context.Context, claimID string, from claims.Status, updates map[string]interface{}) (bool, error) {
	args := m.Called(ctx, claimID, from, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockClaimStore) StaleDocumentCounts(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockClaimStore) StatusStatistics(ctx context.Context) ([]repositories.StatusStat, error) {
	args := m.Called(ctx)
	return args.Get(0).([]repositories.StatusStat), args.Error(1)
}

func (m *MockClaimStore) TypeStatistics(ctx context.Context) ([]repositories.TypeStat, error) {
	args := m.Called(ctx)
	return args.Get(0).([]repositories.TypeStat), args.Error(1)
}

func (m *MockClaimStore) MonthlyStatistics(ctx context.Context, months int) ([]repositories.MonthlyStat, error) {
	args := m.Called(ctx, months)
	return args.Get(0).([]repositories.MonthlyStat), args.Error(1)
}

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *models.ClaimDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentStore) ListByClaim(ctx context.Context, claimID string) ([]models.ClaimDocument, error) {
	args := m.Called(ctx, claimID)
	return args.Get(0).([]models.ClaimDocument), args.Error(1)
}

func (m *MockDocumentStore) CountByClaim(ctx context.Context, claimID string) (int64, error) {
	args := m.Called(ctx, claimID)
	return args.Get(0).(int64), args.Error(1)
}

type MockPolicyStore struct {
	mock.Mock
}

func (m *MockPolicyStore) GetOwned(ctx context.Context, id uint, walletAddress, policyType string) (*models.Policy, error) {
	args := m.Called(ctx, id, walletAddress, policyType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Policy), args.Error(1)
}

func (m *MockPolicyStore) GetByID(ctx context.Context, id uint) (*models.Policy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Policy), args.Error(1)
}

type MockAdminStore struct {
	mock.Mock
}

func (m *MockAdminStore) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminUser), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyWallet(ctx context.Context, walletAddress, notificationType, title, message string) error {
	args := m.Called(ctx, walletAddress, notificationType, title, message)
	return args.Error(0)
}

func (m *MockNotifier) NotifyAdmin(ctx context.Context, notificationType, title, message string) error {
	args := m.Called(ctx, notificationType, title, message)
	return args.Error(0)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(ctx context.Context, adminID uuid.UUID, action, resourceType, resourceID string, details map[string]interface{}) error {
	args := m.Called(ctx, adminID, action, resourceType, resourceID, details)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event messaging.ClaimEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// newTestService wires a ClaimsService around mocks, without cache, search or
// events unless a test attaches them
func newTestService(claimRepo *MockClaimStore, documentRepo *MockDocumentStore, policyRepo *MockPolicyStore, notifier *MockNotifier) *ClaimsService {
	tracer, _ := tracing.NewTracer(config.TracingConfig{})
	return &ClaimsService{
		limits:       claims.DefaultUploadLimits,
		statsTTL:     time.Minute,
		claimRepo:    claimRepo,
		documentRepo: documentRepo,
		policyRepo:   policyRepo,
		notifier:     notifier,
		metrics:      metrics.NewMetrics(),
		tracer:       tracer,
	}
}

func validTestSubmission() *claims.Submission {
	return &claims.Submission{
		WalletAddress: "0x1234567890abcdef1234567890abcdef12345678",
		PolicyType:    claims.PolicyTypeCar,
		PolicyID:      7,
		ClaimAmount:   2500,
		Description:   "Windshield cracked by road debris",
		IncidentDate:  "2026-02-10",
		Attachments: []claims.Attachment{
			{FileName: "windshield.jpg", Content: []byte("jpeg-bytes"), MimeType: "image/jpeg"},
			{FileName: "repair-quote.pdf", Content: []byte("pdf-bytes"), MimeType: "application/pdf"},
		},
	}
}

func TestSubmitClaim(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockDocs := new(MockDocumentStore)
	mockPolicies := new(MockPolicyStore)
	mockNotifier := new(MockNotifier)
	service := newTestService(mockClaims, mockDocs, mockPolicies, mockNotifier)

	submission := validTestSubmission()

	mockPolicies.On("GetOwned", mock.Anything, uint(7), submission.WalletAddress, claims.PolicyTypeCar).
		Return(&models.Policy{ID: 7, WalletAddress: submission.WalletAddress, PolicyType: claims.PolicyTypeCar}, nil)
	mockClaims.On("Create", mock.Anything, mock.AnythingOfType("*models.Claim")).Return(nil)
	mockDocs.On("Create", mock.Anything, mock.AnythingOfType("*models.ClaimDocument")).Return(nil)
	mockNotifier.On("NotifyWallet", mock.Anything, submission.WalletAddress, "claim_submitted", mock.Anything, mock.Anything).Return(nil)
	mockNotifier.On("NotifyAdmin", mock.Anything, "new_claim", mock.Anything, mock.Anything).Return(nil)

	result, err := service.SubmitClaim(context.Background(), submission)

	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "pending", result.Status)
	require.Equal(t, 2, result.DocumentsUploaded)
	require.Len(t, result.FilesInfo, 2)
	require.Regexp(t, `^CLM-[0-9A-F]{12}$`, result.ClaimID)

	mockClaims.AssertExpectations(t)
	mockDocs.AssertNumberOfCalls(t, "Create", 2)
	mockNotifier.AssertExpectations(t)
}

func TestSubmitClaimPolicyNotFound(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockDocs := new(MockDocumentStore)
	mockPolicies := new(MockPolicyStore)
	mockNotifier := new(MockNotifier)
	service := newTestService(mockClaims, mockDocs, mockPolicies, mockNotifier)

	mockPolicies.On("GetOwned", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repositories.ErrNotFound)

	_, err := service.SubmitClaim(context.Background(), validTestSubmission())

	require.ErrorIs(t, err, claims.ErrPolicyNotFound)
	mockClaims.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitClaimInvalidSubmission(t *testing.T) {
	mockClaims := new(MockClaimStore)
	service := newTestService(mockClaims, new(MockDocumentStore), new(MockPolicyStore), new(MockNotifier))

	submission := validTestSubmission()
	submission.ClaimAmount = 0

	_, err := service.SubmitClaim(context.Background(), submission)

	require.Error(t, err)
	require.True(t, claims.IsValidation(err))
	mockClaims.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitClaimPartialDocumentFailure(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockDocs := new(MockDocumentStore)
	mockPolicies := new(MockPolicyStore)
	mockNotifier := new(MockNotifier)
	service := newTestService(mockClaims, mockDocs, mockPolicies, mockNotifier)

	submission := validTestSubmission()

	mockPolicies.On("GetOwned", mock.Anything, uint(7), submission.WalletAddress, claims.PolicyTypeCar).
		Return(&models.Policy{ID: 7, WalletAddress: submission.WalletAddress, PolicyType: claims.PolicyTypeCar}, nil)
	mockClaims.On("Create", mock.Anything, mock.AnythingOfType("*models.Claim")).Return(nil)

	// First document stores, second fails
	mockDocs.On("Create", mock.Anything, mock.MatchedBy(func(d *models.ClaimDocument) bool {
		return d.FileName == "windshield.jpg"
	})).Return(nil)
	mockDocs.On("Create", mock.Anything, mock.MatchedBy(func(d *models.ClaimDocument) bool {
		return d.FileName == "repair-quote.pdf"
	})).Return(errors.New("disk full"))

	mockClaims.On("SetDocumentsCount", mock.Anything, mock.Anything, 1).Return(nil)
	mockNotifier.On("NotifyWallet", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockNotifier.On("NotifyAdmin", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := service.SubmitClaim(context.Background(), submission)

	// A failed document never fails the submission, the count just shrinks
	require.NoError(t, err)
	require.Equal(t, 1, result.DocumentsUploaded)
	require.Len(t, result.FilesInfo, 1)
	require.Equal(t, "windshield.jpg", result.FilesInfo[0].Name)

	mockClaims.AssertCalled(t, "SetDocumentsCount", mock.Anything, result.ClaimID, 1)
}

func TestSubmitClaimPublishesEvent(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockDocs := new(MockDocumentStore)
	mockPolicies := new(MockPolicyStore)
	mockNotifier := new(MockNotifier)
	mockPublisher := new(MockPublisher)
	service := newTestService(mockClaims, mockDocs, mockPolicies, mockNotifier)
	service.publisher = mockPublisher

	submission := validTestSubmission()

	mockPolicies.On("GetOwned", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&models.Policy{ID: 7, WalletAddress: submission.WalletAddress, PolicyType: claims.PolicyTypeCar}, nil)
	mockClaims.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockDocs.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockNotifier.On("NotifyWallet", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockNotifier.On("NotifyAdmin", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockPublisher.On("Publish", mock.Anything, mock.MatchedBy(func(e messaging.ClaimEvent) bool {
		return e.Type == messaging.EventClaimSubmitted && e.Status == "pending"
	})).Return(nil)

	_, err := service.SubmitClaim(context.Background(), submission)

	require.NoError(t, err)
	mockPublisher.AssertExpectations(t)
}

func TestListClaims(t *testing.T) {
	mockClaims := new(MockClaimStore)
	service := newTestService(mockClaims, new(MockDocumentStore), new(MockPolicyStore), new(MockNotifier))

	wallet := "0xabc"
	payout := 1234567.89
	records := []models.Claim{
		{
			ClaimID:      "CLM-AAAAAAAAAAAA",
			PolicyType:   claims.PolicyTypeHome,
			ClaimAmount:  1234567.89,
			Status:       "paid",
			CreatedAt:    time.Now().Add(-72 * time.Hour),
			PayoutAmount: &payout,
		},
		{
			ClaimID:     "CLM-BBBBBBBBBBBB",
			PolicyType:  claims.PolicyTypeCar,
			ClaimAmount: 500,
			Status:      "pending",
			CreatedAt:   time.Now(),
		},
	}
	mockClaims.On("ListByWallet", mock.Anything, wallet, "all", 10, 0).Return(records, int64(12), nil)

	result, err := service.ListClaims(context.Background(), wallet, 1, 10, "all")

	require.NoError(t, err)
	require.Len(t, result.Claims, 2)
	require.Equal(t, "$1,234,567.89", result.Claims[0].FormattedAmount)
	require.NotNil(t, result.Claims[0].FormattedPayout)
	require.Equal(t, "$1,234,567.89", *result.Claims[0].FormattedPayout)
	require.Equal(t, 3, result.Claims[0].DaysSinceSubmission)
	require.Nil(t, result.Claims[1].FormattedPayout)
	require.Equal(t, Pagination{CurrentPage: 1, TotalPages: 2, TotalClaims: 12, PerPage: 10}, result.Pagination)
}

func TestListClaimsInvalidStatusFilter(t *testing.T) {
	service := newTestService(new(MockClaimStore), new(MockDocumentStore), new(MockPolicyStore), new(MockNotifier))

	_, err := service.ListClaims(context.Background(), "0xabc", 1, 10, "bogus")

	require.Error(t, err)
	require.True(t, claims.IsValidation(err))
}

func TestListClaimsNormalizesPaging(t *testing.T) {
	mockClaims := new(MockClaimStore)
	service := newTestService(mockClaims, new(MockDocumentStore), new(MockPolicyStore), new(MockNotifier))

	mockClaims.On("ListByWallet", mock.Anything, "0xabc", "pending", 10, 0).Return([]models.Claim{}, int64(0), nil)

	result, err := service.ListClaims(context.Background(), "0xabc", 0, -5, "pending")

	require.NoError(t, err)
	require.Equal(t, 1, result.Pagination.CurrentPage)
	require.Equal(t, 10, result.Pagination.PerPage)
}

func TestGetClaimStatus(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockPolicies := new(MockPolicyStore)
	service := newTestService(mockClaims, new(MockDocumentStore), mockPolicies, new(MockNotifier))

	wallet := "0xabc"
	reviewedAt := time.Now().Add(-24 * time.Hour)
	claim := &models.Claim{
		ClaimID:       "CLM-CCCCCCCCCCCC",
		WalletAddress: wallet,
		PolicyType:    claims.PolicyTypeTravel,
		PolicyID:      3,
		ClaimAmount:   800,
		Status:        "approved",
		CreatedAt:     time.Now().Add(-48 * time.Hour),
		ReviewedAt:    &reviewedAt,
	}
	mockClaims.On("GetOwned", mock.Anything, "CLM-CCCCCCCCCCCC", wallet).Return(claim, nil)
	mockPolicies.On("GetByID", mock.Anything, uint(3)).
		Return(&models.Policy{ID: 3, PolicyType: claims.PolicyTypeTravel}, nil)

	result, err := service.GetClaimStatus(context.Background(), "CLM-CCCCCCCCCCCC", wallet)

	require.NoError(t, err)
	require.Equal(t, "approved", result.Status)
	require.NotNil(t, result.PolicyDetails)
	require.Len(t, result.Timeline, 4)
	require.Equal(t, "processing_payment", result.Timeline[3].Status)
}

func TestGetClaimStatusNotOwned(t *testing.T) {
	mockClaims := new(MockClaimStore)
	service := newTestService(mockClaims, new(MockDocumentStore), new(MockPolicyStore), new(MockNotifier))

	mockClaims.On("GetOwned", mock.Anything, "CLM-CCCCCCCCCCCC", "0xother").Return(nil, repositories.ErrNotFound)

	_, err := service.GetClaimStatus(context.Background(), "CLM-CCCCCCCCCCCC", "0xother")

	require.ErrorIs(t, err, claims.ErrClaimNotFound)
}

func TestUploadDocument(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockDocs := new(MockDocumentStore)
	mockNotifier := new(MockNotifier)
	service := newTestService(mockClaims, mockDocs, new(MockPolicyStore), mockNotifier)

	wallet := "0xabc"
	claim := &models.Claim{ClaimID: "CLM-DDDDDDDDDDDD", WalletAddress: wallet, DocumentsCount: 2}

	mockClaims.On("GetByClaimID", mock.Anything, "CLM-DDDDDDDDDDDD").Return(claim, nil)
	mockDocs.On("Create", mock.Anything, mock.MatchedBy(func(d *models.ClaimDocument) bool {
		return d.DocumentType == "police_report" && d.UploadedBy == wallet
	})).Return(nil)
	mockDocs.On("CountByClaim", mock.Anything, "CLM-DDDDDDDDDDDD").Return(int64(3), nil)
	mockClaims.On("SetDocumentsCount", mock.Anything, "CLM-DDDDDDDDDDDD", 3).Return(nil)
	mockNotifier.On("NotifyWallet", mock.Anything, wallet, "document_uploaded", mock.Anything, mock.Anything).Return(nil)

	result, err := service.UploadDocument(context.Background(), "CLM-DDDDDDDDDDDD", wallet, "police_report", "report.pdf", []byte("pdf-bytes"), "application/pdf")

	require.NoError(t, err)
	require.Equal(t, "police_report", result.DocumentType)
	mockClaims.AssertExpectations(t)
	mockDocs.AssertExpectations(t)
}

func TestUploadDocumentWrongWallet(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockDocs := new(MockDocumentStore)
	service := newTestService(mockClaims, mockDocs, new(MockPolicyStore), new(MockNotifier))

	claim := &models.Claim{ClaimID: "CLM-DDDDDDDDDDDD", WalletAddress: "0xowner"}
	mockClaims.On("GetByClaimID", mock.Anything, "CLM-DDDDDDDDDDDD").Return(claim, nil)

	_, err := service.UploadDocument(context.Background(), "CLM-DDDDDDDDDDDD", "0xintruder", "police_report", "report.pdf", []byte("x"), "application/pdf")

	require.ErrorIs(t, err, claims.ErrForbidden)
	mockDocs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadDocumentRejectsBadMimeType(t *testing.T) {
	mockClaims := new(MockClaimStore)
	service := newTestService(mockClaims, new(MockDocumentStore), new(MockPolicyStore), new(MockNotifier))

	_, err := service.UploadDocument(context.Background(), "CLM-DDDDDDDDDDDD", "0xabc", "police_report", "virus.exe", []byte("x"), "application/x-msdownload")

	require.Error(t, err)
	require.True(t, claims.IsValidation(err))
	mockClaims.AssertNotCalled(t, "GetByClaimID", mock.Anything, mock.Anything)
}

func TestReconcileDocumentCounts(t *testing.T) {
	mockClaims := new(MockClaimStore)
	mockDocs := new(MockDocumentStore)
	service := newTestService(mockClaims, mockDocs, new(MockPolicyStore), new(MockNotifier))

	mockClaims.On("StaleDocumentCounts", mock.Anything, 100).Return([]string{"CLM-A", "CLM-B"}, nil)
	mockDocs.On("CountByClaim", mock.Anything, "CLM-A").Return(int64(1), nil)
	mockDocs.On("CountByClaim", mock.Anything, "CLM-B").Return(int64(4), nil)
	mockClaims.On("SetDocumentsCount", mock.Anything, "CLM-A", 1).Return(nil)
	mockClaims.On("SetDocumentsCount", mock.Anything, "CLM-B", 4).Return(nil)

	err := service.ReconcileDocumentCounts(context.Background())

	require.NoError(t, err)
	mockClaims.AssertExpectations(t)
	mockDocs.AssertExpectations(t)
}
