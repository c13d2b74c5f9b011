package claims

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func timelineStatuses(steps []TimelineStep) []string {
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		out = append(out, step.Status)
	}
	return out
}

func TestTimelinePendingClaim(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	steps := Timeline(TimelineInput{Status: StatusPending, CreatedAt: createdAt})

	require.Equal(t, []string{"submitted", "under_review", "decision"}, timelineStatuses(steps))
	require.True(t, steps[0].Completed)
	require.True(t, steps[1].Completed)
	require.False(t, steps[2].Completed)
	require.Nil(t, steps[2].Date)
}

func TestTimelineRejectedClaim(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reviewedAt := createdAt.Add(48 * time.Hour)

	steps := Timeline(TimelineInput{
		Status:     StatusRejected,
		CreatedAt:  createdAt,
		ReviewedAt: &reviewedAt,
	})

	// No payment steps for a rejected claim, and review still reads complete
	require.Equal(t, []string{"submitted", "under_review", "decision"}, timelineStatuses(steps))
	require.True(t, steps[1].Completed)
	require.True(t, steps[2].Completed)
	require.Equal(t, "Claim rejected", steps[2].Description)
	require.Equal(t, &reviewedAt, steps[2].Date)
}

func TestTimelineApprovedClaim(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reviewedAt := createdAt.Add(24 * time.Hour)

	steps := Timeline(TimelineInput{
		Status:     StatusApproved,
		CreatedAt:  createdAt,
		ReviewedAt: &reviewedAt,
	})

	require.Equal(t, []string{"submitted", "under_review", "decision", "processing_payment"}, timelineStatuses(steps))
	require.Equal(t, "Claim approved", steps[2].Description)
	require.True(t, steps[2].Completed)
	require.False(t, steps[3].Completed)
}

func TestTimelinePaidClaim(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reviewedAt := createdAt.Add(24 * time.Hour)
	payoutDate := createdAt.Add(72 * time.Hour)

	steps := Timeline(TimelineInput{
		Status:     StatusPaid,
		CreatedAt:  createdAt,
		ReviewedAt: &reviewedAt,
		PayoutDate: &payoutDate,
	})

	require.Equal(t, []string{"submitted", "under_review", "decision", "processing_payment", "paid"}, timelineStatuses(steps))
	for _, step := range steps {
		require.Truef(t, step.Completed, "step %s should be complete", step.Status)
	}
	require.Equal(t, &payoutDate, steps[4].Date)
}
