package claims

import (
	"time"
)

// TimelineStep is one entry of a claim's derived processing timeline
type TimelineStep struct {
	Status      string     `json:"status"`
	Date        *time.Time `json:"date"`
	Completed   bool       `json:"completed"`
	Description string     `json:"description"`
}

// TimelineInput is the claim state the timeline derives from
type TimelineInput struct {
	Status     Status
	CreatedAt  time.Time
	ReviewedAt *time.Time
	PayoutDate *time.Time
}

// Timeline derives the ordered processing timeline for a claim. It is a pure
// function of claim state; nothing is stored. Note that under_review is
// complete for every claim from submission onward, including rejected ones -
// all claims pass through review.
func Timeline(in TimelineInput) []TimelineStep {
	createdAt := in.CreatedAt

	decisionDesc := "Claim approved"
	if in.Status == StatusRejected {
		decisionDesc = "Claim rejected"
	}

	steps := []TimelineStep{
		{
			Status:      "submitted",
			Date:        &createdAt,
			Completed:   true,
			Description: "Claim submitted successfully",
		},
		{
			Status:      "under_review",
			Date:        &createdAt,
			Completed:   in.Status.Valid(),
			Description: "Claim is being reviewed by our team",
		},
		{
			Status:      "decision",
			Date:        in.ReviewedAt,
			Completed:   in.Status != StatusPending && in.Status.Valid(),
			Description: decisionDesc,
		},
	}

	if in.Status == StatusApproved || in.Status == StatusProcessingPayment || in.Status == StatusPaid {
		steps = append(steps, TimelineStep{
			Status:      "processing_payment",
			Date:        in.ReviewedAt,
			Completed:   in.Status == StatusProcessingPayment || in.Status == StatusPaid,
			Description: "Payment is being processed",
		})
	}

	if in.Status == StatusPaid {
		steps = append(steps, TimelineStep{
			Status:      "paid",
			Date:        in.PayoutDate,
			Completed:   true,
			Description: "Payment completed",
		})
	}

	return steps
}
