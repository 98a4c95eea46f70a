package pipeline

import (
	"fmt"

	"FxBridge/internal/domain/models"
)

// Fingerprint summarizes the signal attributes a subscriber would act on.
// Two signals with equal fingerprints are interchangeable and only the first
// one is broadcast.
func Fingerprint(sig *models.Signal) string {
	return fmt.Sprintf("%s:%.2f:%.2f:%.5f:%s:%s:%.2f",
		sig.Direction,
		sig.Confidence,
		sig.Strength,
		sig.Entry.Price,
		sig.Validity.Decision.State,
		sig.Status,
		sig.ConfluenceScore,
	)
}

// lifecycle captures the mutable-by-revalidation metadata of a published
// signal. A changed lifecycle justifies re-publishing within the same bar.
type lifecycle struct {
	decision   models.DecisionState
	valid      bool
	status     string
	confluence float64
}

func lifecycleOf(sig *models.Signal) lifecycle {
	return lifecycle{
		decision:   sig.Validity.Decision.State,
		valid:      sig.Validity.IsValid,
		status:     sig.Status,
		confluence: sig.ConfluenceScore,
	}
}
