// Package verification calls the vision model that inspects submitted
// document images and normalizes its free-text output into a typed verdict.
package verification

import "erthid/internal/identity"

// Verdict is the outcome of one verification attempt. Success is true only
// when the image is a document, fields were extracted and no fakery evidence
// was found. Every failure mode, including transport problems, collapses into
// a verdict with Success=false so callers have a single path to handle.
type Verdict struct {
	Success    bool             `json:"success"`
	Identity   *identity.Record `json:"identity"`
	IsFake     bool             `json:"is_fake"`
	FakeReason *string          `json:"fake_reason"`
}

func failureVerdict(reason string) Verdict {
	return Verdict{
		Success:    false,
		Identity:   identity.Empty(),
		IsFake:     true,
		FakeReason: &reason,
	}
}
