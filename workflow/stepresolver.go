package workflow

import (
	"github.com/azydesilva/ecorporate-server/domain"
)

type Step int

const (
	StepPayment Step = iota + 1
	StepCompanyDetails
	StepDocumentation
	StepIncorporation
)

func (s Step) String() string {
	switch s {
	case StepPayment:
		return "payment"
	case StepCompanyDetails:
		return "company-details"
	case StepDocumentation:
		return "documentation"
	case StepIncorporation:
		return "incorporation"
	}
	return "unknown"
}

// State is the resolved workflow position for one registration.
type State struct {
	ActiveStep Step   `json:"activeStep"`
	Navigable  []Step `json:"navigable"`
}

// ActiveStep maps a registration's status and gate flags to the step the admin
// screen should show. Rules are ordered, first match wins.
func ActiveStep(reg domain.Registration) Step {
	switch {
	case reg.Status == domain.StatusPaymentProcessing || reg.Status == domain.StatusPaymentRejected:
		return StepPayment
	case reg.Status == domain.StatusDocumentationProcessing && !reg.DetailsApproved:
		return StepCompanyDetails
	case reg.Status == domain.StatusIncorporationProcessing && !reg.DocumentsApproved:
		return StepDocumentation
	// Published documents keep the admin on the review step until the
	// registration completes. Deliberate carve-out, not a fallthrough bug.
	case reg.Status == domain.StatusDocumentsPublished:
		return StepDocumentation
	case reg.Status == domain.StatusDocumentsSubmitted,
		reg.Status == domain.StatusIncorporationProcessing,
		reg.Status == domain.StatusCompleted:
		return StepIncorporation
	}
	return StepPayment
}

// Navigable reports whether the admin may open the given step. Step 1 is
// always open; each later step is gated by the previous step's approval flag.
func Navigable(reg domain.Registration, step Step) bool {
	switch step {
	case StepPayment:
		return true
	case StepCompanyDetails:
		return reg.PaymentApproved
	case StepDocumentation:
		return reg.DetailsApproved
	case StepIncorporation:
		return reg.DocumentsApproved
	}
	return false
}

// Resolve returns the full workflow state in one call.
func Resolve(reg domain.Registration) State {
	st := State{ActiveStep: ActiveStep(reg)}
	for _, step := range []Step{StepPayment, StepCompanyDetails, StepDocumentation, StepIncorporation} {
		if Navigable(reg, step) {
			st.Navigable = append(st.Navigable, step)
		}
	}
	return st
}
