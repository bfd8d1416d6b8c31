package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azydesilva/ecorporate-server/domain"
)

func TestActiveStep(t *testing.T) {
	cases := []struct {
		name string
		reg  domain.Registration
		want Step
	}{
		{"payment processing", domain.Registration{Status: domain.StatusPaymentProcessing}, StepPayment},
		{"payment rejected", domain.Registration{Status: domain.StatusPaymentRejected}, StepPayment},
		{"details under review", domain.Registration{Status: domain.StatusDocumentationProcessing}, StepCompanyDetails},
		{
			"details approved moves past step 2",
			domain.Registration{Status: domain.StatusDocumentationProcessing, DetailsApproved: true},
			StepPayment, // unmatched by rules 1-5, falls to default
		},
		{"documents under review", domain.Registration{Status: domain.StatusIncorporationProcessing}, StepDocumentation},
		{
			"documents approved advances to incorporation",
			domain.Registration{Status: domain.StatusIncorporationProcessing, DocumentsApproved: true},
			StepIncorporation,
		},
		{"documents submitted", domain.Registration{Status: domain.StatusDocumentsSubmitted}, StepIncorporation},
		{"completed", domain.Registration{Status: domain.StatusCompleted}, StepIncorporation},
		{"unknown status falls back to payment", domain.Registration{Status: "weird"}, StepPayment},
		{"empty status falls back to payment", domain.Registration{}, StepPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ActiveStep(tc.reg))
		})
	}
}

func TestActiveStep_PublishedStaysOnReview(t *testing.T) {
	// Published documents do not imply review is finished.
	for _, approved := range []bool{false, true} {
		reg := domain.Registration{
			Status:            domain.StatusDocumentsPublished,
			DocumentsApproved: approved,
		}
		assert.Equal(t, StepDocumentation, ActiveStep(reg))
	}
}

func TestNavigable(t *testing.T) {
	assert.True(t, Navigable(domain.Registration{}, StepPayment))

	assert.False(t, Navigable(domain.Registration{}, StepCompanyDetails))
	assert.True(t, Navigable(domain.Registration{PaymentApproved: true}, StepCompanyDetails))

	assert.False(t, Navigable(domain.Registration{}, StepDocumentation))
	assert.True(t, Navigable(domain.Registration{DetailsApproved: true}, StepDocumentation))

	assert.False(t, Navigable(domain.Registration{}, StepIncorporation))
	assert.True(t, Navigable(domain.Registration{DocumentsApproved: true}, StepIncorporation))

	assert.False(t, Navigable(domain.Registration{}, Step(9)))
}

func TestResolve(t *testing.T) {
	reg := domain.Registration{
		Status:          domain.StatusIncorporationProcessing,
		PaymentApproved: true,
		DetailsApproved: true,
	}
	st := Resolve(reg)
	assert.Equal(t, StepDocumentation, st.ActiveStep)
	assert.Equal(t, []Step{StepPayment, StepCompanyDetails, StepDocumentation}, st.Navigable)
}
