package domain

type RegistrationStatus string

const (
	StatusPaymentProcessing       RegistrationStatus = "payment-processing"
	StatusPaymentRejected         RegistrationStatus = "payment-rejected"
	StatusDocumentationProcessing RegistrationStatus = "documentation-processing"
	StatusIncorporationProcessing RegistrationStatus = "incorporation-processing"
	StatusDocumentsSubmitted      RegistrationStatus = "documents-submitted"
	StatusDocumentsPublished      RegistrationStatus = "documents-published"
	StatusCompleted               RegistrationStatus = "completed"
)

type Director struct {
	Name        string `json:"name" bson:"name"`
	Nic         string `json:"nic" bson:"nic"`
	Address     string `json:"address" bson:"address"`
	Email       string `json:"email" bson:"email"`
	Phone       string `json:"phone" bson:"phone"`
	Shares      int64  `json:"shares" bson:"shares"`
	IsSecretary bool   `json:"isSecretary" bson:"isSecretary"`
}

// Payment records the step-1 fee payment. Amount is a decimal string; the
// registration service parses and checks it against the configured fee.
type Payment struct {
	Amount    string `json:"amount" bson:"amount"`
	Currency  string `json:"currency" bson:"currency"`
	Reference string `json:"reference" bson:"reference"`
	Method    string `json:"method" bson:"method"`
	PaidAt    int64  `json:"paidAt" bson:"paidAt,omitempty"`
}

type CompanyDetails struct {
	NameEnglish   string `json:"nameEnglish" bson:"nameEnglish" validate:"required,min=2"`
	NameSinhala   string `json:"nameSinhala" bson:"nameSinhala"`
	BusinessType  string `json:"businessType" bson:"businessType" validate:"required"`
	Address       string `json:"address" bson:"address" validate:"required"`
	PostalCode    string `json:"postalCode" bson:"postalCode"`
	Email         string `json:"email" bson:"email" validate:"required,email"`
	Phone         string `json:"phone" bson:"phone" validate:"required,e164|numeric"`
	Objectives    string `json:"objectives" bson:"objectives"`
	SharesTotal   int64  `json:"sharesTotal" bson:"sharesTotal" validate:"gte=0"`
	ShareCapital  int64  `json:"shareCapital" bson:"shareCapital" validate:"gte=0"`
	CompanyNumber string `json:"companyNumber" bson:"companyNumber,omitempty"`
}

// Registration is the central workflow record. It is exclusively owned by the
// persistence layer; everything the admin stages before publish lives in
// pendingdocs, not here.
type Registration struct {
	Id       string             `json:"id" bson:"_id"`
	Identity string             `json:"identity" bson:"identity"`
	Status   RegistrationStatus `json:"status" bson:"status"`

	PaymentApproved   bool `json:"paymentApproved" bson:"paymentApproved"`
	DetailsApproved   bool `json:"detailsApproved" bson:"detailsApproved"`
	DocumentsApproved bool `json:"documentsApproved" bson:"documentsApproved"`

	Details   CompanyDetails `json:"details" bson:"details"`
	Payment   Payment        `json:"payment" bson:"payment"`
	Directors []Director     `json:"directors" bson:"directors"`

	Form1  *Document `json:"form1" bson:"form1,omitempty"`
	Form19 *Document `json:"form19" bson:"form19,omitempty"`
	Aoa    *Document `json:"aoa" bson:"aoa,omitempty"`
	// Form18 is index-aligned with Directors; entries may be nil until the
	// director's form is published.
	Form18                   []*Document `json:"form18" bson:"form18,omitempty"`
	Step3AdditionalDocs      []Document  `json:"step3AdditionalDocs" bson:"step3AdditionalDocs,omitempty"`
	IncorporationCertificate *Document   `json:"incorporationCertificate" bson:"incorporationCertificate,omitempty"`
	Step4AdditionalDocs      []Document  `json:"step4AdditionalDocs" bson:"step4AdditionalDocs,omitempty"`

	DocumentsPublished   bool  `json:"documentsPublished" bson:"documentsPublished"`
	DocumentsPublishedAt int64 `json:"documentsPublishedAt" bson:"documentsPublishedAt,omitempty"`

	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}
