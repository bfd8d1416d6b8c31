package registration

type configGetter interface {
	GetRegistration() Config
}

type Config struct {
	// IncorporationFee is the minimum payment to approve step 1, as a
	// decimal string in the registrar's currency.
	IncorporationFee string `yaml:"incorporationFee"`
}
