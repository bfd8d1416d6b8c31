package pendingdocs

type Config struct {
	TTLMinutes int `yaml:"ttlMinutes"`
}
