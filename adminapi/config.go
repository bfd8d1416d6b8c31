package adminapi

type ConfigGetter interface {
	GetAdminApi() Config
}

type Config struct {
	Addr string `yaml:"addr"`
}
