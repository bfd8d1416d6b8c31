package config

import (
	"os"

	"github.com/anyproto/any-sync/app"
	"gopkg.in/yaml.v3"

	"github.com/azydesilva/ecorporate-server/adminapi"
	"github.com/azydesilva/ecorporate-server/db"
	"github.com/azydesilva/ecorporate-server/notify"
	"github.com/azydesilva/ecorporate-server/pendingdocs"
	"github.com/azydesilva/ecorporate-server/regcache"
	"github.com/azydesilva/ecorporate-server/registration"
	"github.com/azydesilva/ecorporate-server/store"
)

const CName = "config"

func NewFromFile(path string) (c *Config, err error) {
	c = &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return
}

type Config struct {
	Mongo        db.Mongo            `yaml:"mongo"`
	Redis        regcache.Config     `yaml:"redis"`
	Notify       notify.Config       `yaml:"notify"`
	PendingDocs  pendingdocs.Config  `yaml:"pendingDocs"`
	Registration registration.Config `yaml:"registration"`
	S3Store      store.Config        `yaml:"s3Store"`
	AdminApi     adminapi.Config     `yaml:"adminApi"`
}

func (c *Config) Init(a *app.App) (err error) {
	return nil
}

func (c *Config) Name() (name string) {
	return CName
}

func (c *Config) GetMongo() db.Mongo {
	return c.Mongo
}

func (c *Config) GetRedis() regcache.Config {
	return c.Redis
}

func (c *Config) GetNotify() notify.Config {
	return c.Notify
}

func (c *Config) GetPendingDocs() pendingdocs.Config {
	return c.PendingDocs
}

func (c *Config) GetRegistration() registration.Config {
	return c.Registration
}

func (c *Config) GetS3Store() store.Config {
	return c.S3Store
}

func (c *Config) GetAdminApi() adminapi.Config {
	return c.AdminApi
}
