package regcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"

	"github.com/azydesilva/ecorporate-server/domain"
)

const CName = "registration.cache"

var ErrNotCached = errors.New("registration not cached")

func New() Cache {
	return new(regCache)
}

// Cache is the fallback tier of the persistence layer: a redis snapshot of the
// last registration state seen by this node. Reads hit it only when the
// primary store fails; writes refresh it best-effort.
type Cache interface {
	Get(ctx context.Context, id string) (reg domain.Registration, err error)
	Set(ctx context.Context, reg domain.Registration) (err error)
	Delete(ctx context.Context, id string) (err error)
	app.ComponentRunnable
}

type configGetter interface {
	GetRedis() Config
}

type regCache struct {
	conf   Config
	client *redis.Client
	ttl    time.Duration
}

func (c *regCache) Init(a *app.App) (err error) {
	c.conf = a.MustComponent("config").(configGetter).GetRedis()
	c.ttl = time.Duration(c.conf.TTLMinutes) * time.Minute
	if c.ttl <= 0 {
		c.ttl = time.Hour
	}
	c.client = redis.NewClient(&redis.Options{
		Addr:     c.conf.Addr,
		Password: c.conf.Password,
		DB:       c.conf.DB,
	})
	return
}

func (c *regCache) Name() (name string) {
	return CName
}

func (c *regCache) Run(ctx context.Context) (err error) {
	return c.client.Ping(ctx).Err()
}

func (c *regCache) Get(ctx context.Context, id string) (reg domain.Registration, err error) {
	packed, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Registration{}, ErrNotCached
		}
		return
	}
	data, err := snappy.Decode(nil, packed)
	if err != nil {
		return
	}
	if err = json.Unmarshal(data, &reg); err != nil {
		return
	}
	return
}

func (c *regCache) Set(ctx context.Context, reg domain.Registration) (err error) {
	data, err := json.Marshal(reg)
	if err != nil {
		return
	}
	return c.client.Set(ctx, cacheKey(reg.Id), snappy.Encode(nil, data), c.ttl).Err()
}

func (c *regCache) Delete(ctx context.Context, id string) (err error) {
	return c.client.Del(ctx, cacheKey(id)).Err()
}

func (c *regCache) Close(ctx context.Context) (err error) {
	if c.client != nil {
		return c.client.Close()
	}
	return
}

func cacheKey(id string) string {
	return "registration:" + id
}
