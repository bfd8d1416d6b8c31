package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const CName = "notify"

var log = logger.NewNamed(CName)

const (
	EventPaymentApproved    = "payment-approved"
	EventPaymentRejected    = "payment-rejected"
	EventDetailsApproved    = "details-approved"
	EventDocumentsApproved  = "documents-approved"
	EventDocumentsPublished = "documents-published"
	EventCompleted          = "completed"
)

type Event struct {
	RegistrationId string `json:"registrationId"`
	Kind           string `json:"kind"`
	Timestamp      int64  `json:"timestamp"`
}

func New() Service {
	return new(service)
}

// Service delivers workflow events to interested listeners. Delivery is
// best-effort: failures are logged and never propagated to the caller.
type Service interface {
	Notify(ctx context.Context, registrationId, kind string)
	app.ComponentRunnable
}

type configGetter interface {
	GetNotify() Config
}

type service struct {
	conf   Config
	client *redis.Client
}

func (s *service) Init(a *app.App) (err error) {
	s.conf = a.MustComponent("config").(configGetter).GetNotify()
	if s.conf.Channel == "" {
		s.conf.Channel = "ecorporate.events"
	}
	s.client = redis.NewClient(&redis.Options{
		Addr:     s.conf.Addr,
		Password: s.conf.Password,
		DB:       s.conf.DB,
	})
	return
}

func (s *service) Name() (name string) {
	return CName
}

func (s *service) Run(ctx context.Context) (err error) {
	return
}

func (s *service) Notify(ctx context.Context, registrationId, kind string) {
	data, err := json.Marshal(Event{
		RegistrationId: registrationId,
		Kind:           kind,
		Timestamp:      time.Now().Unix(),
	})
	if err != nil {
		log.Warn("marshal event", zap.Error(err))
		return
	}
	if err = s.client.Publish(ctx, s.conf.Channel, data).Err(); err != nil {
		log.Warn("publish event", zap.String("registrationId", registrationId), zap.String("kind", kind), zap.Error(err))
	}
}

func (s *service) Close(ctx context.Context) (err error) {
	if s.client != nil {
		return s.client.Close()
	}
	return
}
