package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/azydesilva/ecorporate-server/domain"
	"github.com/azydesilva/ecorporate-server/notify"
	"github.com/azydesilva/ecorporate-server/regcache"
	"github.com/azydesilva/ecorporate-server/registration/registrationrepo"
	"github.com/azydesilva/ecorporate-server/workflow"
)

const CName = "registration.service"

var log = logger.NewNamed(CName)

var (
	ErrInvalidTransition   = errors.New("invalid workflow transition")
	ErrInvalidDetails      = errors.New("invalid company details")
	ErrInsufficientPayment = errors.New("payment does not cover the incorporation fee")
)

func New() Service {
	return new(service)
}

// Service owns the registration record lifecycle up to document publishing:
// reads with a cache fallback, gate approvals and the company-details update.
type Service interface {
	Create(ctx context.Context, reg domain.Registration) (created domain.Registration, err error)
	Get(ctx context.Context, id string) (reg domain.Registration, err error)
	Update(ctx context.Context, reg domain.Registration) (updated domain.Registration, err error)
	List(ctx context.Context, status domain.RegistrationStatus) ([]domain.Registration, error)
	Workflow(ctx context.Context, id string) (st workflow.State, err error)

	UpdateDetails(ctx context.Context, id string, details domain.CompanyDetails) (reg domain.Registration, err error)
	ApprovePayment(ctx context.Context, id string) (reg domain.Registration, err error)
	RejectPayment(ctx context.Context, id string) (reg domain.Registration, err error)
	ApproveDetails(ctx context.Context, id string) (reg domain.Registration, err error)
	ApproveDocuments(ctx context.Context, id string) (reg domain.Registration, err error)
	Complete(ctx context.Context, id string) (reg domain.Registration, err error)
	app.ComponentRunnable
}

type service struct {
	repo     registrationrepo.RegistrationRepo
	cache    regcache.Cache
	notify   notify.Service
	validate *validator.Validate
	fee      decimal.Decimal
}

func (s *service) Init(a *app.App) (err error) {
	s.repo = a.MustComponent(registrationrepo.CName).(registrationrepo.RegistrationRepo)
	s.cache = a.MustComponent(regcache.CName).(regcache.Cache)
	s.notify = a.MustComponent(notify.CName).(notify.Service)
	s.validate = validator.New()
	conf := a.MustComponent("config").(configGetter).GetRegistration()
	if conf.IncorporationFee != "" {
		if s.fee, err = decimal.NewFromString(conf.IncorporationFee); err != nil {
			return fmt.Errorf("bad incorporationFee %q: %w", conf.IncorporationFee, err)
		}
	}
	return
}

func (s *service) Name() (name string) {
	return CName
}

func (s *service) Run(ctx context.Context) (err error) {
	return
}

func (s *service) Create(ctx context.Context, reg domain.Registration) (created domain.Registration, err error) {
	if err = s.validate.Struct(reg.Details); err != nil {
		return domain.Registration{}, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	if created, err = s.repo.Create(ctx, reg); err != nil {
		return
	}
	s.refreshCache(ctx, created)
	return
}

// Get reads from the primary store and falls back to the last cached snapshot
// when the primary is unavailable. Not-found is not masked by the fallback.
func (s *service) Get(ctx context.Context, id string) (reg domain.Registration, err error) {
	reg, err = s.repo.Get(ctx, id)
	if err == nil {
		s.refreshCache(ctx, reg)
		return
	}
	if errors.Is(err, registrationrepo.ErrNotFound) {
		return
	}
	cached, cacheErr := s.cache.Get(ctx, id)
	if cacheErr != nil {
		return domain.Registration{}, err
	}
	log.Warn("primary store unavailable, served cached registration", zap.String("id", id), zap.Error(err))
	return cached, nil
}

func (s *service) Update(ctx context.Context, reg domain.Registration) (updated domain.Registration, err error) {
	if updated, err = s.repo.Update(ctx, reg); err != nil {
		return
	}
	s.refreshCache(ctx, updated)
	return
}

func (s *service) List(ctx context.Context, status domain.RegistrationStatus) ([]domain.Registration, error) {
	return s.repo.List(ctx, status)
}

func (s *service) Workflow(ctx context.Context, id string) (st workflow.State, err error) {
	reg, err := s.Get(ctx, id)
	if err != nil {
		return
	}
	return workflow.Resolve(reg), nil
}

func (s *service) UpdateDetails(ctx context.Context, id string, details domain.CompanyDetails) (reg domain.Registration, err error) {
	if err = s.validate.Struct(details); err != nil {
		return domain.Registration{}, fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	if reg, err = s.repo.Get(ctx, id); err != nil {
		return
	}
	if reg.DetailsApproved {
		return domain.Registration{}, fmt.Errorf("%w: details already approved", ErrInvalidTransition)
	}
	reg.Details = details
	return s.Update(ctx, reg)
}

func (s *service) ApprovePayment(ctx context.Context, id string) (reg domain.Registration, err error) {
	return s.transition(ctx, id, notify.EventPaymentApproved, func(reg *domain.Registration) error {
		if reg.Status != domain.StatusPaymentProcessing && reg.Status != domain.StatusPaymentRejected {
			return fmt.Errorf("%w: approve payment from %q", ErrInvalidTransition, reg.Status)
		}
		if err := s.checkFee(reg.Payment); err != nil {
			return err
		}
		reg.PaymentApproved = true
		reg.Payment.PaidAt = time.Now().Unix()
		reg.Status = domain.StatusDocumentationProcessing
		return nil
	})
}

func (s *service) RejectPayment(ctx context.Context, id string) (reg domain.Registration, err error) {
	return s.transition(ctx, id, notify.EventPaymentRejected, func(reg *domain.Registration) error {
		if reg.Status != domain.StatusPaymentProcessing {
			return fmt.Errorf("%w: reject payment from %q", ErrInvalidTransition, reg.Status)
		}
		reg.Status = domain.StatusPaymentRejected
		return nil
	})
}

func (s *service) ApproveDetails(ctx context.Context, id string) (reg domain.Registration, err error) {
	return s.transition(ctx, id, notify.EventDetailsApproved, func(reg *domain.Registration) error {
		if reg.Status != domain.StatusDocumentationProcessing || !reg.PaymentApproved {
			return fmt.Errorf("%w: approve details from %q", ErrInvalidTransition, reg.Status)
		}
		reg.DetailsApproved = true
		reg.Status = domain.StatusIncorporationProcessing
		return nil
	})
}

func (s *service) ApproveDocuments(ctx context.Context, id string) (reg domain.Registration, err error) {
	return s.transition(ctx, id, notify.EventDocumentsApproved, func(reg *domain.Registration) error {
		if !reg.DetailsApproved ||
			(reg.Status != domain.StatusIncorporationProcessing && reg.Status != domain.StatusDocumentsPublished) {
			return fmt.Errorf("%w: approve documents from %q", ErrInvalidTransition, reg.Status)
		}
		reg.DocumentsApproved = true
		reg.Status = domain.StatusDocumentsSubmitted
		return nil
	})
}

func (s *service) Complete(ctx context.Context, id string) (reg domain.Registration, err error) {
	return s.transition(ctx, id, notify.EventCompleted, func(reg *domain.Registration) error {
		if !reg.DocumentsApproved || reg.Status != domain.StatusDocumentsSubmitted {
			return fmt.Errorf("%w: complete from %q", ErrInvalidTransition, reg.Status)
		}
		reg.Status = domain.StatusCompleted
		return nil
	})
}

func (s *service) transition(ctx context.Context, id, event string, apply func(reg *domain.Registration) error) (reg domain.Registration, err error) {
	if reg, err = s.repo.Get(ctx, id); err != nil {
		return
	}
	if err = apply(&reg); err != nil {
		return domain.Registration{}, err
	}
	if reg, err = s.Update(ctx, reg); err != nil {
		return
	}
	s.notify.Notify(ctx, reg.Id, event)
	return
}

// checkFee verifies the recorded payment covers the configured fee. A zero
// configured fee disables the check.
func (s *service) checkFee(payment domain.Payment) error {
	if s.fee.IsZero() {
		return nil
	}
	amount, err := decimal.NewFromString(payment.Amount)
	if err != nil {
		return fmt.Errorf("%w: bad amount %q", ErrInsufficientPayment, payment.Amount)
	}
	if amount.LessThan(s.fee) {
		return fmt.Errorf("%w: paid %s of %s", ErrInsufficientPayment, amount, s.fee)
	}
	return nil
}

func (s *service) refreshCache(ctx context.Context, reg domain.Registration) {
	if err := s.cache.Set(ctx, reg); err != nil {
		log.Warn("cache refresh failed", zap.String("id", reg.Id), zap.Error(err))
	}
}

func (s *service) Close(ctx context.Context) (err error) {
	return
}
