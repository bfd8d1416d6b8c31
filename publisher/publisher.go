package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/azydesilva/ecorporate-server/domain"
	"github.com/azydesilva/ecorporate-server/notify"
	"github.com/azydesilva/ecorporate-server/pendingdocs"
	"github.com/azydesilva/ecorporate-server/registration"
	"github.com/azydesilva/ecorporate-server/store"
)

const CName = "publisher"

var log = logger.NewNamed(CName)

func New() Service {
	return &publishService{inflight: map[string]struct{}{}}
}

// Service turns the staged documents of a registration into persisted ones and
// writes the merged record back in a single update. Uploads are attempted at
// most once per staged item per call; nothing is retried and blobs uploaded
// before a late failure stay orphaned in storage.
type Service interface {
	Publish(ctx context.Context, registrationId string) (reg domain.Registration, err error)
	app.ComponentRunnable
}

// the publisher only needs the read-merge-write slice of its collaborators
type registrationStore interface {
	Get(ctx context.Context, id string) (domain.Registration, error)
	Update(ctx context.Context, reg domain.Registration) (domain.Registration, error)
}

type blobStore interface {
	UploadDocument(ctx context.Context, ownerId string, file store.File) (domain.Document, error)
}

type notifier interface {
	Notify(ctx context.Context, registrationId, kind string)
}

type publishService struct {
	reg     registrationStore
	pending pendingdocs.Service
	store   blobStore
	notify  notifier

	mu       sync.Mutex
	inflight map[string]struct{}
}

func (p *publishService) Init(a *app.App) (err error) {
	p.reg = a.MustComponent(registration.CName).(registrationStore)
	p.pending = a.MustComponent(pendingdocs.CName).(pendingdocs.Service)
	p.store = a.MustComponent(store.CName).(blobStore)
	p.notify = a.MustComponent(notify.CName).(notifier)
	return
}

func (p *publishService) Name() (name string) {
	return CName
}

func (p *publishService) Run(ctx context.Context) (err error) {
	return
}

var singleSlots = []domain.SlotKind{
	domain.SlotForm1,
	domain.SlotForm19,
	domain.SlotAoa,
	domain.SlotCertificate,
}

var sequenceSlots = []domain.SlotKind{
	domain.SlotStep3Additional,
	domain.SlotStep4Additional,
}

func (p *publishService) Publish(ctx context.Context, registrationId string) (reg domain.Registration, err error) {
	if !p.acquire(registrationId) {
		return domain.Registration{}, ErrPublishInProgress
	}
	defer p.release(registrationId)

	pending := p.pending.List(registrationId)

	// the fresh read is the synchronization point; everything below merges
	// into this working copy
	if reg, err = p.reg.Get(ctx, registrationId); err != nil {
		return domain.Registration{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	for _, kind := range singleSlots {
		pd, ok := pending.Single(kind)
		if !ok || len(pd.Payload) == 0 {
			continue
		}
		doc, upErr := p.store.UploadDocument(ctx, reg.Id, store.FromPending(pd))
		if upErr != nil {
			return domain.Registration{}, &UploadError{Slot: kind.String(), Err: upErr}
		}
		setSingleSlot(&reg, kind, &doc)
	}

	if reg.Form18, err = p.mergeForm18(ctx, reg, pending); err != nil {
		return domain.Registration{}, err
	}
	if err = checkForm18(reg); err != nil {
		return domain.Registration{}, err
	}

	for _, kind := range sequenceSlots {
		var merged []domain.Document
		if merged, err = p.mergeSequence(ctx, reg, kind, pending); err != nil {
			return domain.Registration{}, err
		}
		setSequenceSlot(&reg, kind, merged)
	}

	reg.DocumentsPublished = true
	reg.DocumentsPublishedAt = time.Now().Unix()
	reg.Status = domain.StatusDocumentsPublished

	if reg, err = p.reg.Update(ctx, reg); err != nil {
		return domain.Registration{}, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	p.pending.Clear(registrationId)
	p.notify.Notify(ctx, registrationId, notify.EventDocumentsPublished)
	log.Info("documents published", zap.String("registrationId", registrationId), zap.Int("staged", len(pending)))
	return reg, nil
}

// mergeForm18 rebuilds the form18 array by index: staged payloads are uploaded
// and replace their slot, staged documents already in storage replace it
// directly, persisted entries carry over, untouched slots stay nil.
func (p *publishService) mergeForm18(ctx context.Context, reg domain.Registration, pending domain.PendingSet) (merged []*domain.Document, err error) {
	length := len(reg.Form18)
	if maxIdx := pending.MaxIndex(domain.SlotForm18); maxIdx+1 > length {
		length = maxIdx + 1
	}
	if length == 0 {
		return nil, nil
	}
	merged = make([]*domain.Document, length)
	for i := 0; i < length; i++ {
		if pd, ok := pending.AtIndex(domain.SlotForm18, i); ok {
			if len(pd.Payload) > 0 {
				doc, upErr := p.store.UploadDocument(ctx, reg.Id, store.FromPending(pd))
				if upErr != nil {
					return nil, &UploadError{Slot: pd.Slot.String(), Err: upErr}
				}
				merged[i] = &doc
				continue
			}
			if pd.Uploaded != nil {
				merged[i] = pd.Uploaded
				continue
			}
		}
		if i < len(reg.Form18) {
			merged[i] = reg.Form18[i]
		}
	}
	return
}

// checkForm18 gates the publish: one non-nil form18 entry per director, judged
// against the freshly fetched directors sequence.
func checkForm18(reg domain.Registration) error {
	if len(reg.Directors) == 0 && len(reg.Form18) == 0 {
		return nil
	}
	if len(reg.Form18) != len(reg.Directors) {
		return fmt.Errorf("%w: have %d of %d", ErrIncompleteForm18, len(reg.Form18), len(reg.Directors))
	}
	for i, doc := range reg.Form18 {
		if doc == nil {
			return fmt.Errorf("%w: director %d has no form", ErrIncompleteForm18, i)
		}
	}
	return nil
}

// mergeSequence appends staged items to the persisted sequence. Append, never
// replace: the customer may have added entries since the admin's last fetch.
func (p *publishService) mergeSequence(ctx context.Context, reg domain.Registration, kind domain.SlotKind, pending domain.PendingSet) (merged []domain.Document, err error) {
	merged = sequenceSlot(reg, kind)
	for _, pd := range pending.Sequence(kind) {
		if len(pd.Payload) > 0 {
			doc, upErr := p.store.UploadDocument(ctx, reg.Id, store.FromPending(pd))
			if upErr != nil {
				return nil, &UploadError{Slot: pd.Slot.String(), Err: upErr}
			}
			merged = append(merged, doc)
			continue
		}
		if pd.Uploaded != nil {
			merged = append(merged, *pd.Uploaded)
		}
	}
	return
}

func setSingleSlot(reg *domain.Registration, kind domain.SlotKind, doc *domain.Document) {
	switch kind {
	case domain.SlotForm1:
		reg.Form1 = doc
	case domain.SlotForm19:
		reg.Form19 = doc
	case domain.SlotAoa:
		reg.Aoa = doc
	case domain.SlotCertificate:
		reg.IncorporationCertificate = doc
	}
}

func sequenceSlot(reg domain.Registration, kind domain.SlotKind) []domain.Document {
	switch kind {
	case domain.SlotStep3Additional:
		return reg.Step3AdditionalDocs
	case domain.SlotStep4Additional:
		return reg.Step4AdditionalDocs
	}
	return nil
}

func setSequenceSlot(reg *domain.Registration, kind domain.SlotKind, docs []domain.Document) {
	switch kind {
	case domain.SlotStep3Additional:
		reg.Step3AdditionalDocs = docs
	case domain.SlotStep4Additional:
		reg.Step4AdditionalDocs = docs
	}
}

func (p *publishService) acquire(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *publishService) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}

func (p *publishService) Close(ctx context.Context) (err error) {
	return
}
