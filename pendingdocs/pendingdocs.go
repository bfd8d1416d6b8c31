package pendingdocs

import (
	"context"
	"sync"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/anyproto/any-sync/util/periodicsync"
	"go.uber.org/zap"

	"github.com/azydesilva/ecorporate-server/domain"
)

const CName = "pendingdocs"

var log = logger.NewNamed(CName)

const cleanupIntervalSecs = 60

func New() Service {
	return &pendingDocs{sets: map[string]*entry{}}
}

// Service holds documents the admin staged but has not published yet. The set
// lives only in process memory: publish clears it, a restart loses it, and an
// abandoned set expires after the configured TTL.
type Service interface {
	Stage(registrationId string, doc domain.PendingDocument)
	// Discard drops a staged document; reports whether the slot was staged.
	Discard(registrationId string, slot domain.SlotRef) bool
	List(registrationId string) domain.PendingSet
	Clear(registrationId string)
	app.ComponentRunnable
}

type configGetter interface {
	GetPendingDocs() Config
}

type entry struct {
	docs    domain.PendingSet
	touched time.Time
}

type pendingDocs struct {
	mu     sync.Mutex
	sets   map[string]*entry
	ttl    time.Duration
	ticker periodicsync.PeriodicSync
}

func (p *pendingDocs) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configGetter).GetPendingDocs()
	p.ttl = time.Duration(conf.TTLMinutes) * time.Minute
	if p.ttl <= 0 {
		p.ttl = 24 * time.Hour
	}
	p.ticker = periodicsync.NewPeriodicSync(cleanupIntervalSecs, 0, p.cleanup, log)
	return
}

func (p *pendingDocs) Name() (name string) {
	return CName
}

func (p *pendingDocs) Run(ctx context.Context) (err error) {
	p.ticker.Run()
	return
}

func (p *pendingDocs) Stage(registrationId string, doc domain.PendingDocument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.sets[registrationId]
	if e == nil {
		e = &entry{}
		p.sets[registrationId] = e
	}
	e.touched = time.Now()
	// restaging the same slot replaces the earlier payload in place
	for i, existing := range e.docs {
		if existing.Slot == doc.Slot {
			e.docs[i] = doc
			return
		}
	}
	e.docs = append(e.docs, doc)
}

func (p *pendingDocs) Discard(registrationId string, slot domain.SlotRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.sets[registrationId]
	if e == nil {
		return false
	}
	e.touched = time.Now()
	for i, existing := range e.docs {
		if existing.Slot == slot {
			e.docs = append(e.docs[:i], e.docs[i+1:]...)
			return true
		}
	}
	return false
}

func (p *pendingDocs) List(registrationId string) domain.PendingSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.sets[registrationId]
	if e == nil {
		return nil
	}
	docs := make(domain.PendingSet, len(e.docs))
	copy(docs, e.docs)
	return docs
}

func (p *pendingDocs) Clear(registrationId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sets, registrationId)
}

func (p *pendingDocs) cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	deadline := time.Now().Add(-p.ttl)
	for id, e := range p.sets {
		if e.touched.Before(deadline) {
			delete(p.sets, id)
			log.Info("expired staged documents", zap.String("registrationId", id), zap.Int("count", len(e.docs)))
		}
	}
	return nil
}

func (p *pendingDocs) Close(ctx context.Context) (err error) {
	p.ticker.Close()
	return
}
