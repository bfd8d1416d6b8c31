package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azydesilva/ecorporate-server/domain"
	"github.com/azydesilva/ecorporate-server/notify"
	"github.com/azydesilva/ecorporate-server/pendingdocs"
	"github.com/azydesilva/ecorporate-server/registration"
	"github.com/azydesilva/ecorporate-server/store"
)

var ctx = context.Background()

func newTestReg() domain.Registration {
	return domain.Registration{
		Id:              "reg1",
		Status:          domain.StatusIncorporationProcessing,
		PaymentApproved: true,
		DetailsApproved: true,
		Directors:       []domain.Director{{Name: "d1"}, {Name: "d2"}},
		Form18:          []*domain.Document{persistedDoc("f18-0"), persistedDoc("f18-1")},
		UpdatedAt:       100,
	}
}

func persistedDoc(name string) *domain.Document {
	return &domain.Document{
		Name:      name,
		URL:       "https://blobs.test/" + name,
		StorageId: "sid-" + name,
		Size:      1,
	}
}

func staged(kind domain.SlotKind, index int, name string) domain.PendingDocument {
	return domain.PendingDocument{
		Slot:    domain.SlotRef{Kind: kind, Index: index},
		Name:    name,
		Payload: []byte(name + " bytes"),
	}
}

func TestPublish_Singles(t *testing.T) {
	fx := newFixture(t, newTestReg())
	fx.pending.Stage("reg1", staged(domain.SlotForm1, 0, "form1.pdf"))
	fx.pending.Stage("reg1", staged(domain.SlotForm19, 0, "form19.pdf"))
	fx.pending.Stage("reg1", staged(domain.SlotAoa, 0, "aoa.pdf"))

	reg, err := fx.Publish(ctx, "reg1")
	require.NoError(t, err)

	require.NotNil(t, reg.Form1)
	assert.True(t, reg.Form1.Persisted())
	assert.Equal(t, "form1.pdf", reg.Form1.Name)
	require.NotNil(t, reg.Form19)
	require.NotNil(t, reg.Aoa)

	assert.True(t, reg.DocumentsPublished)
	assert.NotZero(t, reg.DocumentsPublishedAt)
	assert.Equal(t, domain.StatusDocumentsPublished, reg.Status)

	// staged set is gone and the event went out
	assert.Empty(t, fx.pending.List("reg1"))
	assert.Equal(t, []string{notify.EventDocumentsPublished}, fx.notify.events)

	// persisted copy matches the returned one
	stored, err := fx.repo.Get(ctx, "reg1")
	require.NoError(t, err)
	assert.Equal(t, reg, stored)
}

func TestPublish_SequenceMergeIsAdditive(t *testing.T) {
	reg := newTestReg()
	reg.Step3AdditionalDocs = []domain.Document{*persistedDoc("existing")}
	fx := newFixture(t, reg)
	fx.pending.Stage("reg1", staged(domain.SlotStep3Additional, 0, "extra.pdf"))

	published, err := fx.Publish(ctx, "reg1")
	require.NoError(t, err)
	require.Len(t, published.Step3AdditionalDocs, 2)
	assert.Equal(t, "existing", published.Step3AdditionalDocs[0].Name)
	assert.Equal(t, "extra.pdf", published.Step3AdditionalDocs[1].Name)
}

func TestPublish_SequenceMergesUploadedItems(t *testing.T) {
	fx := newFixture(t, newTestReg())
	fx.pending.Stage("reg1", domain.PendingDocument{
		Slot:     domain.SlotRef{Kind: domain.SlotStep4Additional},
		Name:     "oob.pdf",
		Uploaded: persistedDoc("oob.pdf"),
	})

	published, err := fx.Publish(ctx, "reg1")
	require.NoError(t, err)
	require.Len(t, published.Step4AdditionalDocs, 1)
	assert.Equal(t, "oob.pdf", published.Step4AdditionalDocs[0].Name)
	// no payload, nothing to upload
	assert.Zero(t, fx.blob.uploads)
}

func TestPublish_Form18(t *testing.T) {
	t.Run("staged forms replace their index", func(t *testing.T) {
		fx := newFixture(t, newTestReg())
		fx.pending.Stage("reg1", staged(domain.SlotForm18, 1, "f18-new.pdf"))

		published, err := fx.Publish(ctx, "reg1")
		require.NoError(t, err)
		require.Len(t, published.Form18, 2)
		assert.Equal(t, "f18-0", published.Form18[0].Name)
		assert.Equal(t, "f18-new.pdf", published.Form18[1].Name)
	})
	t.Run("missing director form aborts", func(t *testing.T) {
		reg := newTestReg()
		reg.Directors = append(reg.Directors, domain.Director{Name: "d3"})
		fx := newFixture(t, reg)

		_, err := fx.Publish(ctx, "reg1")
		assert.ErrorIs(t, err, ErrIncompleteForm18)
		assert.Zero(t, fx.repo.updates)
	})
	t.Run("nil slot aborts", func(t *testing.T) {
		reg := newTestReg()
		reg.Form18[1] = nil
		fx := newFixture(t, reg)

		_, err := fx.Publish(ctx, "reg1")
		assert.ErrorIs(t, err, ErrIncompleteForm18)
		assert.Zero(t, fx.repo.updates)
	})
	t.Run("staged form already in storage replaces its index", func(t *testing.T) {
		fx := newFixture(t, newTestReg())
		fx.pending.Stage("reg1", domain.PendingDocument{
			Slot:     domain.SlotRef{Kind: domain.SlotForm18, Index: 1},
			Name:     "f18-oob.pdf",
			Uploaded: persistedDoc("f18-oob.pdf"),
		})

		published, err := fx.Publish(ctx, "reg1")
		require.NoError(t, err)
		require.Len(t, published.Form18, 2)
		assert.Equal(t, "f18-oob.pdf", published.Form18[1].Name)
		// already in storage, nothing to upload
		assert.Zero(t, fx.blob.uploads)
	})
	t.Run("staged form fills the gap", func(t *testing.T) {
		reg := newTestReg()
		reg.Form18[1] = nil
		fx := newFixture(t, reg)
		fx.pending.Stage("reg1", staged(domain.SlotForm18, 1, "f18-late.pdf"))

		published, err := fx.Publish(ctx, "reg1")
		require.NoError(t, err)
		assert.Equal(t, "f18-late.pdf", published.Form18[1].Name)
	})
}

func TestPublish_UploadFailureAborts(t *testing.T) {
	fx := newFixture(t, newTestReg())
	fx.blob.failFor["form1.pdf"] = errors.New("bucket unreachable")
	fx.pending.Stage("reg1", staged(domain.SlotForm1, 0, "form1.pdf"))

	_, err := fx.Publish(ctx, "reg1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUploadFailed)
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "form1", upErr.Slot)

	// nothing was written and the staged set survives for a retry
	stored, err := fx.repo.Get(ctx, "reg1")
	require.NoError(t, err)
	assert.False(t, stored.DocumentsPublished)
	assert.Zero(t, fx.repo.updates)
	assert.Len(t, fx.pending.List("reg1"), 1)
	assert.Empty(t, fx.notify.events)
}

func TestPublish_FetchFailure(t *testing.T) {
	fx := newFixture(t, newTestReg())
	fx.repo.getErr = errors.New("mongo down")
	_, err := fx.Publish(ctx, "reg1")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestPublish_PersistFailure(t *testing.T) {
	fx := newFixture(t, newTestReg())
	fx.repo.updateErr = errors.New("mongo down")
	fx.pending.Stage("reg1", staged(domain.SlotAoa, 0, "aoa.pdf"))

	_, err := fx.Publish(ctx, "reg1")
	assert.ErrorIs(t, err, ErrPersistFailed)
	// the uploaded blob is orphaned, the staged set survives
	assert.Equal(t, 1, fx.blob.uploads)
	assert.Len(t, fx.pending.List("reg1"), 1)
}

func TestPublish_EmptyPendingIsIdempotent(t *testing.T) {
	reg := newTestReg()
	reg.Status = domain.StatusDocumentsPublished
	reg.DocumentsPublished = true
	reg.DocumentsPublishedAt = 50
	fx := newFixture(t, reg)

	published, err := fx.Publish(ctx, "reg1")
	require.NoError(t, err)
	assert.Zero(t, fx.blob.uploads)
	assert.True(t, published.DocumentsPublished)
	assert.Greater(t, published.DocumentsPublishedAt, int64(50))

	expect := reg
	expect.DocumentsPublishedAt = published.DocumentsPublishedAt
	expect.UpdatedAt = published.UpdatedAt
	assert.Equal(t, expect, published)
}

func TestPublish_SequentialCalls(t *testing.T) {
	fx := newFixture(t, newTestReg())
	fx.pending.Stage("reg1", staged(domain.SlotAoa, 0, "aoa-v1.pdf"))

	first, err := fx.Publish(ctx, "reg1")
	require.NoError(t, err)
	require.NotNil(t, first.Aoa)
	require.True(t, first.Aoa.Persisted())

	second, err := fx.Publish(ctx, "reg1")
	require.NoError(t, err)
	assert.Equal(t, first.Aoa, second.Aoa)
	assert.Equal(t, 1, fx.blob.uploads)
}

func TestPublish_InFlightGuard(t *testing.T) {
	fx := newFixture(t, newTestReg())
	fx.blob.block = make(chan struct{})
	fx.pending.Stage("reg1", staged(domain.SlotForm1, 0, "form1.pdf"))

	done := make(chan error, 1)
	go func() {
		_, err := fx.Publish(ctx, "reg1")
		done <- err
	}()

	// wait for the first call to reach the upload
	select {
	case <-fx.blob.entered:
	case <-time.After(time.Second):
		t.Fatal("first publish never reached the store")
	}

	_, err := fx.Publish(ctx, "reg1")
	assert.ErrorIs(t, err, ErrPublishInProgress)

	close(fx.blob.block)
	require.NoError(t, <-done)

	// the guard is released after the first call settles
	_, err = fx.Publish(ctx, "reg1")
	require.NoError(t, err)
}

type fixture struct {
	Service
	pending pendingdocs.Service
	repo    *fakeRepo
	blob    *fakeBlob
	notify  *fakeNotify
	a       *app.App
}

func newFixture(t *testing.T, regs ...domain.Registration) *fixture {
	fx := &fixture{
		Service: New(),
		pending: pendingdocs.New(),
		repo:    newFakeRepo(regs...),
		blob:    newFakeBlob(),
		notify:  &fakeNotify{},
		a:       new(app.App),
	}
	fx.a.Register(&testConfig{}).
		Register(fx.repo).
		Register(fx.notify).
		Register(fx.pending).
		Register(fx.blob).
		Register(fx.Service)
	require.NoError(t, fx.a.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, fx.a.Close(ctx))
	})
	return fx
}

type testConfig struct{}

func (t *testConfig) Init(a *app.App) (err error) { return }
func (t *testConfig) Name() (name string)         { return "config" }

func (t *testConfig) GetPendingDocs() pendingdocs.Config {
	return pendingdocs.Config{TTLMinutes: 60}
}

type fakeRepo struct {
	mu        sync.Mutex
	regs      map[string]domain.Registration
	updates   int
	getErr    error
	updateErr error
}

func newFakeRepo(regs ...domain.Registration) *fakeRepo {
	f := &fakeRepo{regs: map[string]domain.Registration{}}
	for _, reg := range regs {
		f.regs[reg.Id] = reg
	}
	return f
}

func (f *fakeRepo) Init(a *app.App) (err error) { return }
func (f *fakeRepo) Name() (name string)         { return registration.CName }

func (f *fakeRepo) Get(ctx context.Context, id string) (domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Registration{}, f.getErr
	}
	reg, ok := f.regs[id]
	if !ok {
		return domain.Registration{}, errors.New("not found")
	}
	return reg, nil
}

func (f *fakeRepo) Update(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Registration{}, f.updateErr
	}
	reg.UpdatedAt++
	f.regs[reg.Id] = reg
	f.updates++
	return reg, nil
}

type fakeBlob struct {
	mu      sync.Mutex
	uploads int
	failFor map[string]error
	block   chan struct{}
	entered chan struct{}
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		failFor: map[string]error{},
		entered: make(chan struct{}, 16),
	}
}

func (f *fakeBlob) Init(a *app.App) (err error) { return }
func (f *fakeBlob) Name() (name string)         { return store.CName }

func (f *fakeBlob) UploadDocument(ctx context.Context, ownerId string, file store.File) (domain.Document, error) {
	f.entered <- struct{}{}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[file.Name]; err != nil {
		return domain.Document{}, err
	}
	f.uploads++
	return domain.Document{
		Name:        file.Name,
		MimeType:    file.ContentType(),
		Size:        int64(len(file.Payload)),
		URL:         "https://blobs.test/" + file.Name,
		StoragePath: ownerId + "/" + file.Name,
		StorageId:   fmt.Sprintf("sid-%d", f.uploads),
		UploadedAt:  time.Now().Unix(),
	}, nil
}

type fakeNotify struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotify) Init(a *app.App) (err error) { return }
func (f *fakeNotify) Name() (name string)         { return notify.CName }

func (f *fakeNotify) Notify(ctx context.Context, registrationId, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind)
}
