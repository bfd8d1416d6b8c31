package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/azydesilva/ecorporate-server/domain"
	"github.com/azydesilva/ecorporate-server/pendingdocs"
	"github.com/azydesilva/ecorporate-server/publisher"
	"github.com/azydesilva/ecorporate-server/registration"
	"github.com/azydesilva/ecorporate-server/registration/registrationrepo"
)

func New() AdminApi {
	return new(adminApi)
}

const CName = "adminapi"

var log = logger.NewNamed(CName)

// 25 MiB, matching the registrar's per-document limit
const maxUploadSize = 25 << 20

type AdminApi interface {
	app.ComponentRunnable
}

type adminApi struct {
	mux       *http.ServeMux
	server    *http.Server
	reg       registration.Service
	publisher publisher.Service
	pending   pendingdocs.Service
	config    Config
}

func (g *adminApi) Name() (name string) {
	return CName
}

func (g *adminApi) Init(a *app.App) (err error) {
	g.reg = a.MustComponent(registration.CName).(registration.Service)
	g.publisher = a.MustComponent(publisher.CName).(publisher.Service)
	g.pending = a.MustComponent(pendingdocs.CName).(pendingdocs.Service)
	g.config = a.MustComponent("config").(ConfigGetter).GetAdminApi()
	g.mux = http.NewServeMux()

	g.mux.HandleFunc("GET /api/registrations", g.listRegistrations)
	g.mux.HandleFunc("POST /api/registrations", g.createRegistration)
	g.mux.HandleFunc("GET /api/registrations/{id}", g.getRegistration)
	g.mux.HandleFunc("GET /api/registrations/{id}/workflow", g.getWorkflow)
	g.mux.HandleFunc("PUT /api/registrations/{id}/details", g.updateDetails)
	g.mux.HandleFunc("POST /api/registrations/{id}/payment/approve", g.transition(g.reg.ApprovePayment))
	g.mux.HandleFunc("POST /api/registrations/{id}/payment/reject", g.transition(g.reg.RejectPayment))
	g.mux.HandleFunc("POST /api/registrations/{id}/details/approve", g.transition(g.reg.ApproveDetails))
	g.mux.HandleFunc("POST /api/registrations/{id}/documents/approve", g.transition(g.reg.ApproveDocuments))
	g.mux.HandleFunc("POST /api/registrations/{id}/complete", g.transition(g.reg.Complete))
	g.mux.HandleFunc("POST /api/registrations/{id}/documents/{slot}", g.stageDocument)
	g.mux.HandleFunc("DELETE /api/registrations/{id}/documents/{slot}", g.discardDocument)
	g.mux.HandleFunc("GET /api/registrations/{id}/documents/pending", g.listPending)
	g.mux.HandleFunc("POST /api/registrations/{id}/publish", g.publish)
	g.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, errors.New("not found"))
	})

	g.server = &http.Server{Addr: g.config.Addr, Handler: g.mux}
	return
}

func (g *adminApi) Run(ctx context.Context) (err error) {
	var errCh = make(chan error)
	go func() {
		errCh <- g.server.ListenAndServe()
	}()
	select {
	case err = <-errCh:
		return err
	case <-time.After(200 * time.Millisecond):
		log.Info("admin api server started", zap.String("addr", g.config.Addr))
		return
	}
}

func (g *adminApi) listRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := g.reg.List(r.Context(), domain.RegistrationStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJson(w, http.StatusOK, regs)
}

func (g *adminApi) createRegistration(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	created, err := g.reg.Create(r.Context(), reg)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJson(w, http.StatusCreated, created)
}

func (g *adminApi) getRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := g.reg.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJson(w, http.StatusOK, reg)
}

func (g *adminApi) getWorkflow(w http.ResponseWriter, r *http.Request) {
	st, err := g.reg.Workflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJson(w, http.StatusOK, st)
}

func (g *adminApi) updateDetails(w http.ResponseWriter, r *http.Request) {
	var details domain.CompanyDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	reg, err := g.reg.UpdateDetails(r.Context(), r.PathValue("id"), details)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJson(w, http.StatusOK, reg)
}

func (g *adminApi) transition(do func(ctx context.Context, id string) (domain.Registration, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := do(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJson(w, http.StatusOK, reg)
	}
}

func (g *adminApi) stageDocument(w http.ResponseWriter, r *http.Request) {
	slot, err := parseSlot(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err = r.ParseMultipartForm(maxUploadSize); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	defer func() {
		_ = file.Close()
	}()
	// read one byte past the limit so an oversize file is rejected, not cut
	payload, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if len(payload) > maxUploadSize {
		writeErr(w, http.StatusRequestEntityTooLarge, fmt.Errorf("document exceeds %d bytes", maxUploadSize))
		return
	}
	g.pending.Stage(r.PathValue("id"), domain.PendingDocument{
		Slot:     slot,
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Payload:  payload,
	})
	writeJson(w, http.StatusAccepted, struct {
		Slot string `json:"slot"`
		Name string `json:"name"`
		Size int    `json:"size"`
	}{Slot: slot.String(), Name: header.Filename, Size: len(payload)})
}

func (g *adminApi) discardDocument(w http.ResponseWriter, r *http.Request) {
	slot, err := parseSlot(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if !g.pending.Discard(r.PathValue("id"), slot) {
		writeErr(w, http.StatusNotFound, errors.New("slot not staged"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *adminApi) listPending(w http.ResponseWriter, r *http.Request) {
	type stagedDoc struct {
		Slot string `json:"slot"`
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	var staged []stagedDoc
	for _, pd := range g.pending.List(r.PathValue("id")) {
		staged = append(staged, stagedDoc{Slot: pd.Slot.String(), Name: pd.Name, Size: len(pd.Payload)})
	}
	writeJson(w, http.StatusOK, staged)
}

func (g *adminApi) publish(w http.ResponseWriter, r *http.Request) {
	// a started publish runs to completion; the admin dropping the connection
	// must not cancel uploads or the final write-back
	reg, err := g.publisher.Publish(context.WithoutCancel(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJson(w, http.StatusOK, reg)
}

func parseSlot(r *http.Request) (slot domain.SlotRef, err error) {
	if slot.Kind, err = domain.ParseSlotKind(r.PathValue("slot")); err != nil {
		return
	}
	if slot.Kind.Indexed() {
		if slot.Index, err = strconv.Atoi(r.URL.Query().Get("index")); err != nil {
			return
		}
	}
	return
}

func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registrationrepo.ErrNotFound):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, registration.ErrInvalidTransition),
		errors.Is(err, registration.ErrInvalidDetails),
		errors.Is(err, registration.ErrInsufficientPayment),
		errors.Is(err, publisher.ErrIncompleteForm18):
		writeErr(w, http.StatusBadRequest, err)
	case errors.Is(err, publisher.ErrPublishInProgress),
		errors.Is(err, registrationrepo.ErrConcurrentUpdate):
		writeErr(w, http.StatusConflict, err)
	case errors.Is(err, publisher.ErrUploadFailed),
		errors.Is(err, publisher.ErrPersistFailed),
		errors.Is(err, publisher.ErrFetchFailed):
		writeErr(w, http.StatusBadGateway, err)
	default:
		writeErr(w, http.StatusInternalServerError, err)
	}
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(v)
	_, _ = w.Write(data)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	type errResp struct {
		Error string `json:"error"`
	}
	errData := errResp{Error: err.Error()}
	errDataBytes, _ := json.Marshal(errData)
	_, _ = w.Write(errDataBytes)
}

func (g *adminApi) Close(ctx context.Context) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return g.server.Shutdown(ctx)
}
