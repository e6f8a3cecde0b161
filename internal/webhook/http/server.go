package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/internal/webhook/provider"
	"github.com/radieske/pix-webhook-hub/internal/webhook/service"
	"github.com/radieske/pix-webhook-hub/internal/webhook/signature"
)

// MaxBodyBytes limita o corpo aceito na ingestão
const MaxBodyBytes = 1 << 20

// API expõe a ingestão de webhooks, as consultas do dashboard e a interface do operador
type API struct {
	Log *zap.Logger
	Svc *service.Service
	WS  http.HandlerFunc // feed ao vivo; nil desabilita /ws
}

// Router retorna o roteador HTTP com todas as rotas
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/webhooks/{provider}", a.ingest)
	r.Get("/api/webhooks/history", a.history)
	r.Get("/api/webhooks/stats", a.stats)

	r.Get("/api/providers", a.listProviders)
	r.Get("/api/providers/{provider}", a.getProvider)
	r.Patch("/api/providers/{provider}", a.updateProvider)
	r.Post("/api/providers/{provider}/test", a.testWebhook)
	r.Get("/api/providers/{provider}/pending-sales", a.pendingSales)

	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ingest recebe o webhook de um provedor
// O resultado de negócio nunca vira status HTTP: 400 só para corpo fora do schema
func (a *API) ingest(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	rec, err := a.Svc.Ingest(r.Context(), providerID, body, r.Header.Get(signature.Header))
	if err != nil {
		if errors.Is(err, service.ErrMalformedPayload) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "entryId": rec.EntryID})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "entryId": rec.EntryID})
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.History())
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Svc.Stats())
}

// secrets nunca saem em claro pela API
func (a *API) listProviders(w http.ResponseWriter, r *http.Request) {
	cfgs := a.Svc.ListConfigs()
	out := make([]provider.Config, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, c.Masked())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getProvider(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.Svc.GetConfig(chi.URLParam(r, "provider"))
	if err != nil {
		a.providerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Masked())
}

// updateProvider aplica uma atualização parcial {url?, secret?, enabled?, events?}
func (a *API) updateProvider(w http.ResponseWriter, r *http.Request) {
	var p provider.Patch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	cfg, err := a.Svc.UpdateConfig(r.Context(), chi.URLParam(r, "provider"), p)
	if err != nil {
		a.providerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Masked())
}

type testWebhookRequest struct {
	PaymentID string `json:"paymentId"`
}

// testWebhook dispara um evento confirmado sintético pelo pipeline de ingestão
func (a *API) testWebhook(w http.ResponseWriter, r *http.Request) {
	var req testWebhookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "paymentId required")
		return
	}
	rec, err := a.Svc.TestWebhook(r.Context(), chi.URLParam(r, "provider"), req.PaymentID)
	if err != nil {
		a.Log.Error("test webhook", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) pendingSales(w http.ResponseWriter, r *http.Request) {
	ss, err := a.Svc.PendingSales(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		a.providerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (a *API) providerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrUnknownProvider):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, provider.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.Log.Error("provider operation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
