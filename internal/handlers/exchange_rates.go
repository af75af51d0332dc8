package handlers

import (
	"net/http"

	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/validate"
)

type exchangeRateRequest struct {
	Body    string `json:"body"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (a *API) ListExchangeRates(w http.ResponseWriter, r *http.Request) {
	rates, err := a.admin.ListExchangeRates(r.Context(), upstreamToken(r))
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tsISO": a.nowISO(), "exchange_rates": rates})
}

func (a *API) CreateExchangeRate(w http.ResponseWriter, r *http.Request) {
	var in exchangeRateRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.ExchangeRate(in.Body, in.Source); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.admin.CreateExchangeRate(r.Context(), upstreamToken(r), services.ExchangeRateInput(in))
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "exchange_rate_create", nil)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "result": res})
}

func (a *API) UpdateExchangeRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in exchangeRateRequest
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := validate.ExchangeRate(in.Body, in.Source); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	res, err := a.admin.UpdateExchangeRate(r.Context(), upstreamToken(r), id, services.ExchangeRateInput(in))
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	applog.Audit(r, actor(r), "exchange_rate_update", map[string]any{"exchange_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}
