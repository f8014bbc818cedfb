package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pricefeed/internal/domain"
	"github.com/vadiminshakov/pricefeed/pkg/indicators"
)

const (
	defaultStatsPeriod = 20
	maxStatsPeriod     = 1000
)

type errorResponse struct {
	Error string `json:"error"`
}

type pricesResponse struct {
	Prices  map[string]domain.PriceRecord `json:"prices"`
	Missing []string                      `json:"missing,omitempty"`
}

type statsResponse struct {
	Asset string `json:"asset"`
	indicators.Summary
}

// writeJSON encodes before writing the header so an unencodable payload becomes a 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps oracle errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAsset):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoSourceConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]

	rec, err := s.oracle.FetchPrice(r.Context(), asset)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("price request failed", zap.String("asset", asset), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	requested := s.assets
	if q := r.URL.Query().Get("assets"); q != "" {
		requested = nil
		for _, a := range strings.Split(q, ",") {
			key, err := domain.NormalizeAsset(a)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			requested = append(requested, key)
		}
	}
	if len(requested) == 0 {
		writeError(w, http.StatusBadRequest, "no assets requested")
		return
	}

	prices := s.oracle.GetMultiplePrices(r.Context(), requested)

	resp := pricesResponse{Prices: prices}
	for _, a := range requested {
		key, err := domain.NormalizeAsset(a)
		if err != nil {
			continue
		}
		if _, ok := prices[key]; !ok && !contains(resp.Missing, key) {
			resp.Missing = append(resp.Missing, key)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "price history not available")
		return
	}

	asset, err := domain.NormalizeAsset(mux.Vars(r)["asset"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	period := defaultStatsPeriod
	if p := r.URL.Query().Get("period"); p != "" {
		period, err = strconv.Atoi(p)
		if err != nil || period <= 0 || period > maxStatsPeriod {
			writeError(w, http.StatusBadRequest, "period must be an integer within [1, 1000]")
			return
		}
	}

	records, err := s.history.Recent(asset, period)
	if err != nil {
		s.logger.Error("failed to read price history", zap.String("asset", asset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read price history")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no price history for "+asset)
		return
	}

	prices := make([]decimal.Decimal, len(records))
	for i, rec := range records {
		prices[i] = rec.Price
	}
	summary, err := indicators.Summarize(prices, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Asset: asset, Summary: summary})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.oracle.Sources()})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
