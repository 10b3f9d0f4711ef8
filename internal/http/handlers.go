package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"agentledger/internal/core"
	"agentledger/internal/ledger"
	applog "agentledger/internal/log"
)

const maxBodyBytes = 1 << 20 // 1MB

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	var in ledger.FilterInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, applog.OpListExpenses, in, err)
		return
	}

	f, err := ledger.Normalize(in, time.Now())
	if err != nil {
		s.writeError(w, r, applog.OpListExpenses, in, err)
		return
	}

	report, err := s.provider.ListExpenses(r.Context(), f)
	if err != nil {
		s.writeError(w, r, applog.OpListExpenses, in, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleComputeBalances(w http.ResponseWriter, r *http.Request) {
	var in ledger.FilterInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, applog.OpComputeBalances, in, err)
		return
	}

	f, err := ledger.Normalize(in, time.Now())
	if err != nil {
		s.writeError(w, r, applog.OpComputeBalances, in, err)
		return
	}

	report, err := s.provider.ComputeBalances(r.Context(), f)
	if err != nil {
		s.writeError(w, r, applog.OpComputeBalances, in, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// recordRequest mirrors ledger.RecordInput but takes amountMinor as a JSON
// number: fractional inputs are truncated before the positive-integer
// check, so 0.4 becomes 0 and fails with InvalidAmount.
type recordRequest struct {
	AgentID     string  `json:"agentId"`
	Category    string  `json:"category"`
	Vendor      string  `json:"vendor"`
	Description string  `json:"description"`
	AmountMinor float64 `json:"amountMinor"`
	Currency    string  `json:"currency,omitempty"`
	OccurredAt  string  `json:"occurredAt,omitempty"`
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, applog.OpRecordExpense, ledger.FilterInput{}, err)
		return
	}

	in := ledger.RecordInput{
		AgentID:     req.AgentID,
		Category:    req.Category,
		Vendor:      req.Vendor,
		Description: req.Description,
		AmountMinor: int64(req.AmountMinor),
		Currency:    req.Currency,
		OccurredAt:  req.OccurredAt,
	}

	result, err := s.provider.RecordExpense(r.Context(), in)
	if err != nil {
		s.writeError(w, r, applog.OpRecordExpense, ledger.FilterInput{AgentID: req.AgentID, Currency: req.Currency}, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := ledger.FilterInput{
		AgentID:  q.Get("agentId"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Currency: q.Get("currency"),
	}

	f, err := ledger.Normalize(in, time.Now())
	if err != nil {
		s.writeError(w, r, applog.OpDashboard, in, err)
		return
	}

	props, err := ledger.BuildDashboard(r.Context(), s.provider, s.backend, f)
	if err != nil {
		s.writeError(w, r, applog.OpDashboard, in, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return core.E(core.KindInternalError, "read request body: %v", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return core.E(core.KindInternalError, "invalid JSON body: %v", err)
	}
	return nil
}

// errorBody is the uniform failure envelope: a machine-readable kind plus a
// human-readable message, never a raw transport error.
type errorBody struct {
	Error *core.Error `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, operation string, in ledger.FilterInput, err error) {
	var le *core.Error
	if !errors.As(err, &le) {
		le = core.E(core.KindInternalError, "%v", err)
	}

	// Best-effort filters for the log line only; the failed call never used
	// them for data.
	safe := ledger.SafeNormalize(in, time.Now())
	slog.ErrorContext(r.Context(), "Operation failed",
		applog.FieldComponent, applog.ComponentHTTP,
		applog.FieldOperation, operation,
		applog.FieldBackend, s.backend,
		applog.FieldErrorKind, string(le.Kind),
		applog.FieldError, le.Message,
		applog.FieldAgentID, safe.AgentID,
		applog.FieldFrom, safe.From,
		applog.FieldTo, safe.To,
		applog.FieldCurrency, safe.Currency)

	writeJSON(w, statusForKind(le.Kind), errorBody{Error: le})
}

func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindInvalidDate, core.KindInvalidDateRange, core.KindInvalidAgent,
		core.KindInvalidCategory, core.KindInvalidVendor, core.KindInvalidDescription,
		core.KindInvalidAmount, core.KindUnsupportedCurrency, core.KindInvalidProvider:
		return http.StatusBadRequest
	case core.KindProviderNotConfigured:
		return http.StatusServiceUnavailable
	case core.KindProviderUnavailable:
		return http.StatusBadGateway
	case core.KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do but log.
		slog.Error("Failed to encode response", applog.FieldError, fmt.Sprintf("%v", err))
	}
}
