package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"taschengeld/internal/core"
)

type transactionResponse struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Pot         string         `json:"pot,omitempty"`
	AmountCents int64          `json:"amount_cents"`
	OccurredOn  string         `json:"occurred_on"`
	CreatedAt   time.Time      `json:"created_at"`
	Note        string         `json:"note,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Kind:        string(t.Kind),
		Pot:         string(t.Pot),
		AmountCents: t.Amount.Cents,
		OccurredOn:  t.OccurredOn.String(),
		CreatedAt:   t.CreatedAt,
		Note:        t.Note,
		Meta:        t.Meta,
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.cachedHistory(r.Context(), r.PathValue("childID"), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Year             int   `json:"year"`
	Month            int   `json:"month"`
	SpendAllocCents  int64 `json:"spend_alloc_cents"`
	SaveAllocCents   int64 `json:"save_alloc_cents"`
	InvestAllocCents int64 `json:"invest_alloc_cents"`
	DonateAllocCents int64 `json:"donate_alloc_cents"`
	InterestCents    int64 `json:"interest_cents"`
	IncomeCents      int64 `json:"income_cents"`
	TransferOutCents int64 `json:"transfer_out_cents"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.ledger.MonthlyStats(r.Context(), r.PathValue("childID"), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Year:             year,
		Month:            month,
		SpendAllocCents:  stats.SpendAlloc.Cents,
		SaveAllocCents:   stats.SaveAlloc.Cents,
		InvestAllocCents: stats.InvestAlloc.Cents,
		DonateAllocCents: stats.DonateAlloc.Cents,
		InterestCents:    stats.Interest.Cents,
		IncomeCents:      stats.Income.Cents,
		TransferOutCents: stats.TransferOut.Cents,
	})
}

type trendPointResponse struct {
	Year       int   `json:"year"`
	Month      int   `json:"month"`
	TotalCents int64 `json:"total_cents"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	months := 6
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 36 {
			months = m
		}
	}

	points, err := s.ledger.Trend(r.Context(), r.PathValue("childID"), core.Today(), months)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]trendPointResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, trendPointResponse{Year: p.Year, Month: p.Month, TotalCents: p.Total.Cents})
	}
	writeJSON(w, http.StatusOK, resp)
}

type wishResponse struct {
	Affordable bool    `json:"affordable"`
	Progress   float64 `json:"progress"`
	SaveCents  int64   `json:"save_cents"`
	PriceCents int64   `json:"price_cents"`
}

func (s *Server) handleWish(w http.ResponseWriter, r *http.Request) {
	price, err := parsePrice(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := s.ledger.WishProgress(r.Context(), r.PathValue("childID"), price)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wishResponse{
		Affordable: status.Affordable,
		Progress:   status.Progress,
		SaveCents:  status.Save.Cents,
		PriceCents: price.Cents,
	})
}

type mismatchResponse struct {
	Pot          string `json:"pot"`
	BalanceCents int64  `json:"balance_cents"`
	LedgerCents  int64  `json:"ledger_cents"`
}

type auditResponse struct {
	ChildID    string             `json:"child_id"`
	Clean      bool               `json:"clean"`
	Mismatches []mismatchResponse `json:"mismatches,omitempty"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.audit.VerifyChild(r.Context(), r.PathValue("childID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := auditResponse{ChildID: report.ChildID, Clean: report.Clean}
	for _, m := range report.Mismatches {
		resp.Mismatches = append(resp.Mismatches, mismatchResponse{
			Pot:          string(m.Pot),
			BalanceCents: m.Balance,
			LedgerCents:  m.LedgerSum,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
