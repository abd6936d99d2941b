package http

import (
	"context"
	"net/http"

	"taschengeld/internal/core"
	"taschengeld/internal/services"
	"taschengeld/internal/storage"
)

type receiptResponse struct {
	TxIDs   []string        `json:"tx_ids"`
	Balance balanceResponse `json:"balance"`
}

func toReceiptResponse(r storage.Receipt) receiptResponse {
	return receiptResponse{
		TxIDs:   r.TxIDs,
		Balance: toBalanceResponse(r.Balance),
	}
}

type paymentBody struct {
	OwnerID    string    `json:"owner_id"`
	OccurredOn string    `json:"occurred_on,omitempty"`
	Slices     sliceBody `json:"slices"`
	Note       string    `json:"note,omitempty"`
}

func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	s.handlePayment(w, r, s.ledger.Payout)
}

func (s *Server) handleExtraPayment(w http.ResponseWriter, r *http.Request) {
	s.handlePayment(w, r, s.ledger.ExtraPayment)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, req services.PayoutRequest) (storage.Receipt, error)) {
	childID := r.PathValue("childID")

	var body paymentBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	occurredOn, err := parseOccurredOn(body.OccurredOn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := apply(r.Context(), services.PayoutRequest{
		ChildID:    childID,
		OwnerID:    body.OwnerID,
		OccurredOn: occurredOn,
		Slices:     body.Slices.toSlices(),
		Note:       body.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateChild(childID, occurredOn)
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

type expenseBody struct {
	OwnerID     string `json:"owner_id"`
	Pot         string `json:"pot"`
	AmountCents int64  `json:"amount_cents"`
	OccurredOn  string `json:"occurred_on,omitempty"`
	Note        string `json:"note,omitempty"`
}

func (s *Server) handleExpense(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("childID")

	var body expenseBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	occurredOn, err := parseOccurredOn(body.OccurredOn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.Expense(r.Context(), services.ExpenseRequest{
		ChildID:    childID,
		OwnerID:    body.OwnerID,
		Pot:        core.Pot(body.Pot),
		Amount:     core.Money{Cents: body.AmountCents},
		OccurredOn: occurredOn,
		Note:       body.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.entryLog.LogEntryRecorded(r.Context(), childID, string(core.KindExpense), body.Pot, body.AmountCents)
	s.invalidateChild(childID, occurredOn)
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

type transferBody struct {
	OwnerID     string `json:"owner_id"`
	AmountCents int64  `json:"amount_cents"`
	OccurredOn  string `json:"occurred_on,omitempty"`
	Note        string `json:"note,omitempty"`
}

func (s *Server) handleTransferInvest(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("childID")

	var body transferBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	occurredOn, err := parseOccurredOn(body.OccurredOn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.TransferInvest(r.Context(), services.TransferRequest{
		ChildID:    childID,
		OwnerID:    body.OwnerID,
		Amount:     core.Money{Cents: body.AmountCents},
		OccurredOn: occurredOn,
		Note:       body.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.entryLog.LogEntryRecorded(r.Context(), childID, string(core.KindTransferOut), string(core.PotInvest), body.AmountCents)
	s.invalidateChild(childID, occurredOn)
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

type interestResponse struct {
	Status        string          `json:"status"`
	InterestCents int64           `json:"interest_cents"`
	Days          int             `json:"days"`
	Balance       balanceResponse `json:"balance"`
}

// handleInterest triggers an on-demand accrual for one child, same path the
// sweep worker takes.
func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("childID")

	outcome, err := s.accrual.Accrue(r.Context(), childID, core.Today())
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateChild(childID, core.Today())
	writeJSON(w, http.StatusOK, interestResponse{
		Status:        string(outcome.Status),
		InterestCents: outcome.Interest.Cents,
		Days:          outcome.Days,
		Balance:       toBalanceResponse(outcome.Balance),
	})
}

type adjustmentBody struct {
	OwnerID     string `json:"owner_id"`
	Pot         string `json:"pot"`
	AmountCents int64  `json:"amount_cents"`
	OccurredOn  string `json:"occurred_on,omitempty"`
	Note        string `json:"note,omitempty"`
}

func (s *Server) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("childID")

	var body adjustmentBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	occurredOn, err := parseOccurredOn(body.OccurredOn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.Adjust(r.Context(), services.AdjustRequest{
		ChildID:    childID,
		OwnerID:    body.OwnerID,
		Pot:        core.Pot(body.Pot),
		Amount:     core.Money{Cents: body.AmountCents},
		OccurredOn: occurredOn,
		Note:       body.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.entryLog.LogEntryRecorded(r.Context(), childID, string(core.KindAdjustment), body.Pot, body.AmountCents)
	s.invalidateChild(childID, occurredOn)
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}
