package http

import (
	"net/http"
	"time"

	"taschengeld/internal/core"
	"taschengeld/internal/services"
)

type childResponse struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	DonateFlag bool      `json:"donate_flag"`
	CreatedAt  time.Time `json:"created_at"`
}

func toChildResponse(c core.Child) childResponse {
	return childResponse{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Name:       c.Name,
		Age:        c.Age,
		DonateFlag: c.DonateFlag,
		CreatedAt:  c.CreatedAt,
	}
}

type balanceResponse struct {
	ChildID        string    `json:"child_id"`
	SpendCents     int64     `json:"spend_cents"`
	SaveCents      int64     `json:"save_cents"`
	InvestCents    int64     `json:"invest_cents"`
	DonateCents    int64     `json:"donate_cents"`
	TotalCents     int64     `json:"total_cents"`
	LastInterestOn string    `json:"last_interest_on,omitempty"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toBalanceResponse(b core.Balance) balanceResponse {
	resp := balanceResponse{
		ChildID:     b.ChildID,
		SpendCents:  b.Spend.Cents,
		SaveCents:   b.Save.Cents,
		InvestCents: b.Invest.Cents,
		DonateCents: b.Donate.Cents,
		TotalCents:  b.Total().Cents,
		Version:     b.Version,
		UpdatedAt:   b.UpdatedAt,
	}
	if !b.LastInterestOn.IsZero() {
		resp.LastInterestOn = b.LastInterestOn.String()
	}
	return resp
}

type createChildBody struct {
	OwnerID    string `json:"owner_id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	DonateFlag bool   `json:"donate_flag"`
}

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	var body createChildBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	child, err := s.ledger.CreateChild(r.Context(), services.CreateChildRequest{
		OwnerID:    body.OwnerID,
		Name:       body.Name,
		Age:        body.Age,
		DonateFlag: body.DonateFlag,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toChildResponse(child))
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := s.ledger.ListChildren(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]childResponse, 0, len(children))
	for _, c := range children {
		resp = append(resp, toChildResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.cachedBalance(r.Context(), r.PathValue("childID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(balance))
}
