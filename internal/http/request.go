package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taschengeld/internal/core"
)

const maxBodyBytes = 64 << 10

// errMalformedRequest marks request bodies and parameters that never made it
// to the domain layer; it always maps to 400.
var errMalformedRequest = errors.New("malformed request")

// decodeJSON decodes a request body into dst, rejecting unknown fields so a
// typo'd field name fails loudly instead of silently defaulting.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w: %w", errMalformedRequest, err)
	}
	return nil
}

// parseYearMonth extracts year and month from query parameters, defaulting
// to the current UTC month. A present but unparseable or out-of-range value
// is rejected, not defaulted.
func parseYearMonth(r *http.Request) (year, month int, err error) {
	now := time.Now().UTC()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, convErr := strconv.Atoi(v)
		if convErr != nil || y < 1 {
			return 0, 0, fmt.Errorf("parse year %q: %w", v, errMalformedRequest)
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, convErr := strconv.Atoi(v)
		if convErr != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("parse month %q: %w", v, errMalformedRequest)
		}
		month = m
	}

	return year, month, nil
}

// parseOccurredOn parses an optional YYYY-MM-DD value, defaulting to today.
func parseOccurredOn(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Today(), nil
	}
	return core.ParseDate(s)
}

// parsePrice accepts either ?price=12.34 (decimal euros) or
// ?price_cents=1234.
func parsePrice(r *http.Request) (core.Money, error) {
	if v := strings.TrimSpace(r.URL.Query().Get("price_cents")); v != "" {
		cents, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return core.Money{}, fmt.Errorf("parse price_cents %q: %w", v, errMalformedRequest)
		}
		return core.Money{Cents: cents}, nil
	}
	v := strings.TrimSpace(r.URL.Query().Get("price"))
	if v == "" {
		return core.Money{}, fmt.Errorf("missing price: %w", errMalformedRequest)
	}
	cents, err := core.ParseDecimalToCents(v)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// sliceBody is the wire shape of a pot split: cents per pot, omitted pots
// count as zero.
type sliceBody struct {
	Spend  int64 `json:"spend_cents"`
	Save   int64 `json:"save_cents"`
	Invest int64 `json:"invest_cents"`
	Donate int64 `json:"donate_cents"`
}

func (s sliceBody) toSlices() map[core.Pot]core.Money {
	m := make(map[core.Pot]core.Money)
	for pot, cents := range map[core.Pot]int64{
		core.PotSpend:  s.Spend,
		core.PotSave:   s.Save,
		core.PotInvest: s.Invest,
		core.PotDonate: s.Donate,
	} {
		if cents != 0 {
			m[pot] = core.Money{Cents: cents}
		}
	}
	return m
}
