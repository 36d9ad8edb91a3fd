// Package http serves the JSON API.
//
// This file implements utilities for decoding request bodies and the
// optional query parameters shared by the list and analytics endpoints.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return &badRequestError{msg: "content type must be application/json"}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var verr *core.ValidationError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &verr):
			return verr
		case errors.Is(err, core.ErrInvalidAmount):
			return core.Invalid("amount", core.ErrInvalidAmount)
		case errors.Is(err, core.ErrInvalidDate):
			return core.Invalid("date", core.ErrInvalidDate)
		case errors.As(err, &maxErr):
			return &badRequestError{msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		case errors.Is(err, io.EOF):
			return &badRequestError{msg: "request body is empty"}
		default:
			return &badRequestError{msg: "malformed JSON: " + err.Error()}
		}
	}
	if dec.More() {
		return &badRequestError{msg: "request body must contain a single JSON object"}
	}
	return nil
}

// queryDate parses an optional date parameter. Absent or empty yields nil.
func queryDate(query url.Values, key string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := core.ParseDate(raw, loc)
	if err != nil {
		return nil, core.Invalid(key, err)
	}
	return &t, nil
}

// ParsePeriodQuery reads period, account, startDate and endDate.
func ParsePeriodQuery(query url.Values, loc *time.Location) (period.Query, error) {
	start, err := queryDate(query, "startDate", loc)
	if err != nil {
		return period.Query{}, err
	}
	end, err := queryDate(query, "endDate", loc)
	if err != nil {
		return period.Query{}, err
	}
	return period.Query{
		Period:    period.ParseName(query.Get("period")),
		AccountID: strings.TrimSpace(query.Get("account")),
		StartDate: start,
		EndDate:   end,
	}, nil
}

// ParseTrendQuery adds type and groupBy to the period parameters.
func ParseTrendQuery(query url.Values, loc *time.Location) (analytics.TrendQuery, error) {
	pq, err := ParsePeriodQuery(query, loc)
	if err != nil {
		return analytics.TrendQuery{}, err
	}
	return analytics.TrendQuery{
		Query:       pq,
		Type:        core.TransactionType(strings.ToLower(strings.TrimSpace(query.Get("type")))),
		Granularity: period.Granularity(strings.ToLower(strings.TrimSpace(query.Get("groupBy")))),
	}, nil
}

// ParseListFilter reads the transaction list filters. A date-only endDate
// includes the whole day.
func ParseListFilter(query url.Values, loc *time.Location) (services.ListFilter, error) {
	f := services.ListFilter{
		Type:      core.TransactionType(strings.ToLower(strings.TrimSpace(query.Get("type")))),
		Category:  strings.TrimSpace(query.Get("category")),
		AccountID: strings.TrimSpace(query.Get("account")),
	}

	start, err := queryDate(query, "startDate", loc)
	if err != nil {
		return services.ListFilter{}, err
	}
	if start != nil {
		f.From = *start
	}

	end, err := queryDate(query, "endDate", loc)
	if err != nil {
		return services.ListFilter{}, err
	}
	if end != nil {
		f.To = *end
		if len(strings.TrimSpace(query.Get("endDate"))) == len("2006-01-02") {
			f.To = period.EndOfDay(*end)
		}
	}
	return f, nil
}
