package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Classify maps a failed attempt to an Outcome. Exactly one of err and resp
// is expected: err for a connection-level failure (including timeout), resp
// for a response carrying a non-success status. Pure function, no side
// effects.
func Classify(err error, resp *Response) *Outcome {
	if resp == nil {
		return &Outcome{
			Category:  CategoryNetwork,
			Message:   networkMessage(err),
			Retryable: true,
			Err:       err,
		}
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		return outcomeFor(CategoryUnauthorized, resp, false, "authentication required")
	case resp.Status == http.StatusForbidden:
		return outcomeFor(CategoryForbidden, resp, false, "access denied")
	case resp.Status == http.StatusNotFound:
		return outcomeFor(CategoryNotFound, resp, false, "resource not found")
	case resp.Status == http.StatusBadRequest || resp.Status == http.StatusUnprocessableEntity:
		return &Outcome{
			Category:  CategoryValidation,
			Message:   validationMessage(resp.Body),
			Status:    resp.Status,
			Retryable: false,
		}
	case resp.Status == http.StatusTooManyRequests:
		return outcomeFor(CategoryRateLimited, resp, true, "rate limited")
	case resp.Status >= 500:
		return outcomeFor(CategoryServer, resp, true, "server error")
	default:
		return outcomeFor(CategoryUnknown, resp, resp.Status >= 500, fmt.Sprintf("unexpected status %d", resp.Status))
	}
}

func outcomeFor(c Category, resp *Response, retryable bool, fallback string) *Outcome {
	msg := detailMessage(resp.Body)
	if msg == "" {
		msg = fallback
	}
	return &Outcome{
		Category:  c,
		Message:   msg,
		Status:    resp.Status,
		Retryable: retryable,
	}
}

func networkMessage(err error) string {
	if err == nil {
		return "no response received"
	}
	return err.Error()
}

// fieldError is the structured validation error shape the remote API
// produces: {"detail": [{"loc": ["body", "age"], "msg": "required"}]}.
type fieldError struct {
	Loc []json.RawMessage `json:"loc"`
	Msg string            `json:"msg"`
}

// validationMessage extracts a readable message from a 400/422 body,
// preferring the field-error list, then a plain detail string.
func validationMessage(body []byte) string {
	var structured struct {
		Detail []fieldError `json:"detail"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && len(structured.Detail) > 0 {
		parts := make([]string, 0, len(structured.Detail))
		for _, fe := range structured.Detail {
			if field := fieldName(fe.Loc); field != "" {
				parts = append(parts, field+": "+fe.Msg)
			} else {
				parts = append(parts, fe.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}

	if msg := detailMessage(body); msg != "" {
		return msg
	}
	return "validation failed"
}

// fieldName renders a field-error location, skipping the leading "body"
// segment and ignoring numeric indices.
func fieldName(loc []json.RawMessage) string {
	parts := make([]string, 0, len(loc))
	for _, raw := range loc {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if len(parts) == 0 && s == "body" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

// detailMessage extracts a plain {"detail": "..."} string, if present.
func detailMessage(body []byte) string {
	var plain struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &plain); err == nil {
		return plain.Detail
	}
	return ""
}
