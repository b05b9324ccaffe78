package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/chat"
)

type errorBody struct {
	Type            core.ErrorType `json:"type"`
	Message         string         `json:"message"`
	Code            string         `json:"code,omitempty"`
	ResetCredential bool           `json:"reset_credential,omitempty"`
	RequestID       string         `json:"request_id,omitempty"`
}

func newErrorBody(ce *core.Error, requestID string) errorBody {
	return errorBody{
		Type:            ce.Type,
		Message:         ce.Message,
		Code:            ce.Code,
		ResetCredential: ce.ResetCredential,
		RequestID:       requestID,
	}
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func badRequest(msg string) *core.Error { return core.NewInvalidRequestError(msg) }

func notFound(msg string) *core.Error { return core.NewNotFoundError(msg) }

// fromError maps err onto the error envelope and an HTTP status.
func fromError(err error) (*core.Error, int) {
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{Type: core.ErrTimeout, Message: "request timeout"}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{Type: core.ErrAPI, Message: "request cancelled", Code: "cancelled"}, http.StatusRequestTimeout
	}
	if errors.Is(err, chat.ErrTurnInFlight) {
		return &core.Error{Type: core.ErrInvalidRequest, Message: err.Error(), Code: "turn_in_flight"}, http.StatusConflict
	}
	if errors.Is(err, chat.ErrEmptyTurn) {
		return badRequest(err.Error()), http.StatusBadRequest
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		return coreErr, statusFromType(coreErr.Type)
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return badRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)), http.StatusRequestEntityTooLarge
	}

	return &core.Error{Type: core.ErrAPI, Message: "internal error"}, http.StatusInternalServerError
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrEmptyResult:
		return http.StatusUnprocessableEntity
	case core.ErrDevice:
		return http.StatusServiceUnavailable
	case core.ErrTimeout:
		return http.StatusGatewayTimeout
	case core.ErrAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ce, status := fromError(err)
	writeJSON(w, status, errorEnvelope{Error: newErrorBody(ce, requestIDFrom(r.Context()))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON strictly decodes a bounded request body into v. An empty body
// leaves v untouched.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	if dec.More() {
		return badRequest("invalid JSON body: trailing data")
	}
	return nil
}
