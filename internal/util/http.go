// Package util carries the JSON response helpers and the request-id
// plumbing shared by the HTTP tier. Error payloads always carry the
// request id so a client report can be matched to a log line.
package util

import (
	"context"
	"encoding/json"
	"net/http"
)

type ctxKey string

const ctxRequestID ctxKey = "request_id"

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, msg, reqID string) {
	WriteJSON(w, status, APIError{Code: code, Message: msg, RequestID: reqID})
}

// WriteErrorCtx is WriteError with the request id pulled from the context.
func WriteErrorCtx(w http.ResponseWriter, ctx context.Context, status int, code, msg string) {
	WriteError(w, status, code, msg, RequestID(ctx))
}
