package apisession

import (
	"context"
	"encoding/json"
)

// Operation describes a single remote call: a named operation with variables,
// dispatched as one unit by the transport.
type Operation struct {
	Name         string
	Variables    map[string]any
	RequiresAuth bool
}

// RawResponse is the transport's opaque result. The core never inspects it;
// only the Normalizer does.
type RawResponse struct {
	Status int
	Body   []byte
}

// FieldError is a per-field validation message surfaced by the normalizer.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the normalized outcome of a dispatched operation. The executor
// bases its retry decision solely on Class.
type Response struct {
	Class       ErrorClass
	Data        json.RawMessage
	Message     string
	FieldErrors []FieldError
}

// Success reports whether the operation completed without a remote error.
func (r *Response) Success() bool {
	return r != nil && r.Class == Success
}

// Transport dispatches named operations to the remote service. Any failure to
// obtain a response -- network errors, timeouts, malformed payloads -- is
// returned as an error and never classified as an authorization failure.
// The bearer token is empty for unauthenticated operations.
type Transport interface {
	Send(ctx context.Context, op Operation, bearer string) (*RawResponse, error)
}

// Normalizer converts a raw transport response into the uniform Response
// shape. It must classify credential rejection as AuthorizationFailure and
// nothing else as AuthorizationFailure.
type Normalizer interface {
	Normalize(raw *RawResponse) *Response
}
