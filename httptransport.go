package apisession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPTransport dispatches operations as JSON envelopes POSTed to a single
// endpoint: {"operationName": ..., "variables": ...}.
type HTTPTransport struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPTransport creates a transport for the given endpoint URL. A nil
// client falls back to http.DefaultClient.
func NewHTTPTransport(endpoint string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Endpoint: endpoint, Client: client}
}

type operationEnvelope struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, op Operation, bearer string) (*RawResponse, error) {
	body, err := json.Marshal(operationEnvelope{OperationName: op.Name, Variables: op.Variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode operation %q: %w", op.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &RawResponse{Status: resp.StatusCode, Body: raw}, nil
}

// responseEnvelope is the wire shape of a normalized-able response: a data
// payload on success, or a list of coded errors.
type responseEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code   string       `json:"code"`
			Fields []FieldError `json:"fields,omitempty"`
		} `json:"extensions"`
	} `json:"errors"`
}

// JSONNormalizer maps the envelope's error codes onto the ErrorClass
// enumeration. Unknown codes fall back to the HTTP status, then to
// ServerFailure.
type JSONNormalizer struct{}

// Normalize implements Normalizer.
func (JSONNormalizer) Normalize(raw *RawResponse) *Response {
	var envelope responseEnvelope
	if err := json.Unmarshal(raw.Body, &envelope); err != nil {
		// A body we cannot parse is never a success, whatever the status
		// says: proxies love returning HTML error pages with a 200.
		class := classForStatus(raw.Status)
		if class == Success {
			class = ServerFailure
		}
		return &Response{Class: class, Message: "unparseable response body"}
	}

	if len(envelope.Errors) == 0 {
		if raw.Status >= 400 {
			return &Response{Class: classForStatus(raw.Status)}
		}
		return &Response{Class: Success, Data: envelope.Data}
	}

	first := envelope.Errors[0]
	resp := &Response{
		Message:     first.Message,
		FieldErrors: first.Extensions.Fields,
	}
	switch first.Extensions.Code {
	case "UNAUTHORIZED", "UNAUTHENTICATED", "FORBIDDEN":
		resp.Class = AuthorizationFailure
	case "BAD_USER_INPUT", "VALIDATION_FAILED":
		resp.Class = ValidationFailure
	case "NOT_FOUND":
		resp.Class = NotFound
	default:
		// An error entry with an unknown code is still an error even when
		// the HTTP status says 200.
		if class := classForStatus(raw.Status); class != Success {
			resp.Class = class
		} else {
			resp.Class = ServerFailure
		}
	}
	return resp
}

func classForStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AuthorizationFailure
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ValidationFailure
	case status < 400:
		return Success
	default:
		return ServerFailure
	}
}
