package llm

import (
	"context"
	"errors"
)

var (
	// ErrRequestFailed classifies every failure of a Send call: transport,
	// non-2xx status, unreadable or schema-invalid body.
	ErrRequestFailed = errors.New("request failed")

	// ErrInvalidRequest is returned before any network call when the request
	// violates the API bounds.
	ErrInvalidRequest = errors.New("invalid request")
)

type Provider interface {
	Send(ctx context.Context, req Request) (*Response, error)
}
