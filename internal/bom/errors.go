package bom

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed gateway call.
type ErrorKind int

const (
	InvalidGeohash ErrorKind = iota + 1
	RemoteRejected
	Unreachable
)

var (
	// ErrInvalidGeohash is matched by errors.Is for geohashes rejected locally.
	ErrInvalidGeohash = errors.New("invalid geohash")
	// ErrRemoteRejected is matched by errors.Is for non-2xx responses and undecodable bodies.
	ErrRemoteRejected = errors.New("remote rejected request")
	// ErrUnreachable is matched by errors.Is for transport failures, timeouts and an open circuit.
	ErrUnreachable = errors.New("remote unreachable")

	errNoHTTPClient = errors.New("http client not configured")
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidGeohash:
		return "invalid_geohash"
	case RemoteRejected:
		return "remote_rejected"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case InvalidGeohash:
		return ErrInvalidGeohash
	case RemoteRejected:
		return ErrRemoteRejected
	case Unreachable:
		return ErrUnreachable
	default:
		return nil
	}
}

// GatewayError is returned by every Client operation that fails.
type GatewayError struct {
	Kind     ErrorKind
	Endpoint string
	// Status is the HTTP status code for RemoteRejected, zero otherwise.
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("bom %s: %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is lets callers match a GatewayError against ErrInvalidGeohash,
// ErrRemoteRejected or ErrUnreachable.
func (e *GatewayError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// StatusCode returns the HTTP status carried by err when it is a RemoteRejected
// GatewayError, and zero otherwise.
func StatusCode(err error) int {
	var gerr *GatewayError
	if errors.As(err, &gerr) && gerr.Kind == RemoteRejected {
		return gerr.Status
	}
	return 0
}
