package homework

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	TransportFailure
	EndpointUnavailable
	MalformedResponse
	WrongShape
	UnrecognizedStatus
	DeliveryFailure
	MissingConfiguration
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "transport_failure"
	case EndpointUnavailable:
		return "endpoint_unavailable"
	case MalformedResponse:
		return "malformed_response"
	case WrongShape:
		return "wrong_shape"
	case UnrecognizedStatus:
		return "unrecognized_status"
	case DeliveryFailure:
		return "delivery_failure"
	case MissingConfiguration:
		return "missing_configuration"
	default:
		return "unknown"
	}
}

// Error is the single error type of the bot. Only the fields relevant to
// Kind are set.
type Error struct {
	Kind Kind

	// TransportFailure, EndpointUnavailable
	Endpoint   string
	Params     url.Values
	StatusCode int

	// WrongShape
	Field string
	Got   string
	Want  string

	// UnrecognizedStatus
	Status string

	// DeliveryFailure
	Text string

	// MissingConfiguration
	Missing []string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case TransportFailure:
		return fmt.Sprintf("request to %s failed (params %s): %v", e.Endpoint, e.Params.Encode(), e.Err)
	case EndpointUnavailable:
		return fmt.Sprintf("endpoint %s unavailable: API status code %d (params %s)", e.Endpoint, e.StatusCode, e.Params.Encode())
	case MalformedResponse:
		return fmt.Sprintf("response is not valid JSON: %v", e.Err)
	case WrongShape:
		return fmt.Sprintf("wrong data type for %s: got %s, want %s", e.Field, e.Got, e.Want)
	case UnrecognizedStatus:
		return fmt.Sprintf("unrecognized homework status %q", e.Status)
	case DeliveryFailure:
		return fmt.Sprintf("message delivery failed: %v (text %q)", e.Err, e.Text)
	case MissingConfiguration:
		return "missing required environment variables: " + strings.Join(e.Missing, ", ")
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "homework: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func wrongShape(field string, got any, want string) *Error {
	return &Error{Kind: WrongShape, Field: field, Got: shapeOf(got), Want: want}
}

// shapeOf names the JSON shape of a decoded value.
func shapeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64, fmt.Stringer:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
