package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sensorviz/internal/models"
)

// ErrInvalidQuery is returned for queries rejected before any request is made.
var ErrInvalidQuery = errors.New("invalid query")

// TransportError covers network failures and timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError is a non-2xx answer from the backend.
type ResponseError struct {
	Status     int
	StatusText string
	Detail     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Status, e.Detail)
}

// MalformedDataError is a 2xx answer whose body is not a record array.
type MalformedDataError struct {
	Err  error
	Body string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("decoding response: %v", e.Err)
}

func (e *MalformedDataError) Unwrap() error { return e.Err }

// UserMessage renders err the way it is shown next to a chart or table.
func UserMessage(err error) string {
	var (
		te *TransportError
		re *ResponseError
		me *MalformedDataError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrNoUsableData):
		return "No data available for the selected period."
	case errors.As(err, &te):
		return fmt.Sprintf("Failed to load: %v. Please check the server and network connection.", te.Err)
	case errors.As(err, &re):
		text := re.StatusText
		if text == "" {
			text = http.StatusText(re.Status)
		}
		detail := strings.TrimSpace(re.Detail)
		if detail == "" {
			detail = text
		}
		return fmt.Sprintf("%d - %s", re.Status, detail)
	case errors.As(err, &me):
		return "Failed to load sensor data."
	default:
		return err.Error()
	}
}

// Outcome labels err for metrics.
func Outcome(err error) string {
	var (
		te *TransportError
		re *ResponseError
		me *MalformedDataError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &re):
		return "response_error"
	case errors.As(err, &me):
		return "malformed"
	default:
		return "error"
	}
}
