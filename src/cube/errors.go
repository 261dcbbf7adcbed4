package cube

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport indicates the Cube API could not be reached at all
	// (DNS failure, connection refused, request timeout).
	ErrTransport = errors.New("could not reach Cube API")

	// ErrTimeout indicates the query was still processing when the polling
	// budget ran out. The query may still complete remotely.
	ErrTimeout = errors.New("timed out waiting for query result")
)

// APIError is a non-success response from the Cube API, either a non-2xx
// HTTP status or a 2xx envelope carrying an error message.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Cube API error (status %d): %s", e.StatusCode, e.Body)
}
