package executor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shyim/kvprobe/internal/command"
)

// Outcome is the result of one HTTP exchange.
type Outcome struct {
	Command     command.Command
	Method      string
	URL         string
	RequestBody []byte

	StatusCode int
	Header     http.Header
	Body       []byte
	// Payload is the decoded JSON body, nil for an empty body or when
	// DecodeErr is set.
	Payload   any
	DecodeErr error
	Duration  time.Duration
}

func (o *Outcome) OK() bool {
	return o.StatusCode == http.StatusOK
}

func (o *Outcome) GetResponse() (command.GetResponse, error) {
	if o.DecodeErr != nil {
		return command.GetResponse{}, o.DecodeErr
	}

	return command.DecodeGetResponse(o.Body)
}

func (o *Outcome) PutResponse() (command.PutResponse, error) {
	if o.DecodeErr != nil {
		return command.PutResponse{}, o.DecodeErr
	}

	return command.DecodePutResponse(o.Body)
}

// TransportError means no HTTP response was received at all.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
