package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/shyim/kvprobe/internal/command"
	"golang.org/x/sync/errgroup"
)

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient overrides the HTTP client. The client is copied, so
// later options never modify the caller's value.
func WithHTTPClient(h *http.Client) Option {
	return func(e *Executor) {
		if h != nil {
			e.httpClient = h
		}
	}
}

// WithTimeout bounds a whole exchange. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithFollowRedirects controls whether 3xx responses carrying a Location
// header are followed.
func WithFollowRedirects(follow bool) Option {
	return func(e *Executor) {
		e.followRedirects = follow
	}
}

// WithEscapedKeys path-escapes keys and hash keys instead of using them
// verbatim.
func WithEscapedKeys(escape bool) Option {
	return func(e *Executor) {
		e.escapeKeys = escape
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(e *Executor) {
		e.header.Add(key, value)
	}
}

// Executor turns commands into HTTP exchanges. It never retries.
type Executor struct {
	httpClient      *http.Client
	header          http.Header
	timeout         time.Duration
	followRedirects bool
	escapeKeys      bool
}

// New returns an Executor with its own cleanhttp client, so two executors
// never share pooled connections.
func New(opts ...Option) *Executor {
	e := &Executor{
		httpClient:      cleanhttp.DefaultClient(),
		header:          make(http.Header),
		followRedirects: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	client := *e.httpClient

	if e.timeout > 0 {
		client.Timeout = e.timeout
	}

	if !e.followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	e.httpClient = &client

	return e
}

// Execute sends cmd and blocks until the response is read. Network
// failures return a *TransportError. Every HTTP response, whatever its
// status, is an Outcome.
func (e *Executor) Execute(ctx context.Context, cmd command.Command) (*Outcome, error) {
	body, err := cmd.Body()

	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	outcome := &Outcome{
		Command:     cmd,
		Method:      cmd.Method(),
		URL:         cmd.URL(e.escapeKeys),
		RequestBody: body,
	}

	var reader io.Reader

	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, outcome.Method, outcome.URL, reader)

	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", outcome.URL, err)
	}

	req.Header = e.header.Clone()

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debugf("%s %s", outcome.Method, outcome.URL)

	start := time.Now()
	resp, err := e.httpClient.Do(req)

	if err != nil {
		return nil, &TransportError{Method: outcome.Method, URL: outcome.URL, Err: err}
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnf("Failed to close response body: %s", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, &TransportError{Method: outcome.Method, URL: outcome.URL, Err: fmt.Errorf("read response body: %w", err)}
	}

	outcome.Duration = time.Since(start)
	outcome.StatusCode = resp.StatusCode
	outcome.Header = resp.Header.Clone()
	outcome.Body = raw
	outcome.Payload, outcome.DecodeErr = decodeJSONBody(raw)

	log.Debugf("%s %s -> %d in %s", outcome.Method, outcome.URL, outcome.StatusCode, outcome.Duration)

	return outcome, nil
}

// ExecuteTogether sends all commands at the same moment. Every request
// waits on a shared start barrier that is released once all goroutines are
// running. outcomes[i] and errs[i] belong to commands[i].
func (e *Executor) ExecuteTogether(ctx context.Context, commands []command.Command) ([]*Outcome, []error) {
	outcomes := make([]*Outcome, len(commands))
	errs := make([]error, len(commands))

	var (
		eg    errgroup.Group
		ready sync.WaitGroup
	)

	start := make(chan struct{})
	ready.Add(len(commands))

	for i, cmd := range commands {
		eg.Go(func() error {
			ready.Done()
			<-start
			outcomes[i], errs[i] = e.Execute(ctx, cmd)

			return nil
		})
	}

	ready.Wait()
	close(start)

	_ = eg.Wait()

	return outcomes, errs
}

func decodeJSONBody(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) == 0 {
		return nil, nil
	}

	var payload any

	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}

	return payload, nil
}
