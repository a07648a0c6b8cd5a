package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shyim/kvprobe/internal/command"
	"github.com/shyim/kvprobe/internal/executor"
)

const Separator = "------------------------------------------------------"

// Reporter prints one block per command. Each block is written with a
// single call under a lock, so reports of concurrent commands never
// interleave.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer

	pass   lipgloss.Style
	fail   lipgloss.Style
	notice lipgloss.Style
}

// NewReporter styles its output for out. Colours are only used when out
// is a terminal.
func NewReporter(out io.Writer) *Reporter {
	renderer := lipgloss.NewRenderer(out)

	return &Reporter{
		out:    out,
		pass:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		fail:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		notice: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
}

func (r *Reporter) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = io.WriteString(r.out, s)
}

// Report prints the exchange between two separator lines, followed by
// the result.
func (r *Reporter) Report(outcome *executor.Outcome, result Result) {
	r.write(r.Render(outcome, result))
}

// ReportError prints a command that did not get any response.
func (r *Reporter) ReportError(cmd command.Command, url string, err error) {
	var b strings.Builder

	b.WriteString(Separator + "\n")
	fmt.Fprintf(&b, "sent to %s\n", url)

	if body, encodeErr := cmd.Body(); encodeErr == nil && body != nil {
		writeJSONSection(&b, "request body:", body)
	}

	fmt.Fprintf(&b, "error: %s\n", err)
	b.WriteString(Separator + "\n")
	fmt.Fprintf(&b, "%s %s: %s\n", r.fail.Render("ERROR"), cmd.Kind(), err)

	r.write(b.String())
}

func (r *Reporter) Render(outcome *executor.Outcome, result Result) string {
	var b strings.Builder

	b.WriteString(Separator + "\n")
	fmt.Fprintf(&b, "sent to %s\n", outcome.URL)

	if outcome.Command.Kind().IsWrite() {
		writeJSONSection(&b, "request body:", outcome.RequestBody)

		if result.Mode == ModeObserve {
			fmt.Fprintf(&b, "status code: %d\n", outcome.StatusCode)
		}

		if outcome.StatusCode != http.StatusOK {
			writeResponseBody(&b, outcome)
		}
	} else {
		writeResponseBody(&b, outcome)
	}

	b.WriteString(Separator + "\n")

	label := r.pass.Render("PASS")

	switch {
	case !result.Passed:
		label = r.fail.Render("FAIL")
	case result.Notice:
		label = r.notice.Render("NOTICE")
	}

	fmt.Fprintf(&b, "%s %s %s: %s (%s)\n", label, outcome.Command.Kind(), outcome.URL, result.Detail, outcome.Duration.Round(time.Millisecond))

	return b.String()
}

func writeResponseBody(b *strings.Builder, outcome *executor.Outcome) {
	if outcome.DecodeErr != nil {
		fmt.Fprintf(b, "response body could not be decoded: %s\n", outcome.DecodeErr)
		b.Write(outcome.Body)
		b.WriteString("\n")

		return
	}

	writeJSONSection(b, "response body:", outcome.Body)
}

func writeJSONSection(b *strings.Builder, title string, raw []byte) {
	b.WriteString(title + "\n")

	pretty, err := PrettyJSON(raw)

	if err != nil {
		b.Write(raw)
		b.WriteString("\n")

		return
	}

	b.WriteString(pretty)
}

// PrettyJSON indents raw with four spaces and sorts object keys. Numbers
// are kept as written. An empty body renders as null.
func PrettyJSON(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 {
		return "null\n", nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any

	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	var out bytes.Buffer

	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")

	if err := enc.Encode(v); err != nil {
		return "", err
	}

	return out.String(), nil
}
