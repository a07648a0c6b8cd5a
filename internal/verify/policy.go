package verify

import (
	"fmt"
	"maps"

	"github.com/shyim/kvprobe/internal/command"
)

// Mode decides whether a non-200 status fails a command.
type Mode string

const (
	ModeAssert  Mode = "assert"
	ModeObserve Mode = "observe"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAssert, ModeObserve:
		return Mode(s), nil
	}

	return "", fmt.Errorf("unknown assertion mode %q, expected %q or %q", s, ModeAssert, ModeObserve)
}

// Policy maps command kinds to modes. Kinds without an entry are asserted.
type Policy map[command.Kind]Mode

// DefaultPolicy observes versioned writes, since a stale version is
// expected to be rejected by the store, and asserts everything else.
func DefaultPolicy() Policy {
	return Policy{
		command.KindGet:          ModeAssert,
		command.KindRedirectGet:  ModeAssert,
		command.KindPutPlain:     ModeAssert,
		command.KindPutVersioned: ModeObserve,
		command.KindReconcile:    ModeAssert,
	}
}

func (p Policy) ModeFor(kind command.Kind) Mode {
	if m, ok := p[kind]; ok {
		return m
	}

	return ModeAssert
}

// With returns a copy of p with kind set to mode.
func (p Policy) With(kind command.Kind, mode Mode) Policy {
	c := maps.Clone(p)

	if c == nil {
		c = Policy{}
	}

	c[kind] = mode

	return c
}
