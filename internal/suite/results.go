package suite

import (
	"time"

	"github.com/shyim/kvprobe/internal/executor"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type CaseResult struct {
	ID      string
	Name    string
	Command string

	Passed bool
	Notice bool
	Detail string

	Duration time.Duration
	// Outcomes holds one entry per request that got a response. A
	// concurrent-put case has one per write.
	Outcomes []*executor.Outcome
	Err      error
}

// Results keeps case results in the order the cases are declared in the
// suite, whatever order they finish in.
type Results struct {
	Suite     string
	StartedAt time.Time
	Duration  time.Duration

	cases *orderedmap.OrderedMap[string, *CaseResult]
}

func NewResults(suite string) *Results {
	return &Results{
		Suite:     suite,
		StartedAt: time.Now(),
		cases:     orderedmap.New[string, *CaseResult](),
	}
}

// Add appends a case result. A result with an ID that is already present
// replaces it in place.
func (r *Results) Add(c *CaseResult) {
	r.cases.Set(c.ID, c)
}

func (r *Results) Get(id string) (*CaseResult, bool) {
	return r.cases.Get(id)
}

func (r *Results) Cases() []*CaseResult {
	list := make([]*CaseResult, 0, r.cases.Len())

	for pair := r.cases.Oldest(); pair != nil; pair = pair.Next() {
		list = append(list, pair.Value)
	}

	return list
}

func (r *Results) Failed() int {
	failed := 0

	for pair := r.cases.Oldest(); pair != nil; pair = pair.Next() {
		if !pair.Value.Passed {
			failed++
		}
	}

	return failed
}

func (r *Results) Passed() bool {
	return r.Failed() == 0
}
