// Package suite runs the cases of a suite file against a store.
package suite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/expr-lang/expr/vm"
	"github.com/shyim/kvprobe/internal/command"
	"github.com/shyim/kvprobe/internal/config"
	"github.com/shyim/kvprobe/internal/executor"
	"github.com/shyim/kvprobe/internal/verify"
	"golang.org/x/sync/errgroup"
)

type Option func(*Runner)

// WithReporter prints every exchange. Without a reporter the runner is
// silent and only returns results.
func WithReporter(r *verify.Reporter) Option {
	return func(runner *Runner) {
		runner.reporter = r
	}
}

// WithPolicy replaces the policy read from the suite file.
func WithPolicy(p verify.Policy) Option {
	return func(runner *Runner) {
		runner.policy = p
	}
}

// WithExecutorOptions are applied after the options derived from the
// suite file.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(runner *Runner) {
		runner.execOpts = append(runner.execOpts, opts...)
	}
}

type Runner struct {
	cfg      *config.SuiteConfig
	policy   verify.Policy
	reporter *verify.Reporter
	execOpts []executor.Option

	groups  map[string][]command.Command
	expects map[string]*vm.Program
}

// NewRunner parses every case up front, so a broken case fails the whole
// suite before any request is sent.
func NewRunner(cfg *config.SuiteConfig, opts ...Option) (*Runner, error) {
	policy, err := cfg.ParsedPolicy()

	if err != nil {
		return nil, err
	}

	follow := true

	if cfg.FollowRedirects != nil {
		follow = *cfg.FollowRedirects
	}

	r := &Runner{
		cfg:    cfg,
		policy: policy,
		execOpts: []executor.Option{
			executor.WithTimeout(cfg.RequestTimeout()),
			executor.WithFollowRedirects(follow),
			executor.WithEscapedKeys(cfg.EscapeKeys),
		},
		groups:  make(map[string][]command.Command),
		expects: make(map[string]*vm.Program),
	}

	for _, opt := range opts {
		opt(r)
	}

	for _, sc := range cfg.Cases {
		commands, err := command.ParseGroup(sc.Command, cfg.CaseArgs(sc))

		if err != nil {
			return nil, fmt.Errorf("case %s: %w", sc.Name, err)
		}

		r.groups[sc.ID()] = commands

		if sc.Expect == "" {
			continue
		}

		program, err := compileExpect(sc.Expect)

		if err != nil {
			return nil, fmt.Errorf("case %s: %w", sc.Name, err)
		}

		r.expects[sc.ID()] = program
	}

	return r, nil
}

// Run executes all cases, at most cfg.Concurrency at a time. Failing
// cases do not stop the run.
func (r *Runner) Run(ctx context.Context) (*Results, error) {
	results := NewResults(r.cfg.Name)

	for _, sc := range r.cfg.Cases {
		results.Add(&CaseResult{ID: sc.ID(), Name: sc.Name, Command: sc.Command})
	}

	var eg errgroup.Group

	limit := r.cfg.Concurrency

	if limit < 1 {
		limit = 1
	}

	eg.SetLimit(limit)

	for _, sc := range r.cfg.Cases {
		caseResult, _ := results.Get(sc.ID())

		eg.Go(func() error {
			r.runCase(ctx, sc, caseResult)

			return nil
		})
	}

	_ = eg.Wait()

	results.Duration = time.Since(results.StartedAt)

	if err := ctx.Err(); err != nil {
		return results, err
	}

	return results, nil
}

func (r *Runner) runCase(ctx context.Context, sc config.SuiteCase, result *CaseResult) {
	commands := r.groups[sc.ID()]
	exec := executor.New(r.execOpts...)
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)
	}()

	var outcomes []*executor.Outcome
	var errs []error

	if len(commands) == 1 {
		outcome, err := exec.Execute(ctx, commands[0])
		outcomes, errs = []*executor.Outcome{outcome}, []error{err}
	} else {
		outcomes, errs = exec.ExecuteTogether(ctx, commands)
	}

	result.Passed = true
	details := make([]string, 0, len(commands))

	for i, cmd := range commands {
		if errs[i] != nil {
			if r.reporter != nil {
				r.reporter.ReportError(cmd, cmd.URL(r.cfg.EscapeKeys), errs[i])
			}

			result.Passed = false
			result.Err = errors.Join(result.Err, errs[i])
			details = append(details, errs[i].Error())

			continue
		}

		check := r.check(sc, outcomes[i])

		if r.reporter != nil {
			r.reporter.Report(outcomes[i], check)
		}

		result.Outcomes = append(result.Outcomes, outcomes[i])
		result.Passed = result.Passed && check.Passed
		result.Notice = result.Notice || check.Notice
		details = append(details, check.Detail)
	}

	result.Detail = strings.Join(details, "; ")

	log.Debugf("Case %s finished, passed: %t", sc.Name, result.Passed)
}

// check applies the case expectation, or the policy when the case has
// none.
func (r *Runner) check(sc config.SuiteCase, outcome *executor.Outcome) verify.Result {
	program, ok := r.expects[sc.ID()]

	if !ok {
		return verify.Validate(outcome, r.policy)
	}

	mode := r.policy.ModeFor(outcome.Command.Kind())
	passed, err := runExpect(program, outcome)

	if err != nil {
		return verify.Result{Passed: false, Mode: mode, Detail: fmt.Sprintf("expect %s: %s", sc.Expect, err)}
	}

	if !passed {
		return verify.Result{Passed: false, Mode: mode, Detail: fmt.Sprintf("expect %s was false (status %d)", sc.Expect, outcome.StatusCode)}
	}

	return verify.Result{Passed: true, Mode: mode, Detail: fmt.Sprintf("expect %s", sc.Expect)}
}
