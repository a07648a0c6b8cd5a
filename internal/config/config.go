package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gosimple/slug"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shyim/kvprobe/internal/command"
	"github.com/shyim/kvprobe/internal/verify"
	"gopkg.in/yaml.v3"
)

type SuiteConfig struct {
	Include []string `yaml:"include,omitempty"`
	// Name identifies the suite in the run history.
	Name string `yaml:"name"`
	// Address is the base address of the store, used by every case that
	// does not set its own.
	Address string `yaml:"address"`
	// EnvFile lists dotenv files whose variables are expanded as ${VAR}
	// in addresses and case arguments.
	EnvFile []string `yaml:"env_file,omitempty"`
	// Concurrency is the number of cases that run at the same time.
	Concurrency int `yaml:"concurrency,omitempty"`
	// Timeout in seconds for a single request. 0 keeps the transport default.
	Timeout         int          `yaml:"timeout,omitempty"`
	FollowRedirects *bool        `yaml:"follow_redirects,omitempty"`
	EscapeKeys      bool         `yaml:"escape_keys,omitempty"`
	History         string       `yaml:"history,omitempty"`
	Schedule        string       `yaml:"schedule,omitempty"`
	Policy          PolicyConfig `yaml:"policy,omitempty"`
	Cases           []SuiteCase  `yaml:"cases" jsonschema:"required"`
}

type SuiteCase struct {
	Name    string `yaml:"name" jsonschema:"required"`
	Command string `yaml:"command" jsonschema:"required"`
	// Address overrides the suite address for this case.
	Address string `yaml:"address,omitempty"`
	// Args are the positional arguments of the command without the address.
	Args []string `yaml:"args,omitempty"`
	// Expect is a boolean expression replacing the status check.
	Expect string `yaml:"expect,omitempty"`
}

// PolicyConfig maps command names to "assert" or "observe".
type PolicyConfig map[string]string

func (p PolicyConfig) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		AdditionalProperties: &jsonschema.Schema{
			Type: "string",
			Enum: []any{string(verify.ModeAssert), string(verify.ModeObserve)},
		},
	}
}

func CreateConfig(file string) (*SuiteConfig, error) {
	var cfg SuiteConfig

	if _, err := os.Stat(file); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s does not exist", file)
	}

	data, err := os.ReadFile(file)

	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Included files are loaded first, the main file is applied again on top
	for _, include := range cfg.Include {
		includeData, err := os.ReadFile(include)

		if err != nil {
			return nil, fmt.Errorf("failed to read include file %s: %w", include, err)
		}

		if err := yaml.Unmarshal(includeData, &cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.Include) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.FillDefaults()

	if err := cfg.expandEnv(); err != nil {
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	if err := validateSchedule(cfg.Schedule); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *SuiteConfig) FillDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}

	if c.Concurrency == 0 {
		c.Concurrency = 4
	}

	if c.FollowRedirects == nil {
		follow := true
		c.FollowRedirects = &follow
	}

	if c.Policy == nil {
		c.Policy = make(PolicyConfig)
	}
}

func (c *SuiteConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ParsedPolicy applies the policy section on top of the default policy.
func (c *SuiteConfig) ParsedPolicy() (verify.Policy, error) {
	policy := verify.DefaultPolicy()

	for name, value := range c.Policy {
		kind, ok := command.ParseKind(name)

		if !ok {
			return nil, fmt.Errorf("policy: unknown command %s", name)
		}

		mode, err := verify.ParseMode(value)

		if err != nil {
			return nil, fmt.Errorf("policy: %s: %w", name, err)
		}

		policy = policy.With(kind, mode)
	}

	return policy, nil
}

// CaseAddress is the address a case runs against.
func (c *SuiteConfig) CaseAddress(sc SuiteCase) string {
	if sc.Address != "" {
		return sc.Address
	}

	return c.Address
}

// CaseArgs returns the full positional argument list of a case.
func (c *SuiteConfig) CaseArgs(sc SuiteCase) []string {
	return append([]string{c.CaseAddress(sc)}, sc.Args...)
}

// ID is a stable identifier of the case, used as history key.
func (sc SuiteCase) ID() string {
	return slug.Make(sc.Name)
}

func (c *SuiteConfig) expandEnv() error {
	vars := make(map[string]string)

	for _, fileName := range c.EnvFile {
		if _, err := os.Stat(fileName); os.IsNotExist(err) {
			log.Warnf("Environment file %s does not exist, skipping it", fileName)

			continue
		}

		envMap, err := godotenv.Read(fileName)

		if err != nil {
			return fmt.Errorf("error reading environment file %s: %w", fileName, err)
		}

		for key, value := range envMap {
			vars[key] = value
		}
	}

	lookup := func(name string) string {
		if value, ok := vars[name]; ok {
			return value
		}

		return os.Getenv(name)
	}

	c.Address = expandVars(c.Address, lookup)

	for i := range c.Cases {
		c.Cases[i].Address = expandVars(c.Cases[i].Address, lookup)

		for j := range c.Cases[i].Args {
			c.Cases[i].Args[j] = expandVars(c.Cases[i].Args[j], lookup)
		}
	}

	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVars replaces ${NAME} only. Any other $ is part of the value.
func expandVars(value string, lookup func(string) string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return lookup(match[2 : len(match)-1])
	})
}

func validateConfig(cfg *SuiteConfig) error {
	if len(cfg.Cases) == 0 {
		return fmt.Errorf("the suite has no cases")
	}

	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	if _, err := cfg.ParsedPolicy(); err != nil {
		return err
	}

	seen := make(map[string]bool)

	for i, sc := range cfg.Cases {
		if sc.Name == "" {
			return fmt.Errorf("case[%d]: missing name", i)
		}

		if seen[sc.ID()] {
			return fmt.Errorf("case[%d]: duplicate name %s", i, sc.Name)
		}

		seen[sc.ID()] = true

		if cfg.CaseAddress(sc) == "" {
			return fmt.Errorf("case[%d]: missing address, set it on the suite or the case", i)
		}

		if _, err := command.ParseGroup(sc.Command, cfg.CaseArgs(sc)); err != nil {
			return fmt.Errorf("case[%d] %s: %w", i, sc.Name, err)
		}
	}

	return nil
}

func validateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	return nil
}
