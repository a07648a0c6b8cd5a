package config

import "fmt"

var presetNames = []string{"smoke", "conflict"}

func PresetNames() []string {
	return append([]string(nil), presetNames...)
}

// AddPreset appends the cases of a named preset to the suite.
func AddPreset(cfg *SuiteConfig, name string) error {
	switch name {
	case "smoke":
		addSmokePreset(cfg)
	case "conflict":
		addConflictPreset(cfg)
	default:
		return fmt.Errorf("unknown preset %s", name)
	}

	return nil
}

func addSmokePreset(cfg *SuiteConfig) {
	cfg.Concurrency = 1
	cfg.Cases = append(cfg.Cases,
		SuiteCase{
			Name:    "write plain value",
			Command: "put-plain",
			Args:    []string{"kvprobe-smoke", "hello"},
		},
		SuiteCase{
			Name:    "read plain value",
			Command: "get",
			Args:    []string{"kvprobe-smoke"},
			Expect:  `status == 200 && data == "hello"`,
		},
	)
}

func addConflictPreset(cfg *SuiteConfig) {
	cfg.Concurrency = 1
	cfg.Cases = append(cfg.Cases,
		SuiteCase{
			Name:    "first versioned write",
			Command: "put-versioned",
			Args:    []string{"kvprobe-cart", "add", "apple", "[]"},
		},
		SuiteCase{
			Name:    "stale versioned write is rejected",
			Command: "put-versioned",
			Args:    []string{"kvprobe-cart", "add", "pear", "[]"},
			Expect:  `status == 302 && len(clocks) > 0`,
		},
		SuiteCase{
			Name:    "concurrent writes on one version",
			Command: "concurrent-put",
			Args: []string{
				"kvprobe-race",
				`{"op":"add","item":"a","version":[]}`,
				`{"op":"add","item":"b","version":[]}`,
			},
		},
	)
}
