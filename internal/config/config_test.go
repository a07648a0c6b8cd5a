package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shyim/kvprobe/internal/command"
	"github.com/shyim/kvprobe/internal/verify"
	"github.com/stretchr/testify/assert"
)

const validSuite = "address: localhost:8080\ncases:\n  - name: read foo\n    command: get\n    args: [foo]\n"

func TestPolicyConfigSchema(t *testing.T) {
	p := PolicyConfig{}

	schema := p.JSONSchema()

	assert.Equal(t, "object", schema.Type)
	assert.Len(t, schema.AdditionalProperties.Enum, 2)
}

func TestConfigLoadWithoutExistence(t *testing.T) {
	_, err := CreateConfig("nonexistent.yml")

	assert.Error(t, err)
}

func TestConfigLoadWithInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	assert.NoError(t, os.WriteFile(filepath.Join(tmpDir, "invalid.yml"), []byte("invalid"), 0644))

	_, err := CreateConfig(filepath.Join(tmpDir, "invalid.yml"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot unmarshal")
}

func TestConfigLoadWithValidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	assert.NoError(t, os.WriteFile(filepath.Join(tmpDir, "valid.yml"), []byte(validSuite), 0644))

	cfg, err := CreateConfig(filepath.Join(tmpDir, "valid.yml"))

	assert.NoError(t, err)
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, *cfg.FollowRedirects)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout())
	assert.Equal(t, []string{"localhost:8080", "foo"}, cfg.CaseArgs(cfg.Cases[0]))
	assert.Equal(t, "read-foo", cfg.Cases[0].ID())
}

func TestConfigIncludes(t *testing.T) {
	tmpDir := t.TempDir()

	currentDir, err := os.Getwd()

	assert.NoError(t, err)

	assert.NoError(t, os.Chdir(tmpDir))

	assert.NoError(t, os.WriteFile(filepath.Join(tmpDir, "base.yml"), []byte(validSuite+"timeout: 3\n"), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(tmpDir, "valid.yml"), []byte("include:\n  - base.yml\nname: nightly\n"), 0644))

	cfg, err := CreateConfig(filepath.Join(tmpDir, "valid.yml"))

	assert.NoError(t, err)
	assert.Equal(t, "nightly", cfg.Name)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout())
	assert.Len(t, cfg.Cases, 1)

	assert.NoError(t, os.Chdir(currentDir))
}

func TestConfigIncludeFileMissing(t *testing.T) {
	tmpDir := t.TempDir()

	assert.NoError(t, os.WriteFile(filepath.Join(tmpDir, "invalid.yml"), []byte("include:\n  - missing.yml"), 0644))

	_, err := CreateConfig(filepath.Join(tmpDir, "invalid.yml"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read include file missing.yml")
}

func TestConfigEnvFileExpansion(t *testing.T) {
	tmpDir := t.TempDir()

	envFile := filepath.Join(tmpDir, ".env")
	assert.NoError(t, os.WriteFile(envFile, []byte("KV_ADDRESS=node-1:9000\nKV_KEY=cart\n"), 0644))

	suite := "address: ${KV_ADDRESS}\nenv_file:\n  - " + envFile + "\n  - " + filepath.Join(tmpDir, "missing.env") + "\ncases:\n  - name: read\n    command: get\n    args: [\"${KV_KEY}\"]\n"
	assert.NoError(t, os.WriteFile(filepath.Join(tmpDir, "suite.yml"), []byte(suite), 0644))

	cfg, err := CreateConfig(filepath.Join(tmpDir, "suite.yml"))

	assert.NoError(t, err)
	assert.Equal(t, "node-1:9000", cfg.Address)
	assert.Equal(t, []string{"cart"}, cfg.Cases[0].Args)
}

func TestConfigProcessEnvExpansion(t *testing.T) {
	t.Setenv("KVPROBE_TEST_ADDRESS", "from-env:1234")

	cfg := SuiteConfig{Address: "${KVPROBE_TEST_ADDRESS}", Cases: []SuiteCase{{Name: "a", Command: "get", Args: []string{"k"}}}}

	assert.NoError(t, cfg.expandEnv())
	assert.Equal(t, "from-env:1234", cfg.Address)
}

func TestConfigKeepsLiteralDollarSigns(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("KVPROBE_TEST_ITEM", "apple")

	suite := "address: localhost\ncases:\n  - name: write\n    command: put-plain\n    args: [\"k$1\", 'price $5 p@$$w0rd $HOME ${KVPROBE_TEST_ITEM} ${not-a-var}']\n"
	assert.NoError(t, os.WriteFile(filepath.Join(tmpDir, "suite.yml"), []byte(suite), 0644))

	cfg, err := CreateConfig(filepath.Join(tmpDir, "suite.yml"))

	assert.NoError(t, err)
	assert.Equal(t, []string{"k$1", "price $5 p@$$w0rd $HOME apple ${not-a-var}"}, cfg.Cases[0].Args)
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]string{
		"the suite has no cases":  "address: localhost\n",
		"missing name":            "address: localhost\ncases:\n  - command: get\n    args: [k]\n",
		"duplicate name":          "address: localhost\ncases:\n  - name: A b\n    command: get\n    args: [k]\n  - name: a-b\n    command: get\n    args: [k]\n",
		"missing address":         "cases:\n  - name: a\n    command: get\n    args: [k]\n",
		"usage: kvprobe get":      "address: localhost\ncases:\n  - name: a\n    command: get\n",
		"unknown command":         "address: localhost\ncases:\n  - name: a\n    command: delete\n    args: [k]\n",
		"version is not valid":    "address: localhost\ncases:\n  - name: a\n    command: put-versioned\n    args: [k, add, x, not-json]\n",
		"policy: unknown command": "address: localhost\npolicy:\n  delete: observe\ncases:\n  - name: a\n    command: get\n    args: [k]\n",
		"unknown assertion mode":  "address: localhost\npolicy:\n  get: strict\ncases:\n  - name: a\n    command: get\n    args: [k]\n",
		"schedule":                "address: localhost\nschedule: every now and then\ncases:\n  - name: a\n    command: get\n    args: [k]\n",
	}

	for expected, content := range cases {
		tmpDir := t.TempDir()
		file := filepath.Join(tmpDir, "suite.yml")

		assert.NoError(t, os.WriteFile(file, []byte(content), 0644))

		_, err := CreateConfig(file)

		if assert.Error(t, err, expected) {
			assert.Contains(t, err.Error(), expected)
		}
	}
}

func TestConfigCaseAddressOverride(t *testing.T) {
	cfg := SuiteConfig{Address: "a:1"}

	assert.Equal(t, "b:2", cfg.CaseAddress(SuiteCase{Address: "b:2"}))
	assert.Equal(t, "a:1", cfg.CaseAddress(SuiteCase{}))
}

func TestConfigParsedPolicy(t *testing.T) {
	cfg := SuiteConfig{Policy: PolicyConfig{"put-versioned": "assert", "get": "observe"}}

	policy, err := cfg.ParsedPolicy()

	assert.NoError(t, err)
	assert.Equal(t, verify.ModeAssert, policy.ModeFor(command.KindPutVersioned))
	assert.Equal(t, verify.ModeObserve, policy.ModeFor(command.KindGet))
	assert.Equal(t, verify.ModeAssert, policy.ModeFor(command.KindPutPlain))
}

func TestConfigValidSchedule(t *testing.T) {
	assert.NoError(t, validateSchedule("@every 1m"))
	assert.NoError(t, validateSchedule("*/5 * * * *"))
	assert.NoError(t, validateSchedule(""))
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := SuiteConfig{Address: "localhost:8080"}
		cfg.FillDefaults()

		assert.NoError(t, AddPreset(&cfg, name))
		assert.NoError(t, validateConfig(&cfg), name)
	}

	assert.Error(t, AddPreset(&SuiteConfig{}, "unknown"))
}
