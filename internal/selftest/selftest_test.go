package selftest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/zoosearch/internal/config"
	"github.com/san-kum/zoosearch/internal/expr"
)

func TestRunPasses(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	err := Run(Options{Dir: dir, Out: &out, DemoDuration: 2})
	require.NoError(t, err, out.String())

	report := out.String()
	assert.NotContains(t, report, "FAIL")
	for _, c := range checks {
		assert.Contains(t, report, "ok    "+c.name)
	}
	assert.Contains(t, report, "vx = ")
	assert.Contains(t, report, "# collapsed along z")

	data, err := os.ReadFile(filepath.Join(dir, ExpressionsFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# opcount 0 (7)\na\nb\nc\nd\nx\ny\nz\n"))
	assert.Contains(t, string(data), "# opcount 1 (91)\n")
}

func TestRunReportsEveryFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bound = -1
	missing := filepath.Join(t.TempDir(), "missing", "dir")

	var out bytes.Buffer
	err := Run(Options{Config: cfg, Dir: missing, Out: &out, DemoDuration: 0.1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy thresholds")
	assert.Contains(t, err.Error(), "expression dump")
	assert.Contains(t, out.String(), "FAIL  policy thresholds")
	assert.Contains(t, out.String(), "ok    enumerator counts")
}

func TestRunRejectsBadAlphabet(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Alphabet = "aa"
	assert.Error(t, Run(Options{Config: cfg, Dir: t.TempDir()}))
}

func TestWriteExpressions(t *testing.T) {
	e, err := expr.NewEnumerator("xy", 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteExpressions(&buf, e))
	want := "# opcount 0 (2)\nx\ny\n\n" +
		"# opcount 1 (6)\nxx*\nxy-\nxy+\nxy*\nyx-\nyy*\n\n"
	assert.Equal(t, want, buf.String())
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "      a\n      b\n", indent("a\nb\n"))
	assert.Equal(t, "      a", indent("a"))
	assert.Equal(t, "", indent(""))
}
