package yamlconf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordcountYAML = `
variables:
  root: /data
flows:
  - name: wordcount
    taps:
      - name: docs
        path: ${var.root}/docs
      - name: counts
        path: ${var.root}/counts
        priority: 2
        from: [count]
      - name: bad
        path: ${var.root}/bad
    operators:
      - name: tokenize
        from: [docs]
      - name: count
        branch: counting
        from: [by_word]
    groups:
      - name: by_word
        from: [tokenize]
    traps:
      - branch: tokenize
        tap: bad
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wordcount.yaml", wordcountYAML)
	writeFile(t, dir, "ignored.hcl", `flow "x" {}`)

	def, err := NewLoader(nil).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, def.Flows, 1)

	f := def.Flows[0]
	assert.Equal(t, "wordcount", f.Name)
	require.Len(t, f.Taps, 3)
	assert.Equal(t, "/data/docs", f.Taps[0].Path)
	assert.Equal(t, 2, f.Taps[1].Priority)
	assert.Equal(t, []string{"count"}, f.Taps[1].From)
	assert.Equal(t, "counting", f.Operators[1].Branch)
	assert.Equal(t, []string{"tokenize"}, f.Groups[0].From)
	require.Len(t, f.Traps, 1)
	assert.Equal(t, "bad", f.Traps[0].Tap)
}

func TestLoader_VarOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wordcount.yml", wordcountYAML)

	def, err := NewLoader(map[string]string{"root": "s3://b"}).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "s3://b/docs", def.Flows[0].Taps[0].Path)

	_, err = NewLoader(map[string]string{"other": "x"}).Load(context.Background(), dir)
	assert.ErrorContains(t, err, `undeclared variable "other"`)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "unknown key", content: "flowz: []", wantErr: "field flowz not found"},
		{name: "bad yaml", content: "flows: [", wantErr: "failed to decode YAML file"},
		{
			name:    "undeclared reference",
			content: "flows:\n  - name: a\n    taps:\n      - name: t\n        path: ${var.nope}/x\n",
			wantErr: `tap "t": undeclared variable "nope"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "def.yaml", tt.content)
			_, err := NewLoader(nil).Load(context.Background(), path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoader_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")
	def, err := NewLoader(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, def.Flows)
}
