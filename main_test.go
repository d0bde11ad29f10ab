package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parajoin/pkg/relation"
)

func writeRelation(t *testing.T, dir, name string, cols ...[]uint64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, relation.WriteFile(path, relation.MustNew(cols...)))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--workers", "2", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	r0 := writeRelation(t, dir, "r0", []uint64{1, 2, 3}, []uint64{10, 20, 30})
	r1 := writeRelation(t, dir, "r1", []uint64{2, 3, 3})

	stdin := strings.Join([]string{r0, r1, "Done", "0 1|0.0=1.0|0.1", "0|0.0>5|0.0", "F", ""}, "\n")
	out, err := execute(t, stdin, "run")
	require.NoError(t, err)
	assert.Equal(t, "80\nNULL\n", out)
}

func TestQueryCommand(t *testing.T) {
	dir := t.TempDir()
	r0 := writeRelation(t, dir, "r0", []uint64{1, 2, 3})

	out, err := execute(t, "", "query", "-r", r0, "0|0.0<3|0.0")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	_, err = execute(t, "", "query", "-r", r0, "0|0.0<3")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	r0 := writeRelation(t, dir, "r0", []uint64{4, 8, 15})

	out, err := execute(t, "", "inspect", r0)
	require.NoError(t, err)
	assert.Contains(t, out, "3 rows, 1 columns")

	out, err = execute(t, "", "inspect", filepath.Join(dir, "missing"))
	assert.Error(t, err)
	assert.Contains(t, out, "missing")
}
