package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"server", "job", "keys", "hash-password", "version"})

	job, _, err := root.Find([]string{"job"})
	require.NoError(t, err)
	var sub []string
	for _, c := range job.Commands() {
		sub = append(sub, c.Name())
	}
	assert.ElementsMatch(t, []string{"create", "list", "pause", "resume", "delete"}, sub)
}

func TestJobStatusRequiresValidID(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"job", "pause", "not-a-uuid"})

	err := root.Execute()
	assert.ErrorContains(t, err, "invalid job id")
}

func TestJobChangesRefusedForFileStore(t *testing.T) {
	t.Setenv("JOB_STORE", "file")
	t.Setenv("JOBS_FILE", filepath.Join(t.TempDir(), "jobs.json"))

	for _, args := range [][]string{
		{"job", "create", "--start-date", "2026-10-19", "--start", "10:00", "--end", "11:00"},
		{"job", "pause", "6f1c1a4e-4b8e-4a53-9d2e-2f4b5f0d7c11"},
		{"job", "resume", "6f1c1a4e-4b8e-4a53-9d2e-2f4b5f0d7c11"},
		{"job", "delete", "6f1c1a4e-4b8e-4a53-9d2e-2f4b5f0d7c11"},
	} {
		t.Run(args[1], func(t *testing.T) {
			root := NewRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(args)

			err := root.Execute()
			assert.ErrorIs(t, err, errFileStoreWrite)
		})
	}
}

func TestVersion(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "machinebook dev")
}
