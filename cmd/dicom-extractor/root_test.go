// --- START OF FINAL REVISED FILE cmd/dicom-extractor/root_test.go ---
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/dicom-extractor/internal/testutil"
	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

// executeCommand runs cmd with args and captures cobra's own output.
func executeCommand(cmd *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return stdoutBuf.String(), stderrBuf.String(), err
}

func TestRootCmdHelp_AllFlagsPresent(t *testing.T) {
	cmd := newRootCmd()
	stdout, stderr, err := executeCommand(cmd, "--help")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "dicom-extractor <rootDir>")

	check := func(f *pflag.Flag) {
		assert.Contains(t, stdout, "--"+f.Name, "help should list --%s", f.Name)
		if f.Shorthand != "" {
			assert.Contains(t, stdout, "-"+f.Shorthand+",", "help should list -%s", f.Shorthand)
		}
	}
	cmd.Flags().VisitAll(check)
	cmd.PersistentFlags().VisitAll(check)
}

func TestRootCmdVersion(t *testing.T) {
	originalVersion, originalCommit, originalDate := version, commit, date
	version, commit, date = "test-1.2.3", "abc123", "2026-01-01T10:00:00Z"
	defer func() { version, commit, date = originalVersion, originalCommit, originalDate }()

	cmd := newRootCmd()
	cmd.SetVersionTemplate(`{{.Name}} version {{.Version}}` + "\n")
	stdout, _, err := executeCommand(cmd, "--version")
	require.NoError(t, err)
	assert.Equal(t, "dicom-extractor version test-1.2.3 (commit: abc123, built: 2026-01-01T10:00:00Z)\n", stdout)
}

func TestRootCmdArgumentErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{name: "missing root", args: []string{}, errorMsg: "accepts 1 arg(s), received 0"},
		{name: "two roots", args: []string{"a", "b"}, errorMsg: "accepts 1 arg(s), received 2"},
		{name: "unknown flag", args: []string{".", "--unknown-flag"}, errorMsg: "unknown flag: --unknown-flag"},
		{name: "bad int", args: []string{".", "--concurrency", "abc"}, errorMsg: `invalid argument "abc" for "--concurrency" flag`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, err := executeCommand(newRootCmd(), tc.args...)
			require.Error(t, err)
			assert.Contains(t, stderr, tc.errorMsg)
		})
	}
}

func TestRootCmdConfigurationError(t *testing.T) {
	_, _, err := executeCommand(newRootCmd(), filepath.Join(t.TempDir(), "absent"), "--no-tui")
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrConfigValidation)
}

func TestRootCmdEndToEnd(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		testutil.WriteDICOMFile(t, filepath.Join(root, fmt.Sprintf("series/im%d.dcm", i)), testutil.DICOMOptions{},
			testutil.Text(0x0008, 0x0060, "CS", "MR"),
		)
	}
	out := filepath.Join(t.TempDir(), "meta.csv")
	report := filepath.Join(t.TempDir(), "report.toml")

	_, _, err := executeCommand(newRootCmd(), root, "-o", out, "--no-tui", "--concurrency", "2", "--report-file", report)
	require.NoError(t, err)
	assert.FileExists(t, out)
	assert.FileExists(t, report)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Modality (0008, 0060)")
}

// --- END OF FINAL REVISED FILE cmd/dicom-extractor/root_test.go ---
