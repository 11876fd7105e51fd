package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestRunVersion(t *testing.T) {
	origVersion, origBuildTime, origGitCommit := Version, BuildTime, GitCommit
	defer func() { Version, BuildTime, GitCommit = origVersion, origBuildTime, origGitCommit }()

	Version = "1.2.3"
	BuildTime = "2026-01-01T00:00:00Z"
	GitCommit = "abc123"

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	runVersion()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	output := buf.String()

	for _, want := range []string{"Ferrite 1.2.3", "Build Time: 2026-01-01T00:00:00Z", "Git Commit: abc123"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\nGot: %s", want, output)
		}
	}
}
