package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecuteCapturesStdout(t *testing.T) {
	out, err := Shell("echo '  hello  '").Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello" {
		t.Errorf("out = %q, want trimmed hello", out)
	}
}

func TestExecuteFailureIncludesStderr(t *testing.T) {
	_, err := Shell("echo broken >&2; exit 3").Execute()
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("stderr missing from error: %v", err)
	}
}

func TestDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	out, err := Shell("pwd; echo $NIX_SSHOPTS").WithDir(dir).WithEnv("NIX_SSHOPTS=-p 2222").Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], dir[strings.LastIndex(dir, "/"):]) || lines[1] != "-p 2222" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStream(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := Shell("echo out; echo err >&2").Stream(context.Background(), &stdout, &stderr)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if stdout.String() != "out\n" || stderr.String() != "err\n" {
		t.Errorf("stdout=%q stderr=%q", stdout.String(), stderr.String())
	}

	l := Local{Stdout: &stdout, Stderr: &stderr}
	if err := l.Stream(context.Background(), Shell("exit 1")); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
}

func TestString(t *testing.T) {
	if got := NewCommand("git", "status", "--porcelain").String(); got != "git status --porcelain" {
		t.Errorf("String() = %q", got)
	}
}
