// Package knownhosts keeps the local SSH trust store in step with the host
// keys presented by machines being bootstrapped.
//
// Entries are always written in the bracketed form "[destination]:port key",
// even for port 22, so a single (destination, port) pair maps to exactly one
// line. Reconcile replaces every line for an endpoint when its key changes.
// That makes a rotated host key take effect immediately, but it also means
// an endpoint cannot keep several key types side by side: historical lines
// for other key types are collapsed into the new one. Marker lines
// (@cert-authority, @revoked) are left as they are.
package knownhosts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nixstrap/internal/logger"

	"github.com/moby/sys/atomicwriter"
	"golang.org/x/crypto/ssh"
)

// Status is the coarse outcome of Reconcile.
type Status string

const (
	AlreadyKnown Status = "already_known"
	Updated      Status = "updated"
)

// Action says how the store was written when Status is Updated.
type Action string

const (
	ActionNone     Action = "none"
	ActionReplaced Action = "replaced"
	ActionAppended Action = "appended"
)

// Result reports what Reconcile did to the store.
type Result struct {
	Status   Status
	Action   Action
	Replaced int
}

// Updated reports whether the store was written.
func (r Result) Updated() bool {
	return r.Status == Updated
}

func (r Result) String() string {
	switch r.Action {
	case ActionReplaced:
		return fmt.Sprintf("updated (%d line(s) replaced)", r.Replaced)
	case ActionAppended:
		return "updated (appended)"
	}
	return string(r.Status)
}

// Prefix returns the host pattern used for an endpoint.
func Prefix(destination string, port uint16) string {
	return fmt.Sprintf("[%s]:%d", destination, port)
}

// Entry returns the full store line for an endpoint and key.
func Entry(destination string, port uint16, publicKey string) string {
	return Prefix(destination, port) + " " + strings.TrimSpace(publicKey)
}

// Reconcile records publicKey for (destination, port) in the store at
// storePath. At most one write happens per call: either the whole file is
// rewritten with matching lines replaced, or the entry is appended.
func Reconcile(storePath, destination string, port uint16, publicKey string) (Result, error) {
	publicKey = strings.TrimSpace(publicKey)
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey)); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	fullEntry := Entry(destination, port, publicKey)
	prefix := Prefix(destination, port)

	content, exists, err := readStore(storePath)
	if err != nil {
		return Result{}, err
	}

	lines := splitLines(content)

	for _, line := range lines {
		if strings.TrimRight(line, "\r") == fullEntry {
			logger.Warn("Remote host %s is already known", prefix)
			return Result{Status: AlreadyKnown, Action: ActionNone}, nil
		}
	}

	replaced := 0
	for i, line := range lines {
		if matchesEndpoint(line, prefix) {
			lines[i] = fullEntry
			replaced++
		}
	}

	if replaced > 0 {
		if err := rewriteStore(storePath, lines); err != nil {
			return Result{}, err
		}
		logger.Info("Host key for %s updated in %s (%d line(s) replaced)", prefix, storePath, replaced)
		return Result{Status: Updated, Action: ActionReplaced, Replaced: replaced}, nil
	}

	if err := appendEntry(storePath, content, exists, fullEntry); err != nil {
		return Result{}, err
	}
	logger.Info("Host key for %s added to %s", prefix, storePath)
	return Result{Status: Updated, Action: ActionAppended}, nil
}

// Count returns how many lines in the store carry the endpoint's host pattern.
func Count(storePath, destination string, port uint16) (int, error) {
	content, _, err := readStore(storePath)
	if err != nil {
		return 0, err
	}
	prefix := Prefix(destination, port)
	n := 0
	for _, line := range splitLines(content) {
		if matchesEndpoint(line, prefix) {
			n++
		}
	}
	return n, nil
}

func readStore(storePath string) (content string, exists bool, err error) {
	data, err := os.ReadFile(storePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: read %s: %v", ErrIO, storePath, err)
	}
	return string(data), true, nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// matchesEndpoint reports whether one of the line's host patterns is prefix.
// Comments, blank lines and @cert-authority or @revoked marker lines never
// match.
func matchesEndpoint(line, prefix string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || strings.HasPrefix(fields[0], "@") {
		return false
	}
	for _, pattern := range strings.Split(fields[0], ",") {
		if pattern == prefix {
			return true
		}
	}
	return false
}

func rewriteStore(storePath string, lines []string) error {
	mode := os.FileMode(0600)
	if info, err := os.Stat(storePath); err == nil {
		mode = info.Mode().Perm()
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := atomicwriter.WriteFile(storePath, []byte(data), mode); err != nil {
		return fmt.Errorf("%w: rewrite %s: %v", ErrIO, storePath, err)
	}
	return nil
}

func appendEntry(storePath, content string, exists bool, entry string) error {
	if !exists {
		if err := os.MkdirAll(filepath.Dir(storePath), 0700); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrIO, filepath.Dir(storePath), err)
		}
	}

	f, err := os.OpenFile(storePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrIO, storePath, err)
	}
	defer f.Close()

	line := entry + "\n"
	if content != "" && !strings.HasSuffix(content, "\n") {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("%w: append %s: %v", ErrIO, storePath, err)
	}
	return f.Close()
}
