// Package templates holds the command lines nixstrap runs locally and on
// the target, as embedded handlebars templates.
//
// Values that end up as shell words go through the quote helper, which
// single-quotes anything outside a conservative safe set.
package templates

import (
	"embed"
	"fmt"
	"strings"

	"github.com/aymerick/raymond"
)

//go:embed deploy/*.hbs remote/*.hbs
var Scripts embed.FS

const (
	DeployAnywherePath = "deploy/anywhere.hbs"
	DeployRebuildPath  = "deploy/rebuild.hbs"
	RemoteRebuildPath  = "remote/rebuild.hbs"
	RemoteHardwarePath = "remote/hardware.hbs"
)

func init() {
	raymond.RegisterHelper("quote", func(s string) raymond.SafeString {
		return raymond.SafeString(ShellQuote(s))
	})
}

// Render executes the template at path with data and returns a single
// trimmed command line.
func Render(path string, data map[string]interface{}) (string, error) {
	source, err := Scripts.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", path, err)
	}

	tpl, err := raymond.Parse(string(source))
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", path, err)
	}

	out, err := tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("rendering template %s: %w", path, err)
	}
	return strings.TrimSpace(out), nil
}

// ShellQuote quotes s for POSIX shells, leaving common safe characters bare.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		}
		switch r {
		case '-', '_', '.', '/', '@', ':', ',', '+', '=':
			return false
		}
		return true
	}) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
