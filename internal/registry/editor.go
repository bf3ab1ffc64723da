// Package registry edits the secrets registry (.sops.yaml) line by line.
//
// The document uses YAML anchors for key definitions and aliases for the
// recipients of each creation rule. Loading it with a YAML library and
// writing it back would expand or drop those anchors, so the editor works on
// the raw lines and never reserializes the document. A YAML parser is used
// only to check that an edit did not break a document that parsed before.
package registry

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"nixstrap/internal/logger"

	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"
)

// Outcome of an upsert.
type Outcome string

const (
	Inserted  Outcome = "inserted"
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
)

type Editor struct {
	layouts map[string]Layout
}

// NewEditor returns an editor for the given groups. A nil map uses DefaultLayouts.
func NewEditor(layouts map[string]Layout) *Editor {
	if layouts == nil {
		layouts = DefaultLayouts()
	}
	return &Editor{layouts: layouts}
}

func (e *Editor) Layout(group string) (Layout, error) {
	layout, ok := e.layouts[group]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	if layout.DefinitionSentinel == "" || layout.ReferenceSentinel == "" {
		return Layout{}, fmt.Errorf("%w: group %q has an empty sentinel", ErrUnknownGroup, group)
	}
	if layout.ReferenceOffset < 1 {
		return Layout{}, fmt.Errorf("%w: group %q reference offset must be at least 1", ErrUnknownGroup, group)
	}
	return layout, nil
}

// Apply computes the upsert of anchor name with value on lines. The input is
// not modified. When the outcome is Unchanged the returned slice is lines.
//
// An existing definition anywhere in the document is rewritten in place.
// Otherwise the definition is appended to the group's definition block and
// an alias to the reference block. Both blocks must be found, or nothing
// changes and a *StructureError is returned.
func (e *Editor) Apply(lines []string, group, name, value string) ([]string, Outcome, error) {
	layout, err := e.Layout(group)
	if err != nil {
		return nil, "", err
	}
	if err := validateEntry(name, value); err != nil {
		return nil, "", err
	}

	canonical := layout.DefinitionLine(name, value)

	for i, line := range lines {
		if n, ok := definitionName(line); ok && n == name {
			if strings.TrimSpace(line) == strings.TrimSpace(canonical) {
				return lines, Unchanged, nil
			}
			out := slices.Clone(lines)
			out[i] = canonical
			return out, Updated, nil
		}
	}

	defCursor, refCursor := -1, -1
	aliased := false
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case layout.DefinitionSentinel:
			defCursor = i
			continue
		case layout.ReferenceSentinel:
			refCursor = i
			aliased = false
			continue
		}
		if defCursor >= 0 && defCursor == i-1 && isDefinition(line) {
			defCursor = i
		}
		if refCursor >= 0 && refCursor == i-1 && isReference(line) {
			refCursor = i
			if n, ok := referenceName(line); ok && n == name {
				aliased = true
			}
		}
	}

	if defCursor < 0 {
		return nil, "", &StructureError{Group: group, Block: "definition", Sentinel: layout.DefinitionSentinel, Reason: "sentinel not found"}
	}
	if refCursor < 0 {
		return nil, "", &StructureError{Group: group, Block: "reference", Sentinel: layout.ReferenceSentinel, Reason: "sentinel not found"}
	}
	if aliased {
		return nil, "", &StructureError{
			Group:    group,
			Block:    "reference",
			Sentinel: layout.ReferenceSentinel,
			Reason:   fmt.Sprintf("dangling reference: *%s is present without a definition", name),
		}
	}

	// Both indexes are positions in lines. The alias moves down by one when
	// it lands at or after the inserted definition.
	refIndex := refCursor + layout.ReferenceOffset
	if refIndex > len(lines) {
		return nil, "", &StructureError{
			Group:    group,
			Block:    "reference",
			Sentinel: layout.ReferenceSentinel,
			Reason:   fmt.Sprintf("reference offset %d runs past the end of the document", layout.ReferenceOffset),
		}
	}
	if refIndex > defCursor {
		refIndex++
	}

	out := slices.Clone(lines)
	out = slices.Insert(out, defCursor+1, canonical)
	out = slices.Insert(out, refIndex, layout.ReferenceLine(name))
	return out, Inserted, nil
}

// UpsertKey applies an upsert to the registry file at path. The file is
// rewritten atomically, or left untouched when the outcome is Unchanged or an
// error is returned.
func (e *Editor) UpsertKey(path, group, name, value string) (Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	doc := parseDocument(data)

	lines, outcome, err := e.Apply(doc.lines, group, name, value)
	if err != nil {
		return "", err
	}

	if outcome == Unchanged {
		logger.Warn("Key %s is already in %s", name, path)
		return Unchanged, nil
	}

	updated := document{lines: lines, eol: doc.eol, trailingNewline: doc.trailingNewline}.bytes()
	if parses(data) && !parses(updated) {
		return "", fmt.Errorf("%w: %s after %s of %s", ErrInvalidDocument, path, outcome, name)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := atomicwriter.WriteFile(path, updated, mode); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
	}

	logger.Info("Key %s %s in %s (%s)", name, outcome, path, group)
	return outcome, nil
}

// Lookup returns the value defined for anchor name in the registry at path.
func Lookup(path, name string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	for _, line := range parseDocument(data).lines {
		if n, ok := definitionName(line); ok && n == name {
			return definitionValue(line), true, nil
		}
	}
	return "", false, nil
}

func validateEntry(name, value string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: anchor name %q", ErrInvalidEntry, name)
	}
	if strings.TrimSpace(value) == "" || strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: value for %s", ErrInvalidEntry, name)
	}
	return nil
}

type document struct {
	lines []string
	// eol is "\r\n" when the document uses CRLF line endings.
	eol             string
	trailingNewline bool
}

func parseDocument(data []byte) document {
	content := string(data)
	eol := "\n"
	if strings.Contains(content, "\r\n") {
		eol = "\r\n"
	}
	if content == "" {
		return document{eol: eol}
	}
	trailing := strings.HasSuffix(content, eol)
	return document{
		lines:           strings.Split(strings.TrimSuffix(content, eol), eol),
		eol:             eol,
		trailingNewline: trailing,
	}
}

func (d document) bytes() []byte {
	eol := d.eol
	if eol == "" {
		eol = "\n"
	}
	out := strings.Join(d.lines, eol)
	if d.trailingNewline {
		out += eol
	}
	return []byte(out)
}

func parses(data []byte) bool {
	var node yaml.Node
	return yaml.Unmarshal(data, &node) == nil
}
