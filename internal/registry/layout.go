package registry

import "strings"

// Layout describes where a key group lives inside the registry document.
//
// Definitions are anchor lines ("- &name value") in the contiguous block
// after DefinitionSentinel. References are alias lines ("- *name") in the
// contiguous block after ReferenceSentinel. Sentinels are compared against
// the trimmed line; when a sentinel occurs more than once the last
// occurrence is used.
type Layout struct {
	DefinitionSentinel string
	ReferenceSentinel  string
	DefinitionIndent   int
	ReferenceIndent    int
	// ReferenceOffset is the distance from the last reference entry to the
	// inserted alias line. 1 places it immediately after.
	ReferenceOffset int
}

const (
	DefaultReferenceSentinel = "- age:"
	DefaultDefinitionIndent  = 4
	DefaultReferenceIndent   = 10
	DefaultReferenceOffset   = 1
)

// DefaultLayouts returns the groups used by the nix-config .sops.yaml:
// per-user keys under "users: &age_keys" and per-host keys under
// "hosts: &host_keys", both referenced from the "- age:" lists.
func DefaultLayouts() map[string]Layout {
	base := Layout{
		ReferenceSentinel: DefaultReferenceSentinel,
		DefinitionIndent:  DefaultDefinitionIndent,
		ReferenceIndent:   DefaultReferenceIndent,
		ReferenceOffset:   DefaultReferenceOffset,
	}

	users := base
	users.DefinitionSentinel = "users: &age_keys"
	hosts := base
	hosts.DefinitionSentinel = "hosts: &host_keys"

	return map[string]Layout{
		"users": users,
		"hosts": hosts,
	}
}

func (l Layout) DefinitionLine(name, value string) string {
	return strings.Repeat(" ", l.DefinitionIndent) + "- &" + name + " " + value
}

func (l Layout) ReferenceLine(name string) string {
	return strings.Repeat(" ", l.ReferenceIndent) + "- *" + name
}

// definitionName returns the anchor name of a "- &name ..." line.
func definitionName(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "- &")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rest, " ")
	name, _, _ = strings.Cut(name, "\t")
	return name, name != ""
}

// definitionValue returns the value of a "- &name value" line.
func definitionValue(line string) string {
	rest, _ := strings.CutPrefix(strings.TrimSpace(line), "- &")
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		return strings.TrimSpace(rest[i:])
	}
	return ""
}

// referenceName returns the alias name of a "- *name" line.
func referenceName(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "- *")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rest, " ")
	return name, name != ""
}

func isDefinition(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "- &")
}

func isReference(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "- *")
}
