package mdns

import (
	"fmt"
	"strings"
)

// maxLabelBytes and maxNameBytes mirror RFC 1035 §3.1/§2.3.4: each
// dot-separated label is at most 63 bytes, and the encoded name is at most
// 255 bytes.
const (
	maxLabelBytes = 63
	maxNameBytes  = 255
)

// validateName checks a dotted DNS name against RFC 1035's label and total
// length limits. It does not require a trailing dot; normalizeName should be
// applied first if the caller needs the FQDN form.
func validateName(name string) error {
	trimmed := strings.TrimSuffix(name, ".")
	if len(trimmed) == 0 {
		return fmt.Errorf("empty name")
	}
	// Encoded length: one length byte per label plus the terminating root
	// byte, i.e. len(trimmed)+2.
	if len(trimmed)+2 > maxNameBytes {
		return fmt.Errorf("name %q exceeds %d bytes", name, maxNameBytes)
	}
	for _, label := range strings.Split(trimmed, ".") {
		if len(label) == 0 {
			return fmt.Errorf("name %q has an empty label", name)
		}
		if len(label) > maxLabelBytes {
			return fmt.Errorf("label %q in %q exceeds %d bytes", label, name, maxLabelBytes)
		}
	}
	return nil
}

// normalizeName appends a trailing dot (the FQDN form miekg/dns expects on
// the wire) if one isn't already present.
func normalizeName(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// ensureLocalSuffix appends the ".local" domain used throughout RFC 6762
// unless name (ignoring a trailing dot) already ends with it.
func ensureLocalSuffix(name string) string {
	trimmed := strings.TrimSuffix(name, ".")
	if strings.HasSuffix(strings.ToLower(trimmed), ".local") {
		return trimmed
	}
	return trimmed + ".local"
}

// sameName compares two DNS names case-insensitively, as RFC 1035 requires
// and as spec.md's Open Question on case sensitivity resolves (see
// DESIGN.md).
func sameName(a, b string) bool {
	return strings.EqualFold(normalizeName(a), normalizeName(b))
}
