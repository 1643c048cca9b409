package fault

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fingerprintDomain separates fingerprint hashes from any other hash of the same
// fields. Bump the version suffix if the canonical encoding changes.
const fingerprintDomain = "faultwatch/fingerprint/v1"

// Fingerprint returns the stable identifier grouping faults considered the same.
// Only the classification fields take part, so variable snapshots and timestamps
// never split a fault into several records.
func Fingerprint(info Info) string {
	h := sha256.New()
	for _, part := range []string{
		fingerprintDomain,
		info.Severity.String(),
		NormalizeMessage(info.Message),
		info.File,
		strconv.Itoa(info.Line),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeMessage applies NFC normalization and collapses whitespace runs.
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(norm.NFC.String(msg)), " ")
}
