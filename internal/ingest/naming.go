package ingest

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes accented characters and drops the combining marks,
// so folder names like "Résumés" sanitize to "Resumes" instead of "R_sum_s".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CollectionFromFolder derives a collection name from a folder's base name.
// The job runner accepts [A-Za-z0-9_] and rejects names that are empty or
// lead with a digit; anything else is folded to underscores.
func CollectionFromFolder(folderName string) string {
	cleaned, _, err := transform.String(stripMarks, folderName)
	if err != nil {
		cleaned = folderName
	}

	var b strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "folder_" + name
	}
	return name
}

// CollectionFromSeq names a loose-file collection from the ledger's
// monotonic sequence, e.g. intel_7.
func CollectionFromSeq(prefix string, seq int) string {
	if prefix == "" {
		prefix = "intel"
	}
	return fmt.Sprintf("%s_%d", prefix, seq)
}

// jobNameFor derives a cluster-legal job name from a collection: lowercase
// alphanumerics and dashes, as required for Kubernetes object names.
func jobNameFor(collection string, seq int64) string {
	var b strings.Builder
	for _, r := range strings.ToLower(collection) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "ingest"
	}
	// Suffix keeps resubmissions of the same collection distinct.
	return fmt.Sprintf("%s-ingest-%d", name, seq)
}
