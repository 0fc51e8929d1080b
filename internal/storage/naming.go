package storage

import (
	"path"
	"strings"
)

// Digest files are stored as "<name>.<schema>.tsv" so the schema a file was
// validated against survives a process restart and an index rebuild.

// DigestPath returns the storage path for a digest with the given display
// name and schema. Characters that would change the path structure are
// replaced in the name.
func DigestPath(name, schemaName string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ".", "_", " ", "_")
	return r.Replace(name) + "." + schemaName + ".tsv"
}

// SplitDigestPath extracts the display name and schema name from a storage
// path. ok is false when the path does not follow the naming convention.
func SplitDigestPath(p string) (name, schemaName string, ok bool) {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if !strings.HasSuffix(base, ".tsv") {
		return "", "", false
	}
	base = strings.TrimSuffix(base, ".tsv")
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}
