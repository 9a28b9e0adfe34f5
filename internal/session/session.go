// Package session names the clean/data temp-file pair an editing session
// writes to disk: the materialized "clean" snapshot and the "data" file a
// human edits. Grounded on oba/internal/storage's use of per-resource
// unique identifiers for on-disk artifacts, generalized here from
// storage-engine segment IDs to a session's own two file names, using
// google/uuid (the pack's one real UUID dependency, via
// DrThundercat-gofun) rather than a hand-rolled random-suffix scheme.
package session

import (
	"path/filepath"

	"github.com/google/uuid"
)

// Paths names the clean and data files for one editing session.
type Paths struct {
	Clean string
	Data  string
}

// New generates a fresh, collision-free Clean/Data path pair under dir,
// both sharing one session UUID so the pair is identifiable together
// (e.g. in logs or temp-directory cleanup) while remaining distinct files.
func New(dir string) Paths {
	id := uuid.New().String()
	return Paths{
		Clean: filepath.Join(dir, "ldvi-"+id+".clean"),
		Data:  filepath.Join(dir, "ldvi-"+id+".data"),
	}
}

// NewCleanFilePath generates a standalone clean-file path under dir, not
// paired with a data file. Used when only the materialized snapshot is
// needed (e.g. a read-only export).
func NewCleanFilePath(dir string) string {
	return filepath.Join(dir, "ldvi-"+uuid.New().String()+".clean")
}

// NewDataFilePath generates a standalone data-file path under dir.
func NewDataFilePath(dir string) string {
	return filepath.Join(dir, "ldvi-"+uuid.New().String()+".data")
}
