package codecache

import (
	"path/filepath"
	"strings"
)

// LocationPolicy maps a source path to the path of its compiled cache file.
type LocationPolicy interface {
	CachePath(sourcePath string) string
}

// PycacheLocation places cache files in a __pycache__ directory beside the
// source, named <stem>.<Tag>.pyc.
type PycacheLocation struct {
	Tag string
}

// CachePath implements LocationPolicy.
func (p PycacheLocation) CachePath(sourcePath string) string {
	dir, base := filepath.Split(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := stem + ".pyc"
	if p.Tag != "" {
		name = stem + "." + p.Tag + ".pyc"
	}
	return filepath.Join(dir, "__pycache__", name)
}
