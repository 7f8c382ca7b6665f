// Package pathutil provides helpers for slash-separated archive paths and
// dotted module names.
package pathutil

import "strings"

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Dir returns everything before the last slash of path, or "" for a
// top-level path.
func Dir(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

// DirPrefix converts a directory path to its prefix form.
// The root ("" or ".") maps to the empty prefix, which matches everything.
func DirPrefix(name string) string {
	if name == "" || name == "." {
		return ""
	}
	return strings.TrimSuffix(name, "/") + "/"
}

// Join joins slash-separated path elements, skipping empty ones.
func Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		e = strings.Trim(e, "/")
		if e != "" && e != "." {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// Child extracts the immediate child name from a full path given a prefix.
// isSubDir reports whether more path components follow the child.
// If path does not have the prefix, behavior is undefined.
func Child(path, prefix string) (name string, isSubDir bool) {
	rel := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(rel, "/"); idx >= 0 {
		return rel[:idx], true
	}
	return rel, false
}

// Normalize converts a user-provided path to archive form:
// leading, trailing and repeated slashes are removed and "" becomes ".".
//
// Path elements are not resolved; callers reject "." and ".." elements with
// fs.ValidPath.
func Normalize(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// SplitModule splits a dotted name into its parent and last component.
// parent is "" for top-level names.
func SplitModule(name string) (parent, last string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// TopLevel returns the first component of a dotted module name.
func TopLevel(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
