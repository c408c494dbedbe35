// Package pathutil provides secure path handling for shelfd. Every
// caller-supplied relative path passes through here before any filesystem
// operation; nothing resolved by this package can leave the storage root.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/shelfd/shelfd/metadata"
)

// Clean normalizes a caller-supplied relative path. Interior ".." segments
// are resolved in place (so "dir/../file.txt" becomes "file.txt"), but a
// path whose traversal would climb above the root at any point is rejected.
// The result has no leading slash, no backslashes, and no "." or ".."
// segments. An empty input normalizes to "" (the root itself).
func Clean(path string) (string, error) {
	if path == "" || path == "/" {
		return "", nil
	}

	// Backslashes are never a legal separator in a relative path and are a
	// common smuggling vector from Windows clients.
	if strings.Contains(path, "\\") {
		return "", metadata.ErrPathInvalid
	}

	// Null bytes can bypass extension checks further up the stack.
	if strings.Contains(path, "\x00") {
		return "", metadata.ErrPathInvalid
	}

	// Absolute paths are treated as relative to the root rather than
	// rejected: strip the leading separators.
	trimmed := strings.TrimLeft(path, "/")

	// Walk the segments and verify the depth never goes negative. This is
	// what distinguishes "dir/../file.txt" (fine) from "../file.txt"
	// (escape attempt).
	depth := 0
	for _, part := range strings.Split(trimmed, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", metadata.ErrPathInvalid
			}
		default:
			depth++
		}
	}

	cleaned := filepath.Clean(trimmed)
	if cleaned == "." {
		return "", nil
	}

	return cleaned, nil
}

// SafeJoin joins a storage root with a relative path and re-validates that
// the result still lies under the root, resolving symlinks where the target
// already exists. It is the sole gateway for turning a RelativePath into an
// absolute filesystem path.
func SafeJoin(root, rel string) (string, error) {
	cleanRoot := filepath.Clean(root)

	cleanRel, err := Clean(rel)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(cleanRoot, cleanRel)

	// Prefix check on the lexical join first; cheap and catches anything
	// Clean missed.
	if !within(cleanRoot, joined) {
		return "", metadata.ErrPathInvalid
	}

	// If the target already exists, resolve symlinks and check the real
	// location too. A symlink inside the root pointing outside it must not
	// be followable through this gateway.
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		realRoot := cleanRoot
		if resolvedRoot, rootErr := filepath.EvalSymlinks(cleanRoot); rootErr == nil {
			realRoot = resolvedRoot
		}
		if !within(realRoot, resolved) {
			return "", metadata.ErrPathInvalid
		}
		return joined, nil
	}

	// Target does not exist yet (e.g. an upload destination). Validate the
	// nearest existing ancestor instead.
	if dir := filepath.Dir(joined); dir != cleanRoot {
		if resolvedDir, dirErr := filepath.EvalSymlinks(dir); dirErr == nil {
			realRoot := cleanRoot
			if resolvedRoot, rootErr := filepath.EvalSymlinks(cleanRoot); rootErr == nil {
				realRoot = resolvedRoot
			}
			if !within(realRoot, resolvedDir) {
				return "", metadata.ErrPathInvalid
			}
		}
	}

	return joined, nil
}

// ValidateName checks a single filename field where a flat name is required,
// such as a rename target. Embedded separators and traversal tokens are
// rejected outright; there is no strip-and-continue for flat names.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return metadata.ErrPathInvalid
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return metadata.ErrPathInvalid
	}
	return nil
}

// within reports whether path equals root or sits below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
