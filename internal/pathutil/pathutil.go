// Package pathutil implements the filesystem path helpers of spec.md
// §6's environment note: expanding a leading "~/" against HOME, and
// splitting/joining a path into directory, base name and extension
// parts (cwFileSys.h's pathParts/makeFn).
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading "~" or "~/..." in p against the HOME
// environment variable. Paths with no leading tilde are returned
// unchanged.
func ExpandHome(p string) string {
	if p == "~" {
		if home := os.Getenv("HOME"); home != "" {
			return home
		}
		return p
	}
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home := os.Getenv("HOME")
	if home == "" {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Parts is the decomposition of a path into directory, base name
// (without extension) and extension (cwFileSys.h's pathPart_t).
type Parts struct {
	Dir  string
	Base string
	Ext  string
}

// SplitParts decomposes pathName into its directory, base name and
// extension, after expanding any leading "~".
func SplitParts(pathName string) Parts {
	p := ExpandHome(pathName)
	dir, file := filepath.Split(p)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)
	return Parts{Dir: dir, Base: base, Ext: strings.TrimPrefix(ext, ".")}
}

// MakeFn reassembles dir/base.ext, omitting any part left empty
// (cwFileSys.h's makeFn, with the directory list collapsed to a single
// already-joined dir argument since Go's variadic filepath.Join covers
// the "insert directories between dir and file" case directly).
func MakeFn(dir, base, ext string) string {
	fn := base
	if ext != "" {
		fn = base + "." + ext
	}
	if dir == "" {
		return fn
	}
	return filepath.Join(dir, fn)
}

// IsDir reports whether p refers to an existing directory.
func IsDir(p string) bool {
	fi, err := os.Stat(ExpandHome(p))
	return err == nil && fi.IsDir()
}

// IsFile reports whether p refers to an existing regular file.
func IsFile(p string) bool {
	fi, err := os.Stat(ExpandHome(p))
	return err == nil && fi.Mode().IsRegular()
}

// IsLink reports whether p refers to a symbolic link.
func IsLink(p string) bool {
	fi, err := os.Lstat(ExpandHome(p))
	return err == nil && fi.Mode()&os.ModeSymlink != 0
}
