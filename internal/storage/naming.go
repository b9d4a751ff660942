package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// SanitizeName reduces a client-supplied name to its base component so that
// writes stay inside the target category folder. Both slash styles are
// treated as separators.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(strings.TrimSpace(name))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsRune(base, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

// ResolveName returns a path inside folder that does not exist at the time of
// the call. If desired is taken it probes stem_1.ext, stem_2.ext, and so on.
// The result is advisory: another writer may claim it before the caller
// creates the file.
func ResolveName(folder, desired string) (string, error) {
	base, err := SanitizeName(desired)
	if err != nil {
		return "", err
	}
	stem, ext := splitName(base)

	candidate := base
	for n := 1; ; n++ {
		p := filepath.Join(folder, candidate)
		free, err := isFree(p)
		if err != nil {
			return "", err
		}
		if free {
			return p, nil
		}
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
}

// splitName splits a base name into stem and extension. Dotfiles such as
// ".env" are all stem.
func splitName(base string) (string, string) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		return base, ""
	}
	return stem, ext
}

func isFree(p string) (bool, error) {
	_, err := os.Lstat(p)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}
