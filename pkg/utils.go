package pkg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// ResolveHostRoot returns the absolute, cleaned version of dir after making
// sure it is an existing directory
func ResolveHostRoot(dir string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to resolve %s", dir)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", eris.Wrapf(err, "Could not find host directory %s", root)
	}

	if !info.IsDir() {
		return "", eris.Errorf("%s is not a directory!", root)
	}

	return root, nil
}

// RemoveWithin deletes base/name recursively. It refuses to touch anything
// outside of base. Missing items are ignored.
func RemoveWithin(base, name string) (bool, error) {
	target := filepath.Join(base, name)
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, eris.Errorf("refusing to remove %s because it is outside of %s", target, base)
	}

	_, err = os.Lstat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "Could not stat %s", target)
	}

	err = os.RemoveAll(target)
	if err != nil {
		return false, eris.Wrapf(err, "Could not delete %s", target)
	}

	return true, nil
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
