// Package utils provides filesystem helpers shared by the sync and build layers
package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Exists checks if a path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDirectory checks if a path is a directory
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsFile checks if a path is a regular file
func IsFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// EnsureDirectory creates a directory with all parents
func EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0755)
}

// RemoveIfExists deletes path (recursively) when it is present. Absence is
// not an error; anything else (permissions, busy mounts) is returned.
func RemoveIfExists(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// ContainsLine reports whether the file at path has a line equal to line
// (ignoring surrounding whitespace). A missing file contains nothing.
func ContainsLine(path, line string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	want := strings.TrimSpace(line)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == want {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// AppendLineIfMissing appends line to the file unless it is already present.
// Returns true when the file was modified.
func AppendLineIfMissing(path, line string) (bool, error) {
	present, err := ContainsLine(path, line)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if present {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	text := line + "\n"
	if len(data) > 0 && data[len(data)-1] != '\n' {
		text = "\n" + text
	}
	if _, err := f.WriteString(text); err != nil {
		return false, fmt.Errorf("appending to %s: %w", path, err)
	}
	return true, nil
}
