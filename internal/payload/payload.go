// Package payload resolves the bytes a run sends on every write.
package payload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdinMarker selects standard input as the payload source.
const StdinMarker = "-"

var (
	ErrConflictingSources = errors.New("payload argument and payload file cannot both be provided")
	ErrNoStdin            = errors.New("payload requested from stdin but no input stream is available")
)

// Source describes where the payload comes from. An empty Literal with no
// File reads from Stdin, as does a Literal equal to StdinMarker.
type Source struct {
	Literal string
	File    string
	Stdin   io.Reader
}

// FromStdin reports whether Resolve will read the payload from Stdin.
func (s Source) FromStdin() bool {
	if strings.TrimSpace(s.File) != "" {
		return false
	}
	return s.Literal == "" || s.Literal == StdinMarker
}

// Resolve returns the payload. The returned slice is never modified
// afterwards and may be shared by every worker.
func Resolve(src Source) ([]byte, error) {
	file := strings.TrimSpace(src.File)
	if file != "" && src.Literal != "" {
		return nil, ErrConflictingSources
	}

	switch {
	case file != "":
		return readFile(file)
	case src.FromStdin():
		if src.Stdin == nil {
			return nil, ErrNoStdin
		}
		data, err := io.ReadAll(src.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		return data, nil
	default:
		return []byte(src.Literal), nil
	}
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("payload file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("payload file %q is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("payload file: %w", err)
	}
	return data, nil
}
