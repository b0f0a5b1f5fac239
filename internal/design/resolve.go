// Package design resolves project inputs to design files and parses them
// into the hierarchical component/placement model.
//
// Resolution accepts a directory, a bare project name, or a file of the
// wrong type for the requested operation, and finds the correct entry
// file through the project descriptor when one exists. Loading walks the
// sheet hierarchy transitively, tolerating missing sub-sheets, and keeps
// the parsed model immutable after construction.
package design

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"partlinker/internal/errors"
)

// FileKind selects which entry file type resolution should produce.
type FileKind int

const (
	KindSchematic FileKind = iota
	KindBoard
)

// Extension returns the design file extension for the kind.
func (k FileKind) Extension() string {
	if k == KindBoard {
		return boardExt
	}

	return schematicExt
}

// String returns the human name of the kind.
func (k FileKind) String() string {
	if k == KindBoard {
		return "board"
	}

	return "schematic"
}

const (
	schematicExt  = ".kicad_sch"
	boardExt      = ".kicad_pcb"
	descriptorExt = ".kicad_pro"
	legacyDescExt = ".pro"
)

// Resolve turns input into the entry design file of the requested kind.
// Input may be an existing file (right or wrong type), a project
// directory, or a bare project name.
func Resolve(input string, kind FileKind) (string, error) {
	info, err := os.Stat(input)
	switch {
	case err == nil && info.IsDir():
		return resolveInDir(input, kind)
	case err == nil:
		return resolveFile(input, kind)
	default:
		return resolveBareName(input, kind)
	}
}

// resolveFile handles an existing file given directly: either it already
// has the needed type, or its base name derives the sibling that does.
func resolveFile(input string, kind FileKind) (string, error) {
	ext := filepath.Ext(input)
	if ext == kind.Extension() {
		return input, nil
	}

	switch ext {
	case descriptorExt, legacyDescExt, schematicExt, boardExt:
		derived := strings.TrimSuffix(input, ext) + kind.Extension()
		if fileExists(derived) {
			return derived, nil
		}

		return "", errors.NewResolveError("no_design_file",
			fmt.Sprintf("no %s file for project %q, expected %q",
				kind, input, derived))
	default:
		return "", errors.NewResolveError("unknown_file_type",
			fmt.Sprintf("%q is not a design or project file, expected a %q, %q, or %q file",
				input, kind.Extension(), descriptorExt, legacyDescExt))
	}
}

// resolveBareName handles a project name with no file behind it, trying
// the name-derived candidates in the name's directory.
func resolveBareName(input string, kind FileKind) (string, error) {
	direct := input + kind.Extension()
	if fileExists(direct) {
		return direct, nil
	}

	for _, descExt := range []string{descriptorExt, legacyDescExt} {
		if fileExists(input + descExt) {
			return resolveFile(input+descExt, kind)
		}
	}

	return "", errors.NewResolveError("no_project",
		fmt.Sprintf("no project found for %q, expected %q or %q",
			input, direct, input+descriptorExt))
}

// resolveInDir picks the entry file inside a project directory, preferring
// project descriptors over bare design files.
func resolveInDir(dir string, kind FileKind) (string, error) {
	descriptors, err := filepath.Glob(filepath.Join(dir, "*"+descriptorExt))
	if err != nil {
		return "", errors.NewIOError("glob_failed", "cannot scan project directory", err)
	}
	if len(descriptors) == 0 {
		descriptors, err = filepath.Glob(filepath.Join(dir, "*"+legacyDescExt))
		if err != nil {
			return "", errors.NewIOError("glob_failed", "cannot scan project directory", err)
		}
	}
	sort.Strings(descriptors)

	var candidates []string
	for _, desc := range descriptors {
		derived := strings.TrimSuffix(desc, filepath.Ext(desc)) + kind.Extension()
		if fileExists(derived) {
			candidates = append(candidates, derived)
		}
	}

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		// No usable descriptor; fall back to a lone design file.
	default:
		return "", errors.NewResolveError("ambiguous_project",
			fmt.Sprintf("multiple projects in %q, candidates: %s",
				dir, strings.Join(candidates, ", ")))
	}

	direct, err := filepath.Glob(filepath.Join(dir, "*"+kind.Extension()))
	if err != nil {
		return "", errors.NewIOError("glob_failed", "cannot scan project directory", err)
	}
	sort.Strings(direct)

	switch len(direct) {
	case 1:
		return direct[0], nil
	case 0:
		return "", errors.NewResolveError("no_project",
			fmt.Sprintf("no design files in %q, expected %q or %q",
				dir, "*"+descriptorExt, "*"+kind.Extension()))
	default:
		return "", errors.NewResolveError("ambiguous_project",
			fmt.Sprintf("multiple %s files in %q with no project descriptor, candidates: %s",
				kind, dir, strings.Join(direct, ", ")))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
