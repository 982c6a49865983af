// Package arrange normalizes a raw directory of audio files into the
// canonical numbered library layout: files are ordered by the first run
// of decimal digits in their filename and hard-linked into the target
// directory as 0001.ext, 0002.ext, ...
package arrange

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var digitRun = regexp.MustCompile(`\d+`)

// Options tunes arrangement policy.
type Options struct {
	// IncludeUnnumbered keeps entries whose filename carries no digit
	// run. They are appended after the numbered entries of the same
	// directory level, ordered by filename. The default (false) drops
	// them silently, matching the historical curation behavior.
	IncludeUnnumbered bool
}

// Arrange links every numbered file under sourceDir into targetDir under
// sequential zero-padded names and returns the number of links created.
// Ordering is depth-first: all files of a directory come before its
// subdirectories, each group sorted by numeric key (ties broken by
// filename). Any filesystem error aborts the whole operation; links
// already created are not rolled back.
func Arrange(sourceDir, targetDir string) (int, error) {
	return ArrangeWith(sourceDir, targetDir, Options{})
}

// ArrangeWith is Arrange with explicit policy options.
func ArrangeWith(sourceDir, targetDir string, opts Options) (int, error) {
	files, err := collect(sourceDir, opts)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return 0, fmt.Errorf("create target dir: %w", err)
	}
	for i, src := range files {
		name := fmt.Sprintf("%04d%s", i+1, filepath.Ext(src))
		if err := os.Link(src, filepath.Join(targetDir, name)); err != nil {
			return 0, fmt.Errorf("link %s: %w", src, err)
		}
	}
	return len(files), nil
}

// collect returns the full emission order for one directory: its files
// first, then each subdirectory recursed, both in ascending numeric-key
// order.
func collect(dir string, opts Options) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files, dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	files = sortNumeric(files, opts)
	dirs = sortNumeric(dirs, opts)

	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, filepath.Join(dir, f))
	}
	for _, d := range dirs {
		sub, err := collect(filepath.Join(dir, d), opts)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// sortNumeric orders names by the first digit run in each name. Names
// without a digit run are dropped unless opts keeps them, in which case
// they follow the numbered names in plain filename order.
func sortNumeric(names []string, opts Options) []string {
	type keyed struct {
		key  string
		name string
	}
	var numbered []keyed
	var rest []string
	for _, name := range names {
		run := digitRun.FindString(name)
		if run == "" {
			rest = append(rest, name)
			continue
		}
		numbered = append(numbered, keyed{key: normalizeRun(run), name: name})
	}
	sort.Slice(numbered, func(i, j int) bool {
		if c := compareRuns(numbered[i].key, numbered[j].key); c != 0 {
			return c < 0
		}
		return numbered[i].name < numbered[j].name
	})
	out := make([]string, 0, len(numbered)+len(rest))
	for _, k := range numbered {
		out = append(out, k.name)
	}
	if opts.IncludeUnnumbered {
		sort.Strings(rest)
		out = append(out, rest...)
	}
	return out
}

// normalizeRun strips leading zeros so runs of any length compare
// numerically without integer overflow.
func normalizeRun(run string) string {
	return strings.TrimLeft(run, "0")
}

func compareRuns(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
