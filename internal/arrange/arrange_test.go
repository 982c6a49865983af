package arrange

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readLink(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestArrangeOrdersFilesBeforeNumericSubdirs(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out", "book")
	writeFile(t, filepath.Join(src, "b2.mp3"))
	writeFile(t, filepath.Join(src, "a1.mp3"))
	writeFile(t, filepath.Join(src, "sub2", "c3.mp3"))
	writeFile(t, filepath.Join(src, "sub10", "d4.mp3"))

	count, err := Arrange(src, dst)
	if err != nil {
		t.Fatalf("arrange: %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}

	want := map[string]string{
		"0001.mp3": "a1.mp3",
		"0002.mp3": "b2.mp3",
		"0003.mp3": "c3.mp3", // sub2 recursed before sub10
		"0004.mp3": "d4.mp3",
	}
	for name, content := range want {
		if got := readLink(t, filepath.Join(dst, name)); got != content {
			t.Fatalf("%s = %q, want %q", name, got, content)
		}
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("target holds %d entries, want 4", len(entries))
	}
}

func TestArrangeCreatesHardLinks(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "ch1.mp3"))

	if _, err := Arrange(src, dst); err != nil {
		t.Fatalf("arrange: %v", err)
	}
	srcInfo, err := os.Stat(filepath.Join(src, "ch1.mp3"))
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	dstInfo, err := os.Stat(filepath.Join(dst, "0001.mp3"))
	if err != nil {
		t.Fatalf("stat link: %v", err)
	}
	if !os.SameFile(srcInfo, dstInfo) {
		t.Fatalf("expected a hard link, got a distinct file")
	}
}

func TestArrangeDropsFilesWithoutDigits(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "intro.mp3"))
	writeFile(t, filepath.Join(src, "chapter1.mp3"))

	count, err := Arrange(src, dst)
	if err != nil {
		t.Fatalf("arrange: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if got := readLink(t, filepath.Join(dst, "0001.mp3")); got != "chapter1.mp3" {
		t.Fatalf("0001.mp3 = %q, want chapter1.mp3", got)
	}
}

func TestArrangeWithIncludeUnnumberedAppendsByName(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "zz-outro.mp3"))
	writeFile(t, filepath.Join(src, "aa-intro.mp3"))
	writeFile(t, filepath.Join(src, "part2.mp3"))
	writeFile(t, filepath.Join(src, "part1.mp3"))

	count, err := ArrangeWith(src, dst, Options{IncludeUnnumbered: true})
	if err != nil {
		t.Fatalf("arrange: %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
	want := map[string]string{
		"0001.mp3": "part1.mp3",
		"0002.mp3": "part2.mp3",
		"0003.mp3": "aa-intro.mp3",
		"0004.mp3": "zz-outro.mp3",
	}
	for name, content := range want {
		if got := readLink(t, filepath.Join(dst, name)); got != content {
			t.Fatalf("%s = %q, want %q", name, got, content)
		}
	}
}

func TestArrangeUsesFirstDigitRunAndFilenameTieBreak(t *testing.T) {
	got := sortNumeric([]string{"b02-take1.mp3", "a2.mp3", "10.mp3", "003.mp3"}, Options{})
	want := []string{"a2.mp3", "b02-take1.mp3", "003.mp3", "10.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortNumeric = %v, want %v", got, want)
	}
}

func TestArrangeHandlesRunsLargerThanUint64(t *testing.T) {
	got := sortNumeric([]string{
		"99999999999999999999999999999999-b.mp3",
		"5.mp3",
	}, Options{})
	want := []string{"5.mp3", "99999999999999999999999999999999-b.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortNumeric = %v, want %v", got, want)
	}
}

func TestArrangePreservesExtensionCase(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "1.MP3"))

	if _, err := Arrange(src, dst); err != nil {
		t.Fatalf("arrange: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "0001.MP3")); err != nil {
		t.Fatalf("expected 0001.MP3: %v", err)
	}
}

func TestArrangeMissingSourceIsFatal(t *testing.T) {
	if _, err := Arrange(filepath.Join(t.TempDir(), "nope"), t.TempDir()); err == nil {
		t.Fatalf("expected error for missing source dir")
	}
}

func TestArrangeCountsAcrossNestedDirs(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "disc1", "track1.m4a"))
	writeFile(t, filepath.Join(src, "disc1", "track2.m4a"))
	writeFile(t, filepath.Join(src, "disc2", "track1.m4a"))

	count, err := Arrange(src, dst)
	if err != nil {
		t.Fatalf("arrange: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	if got := readLink(t, filepath.Join(dst, "0003.m4a")); got != "track1.m4a" {
		t.Fatalf("0003.m4a = %q, want disc2 track1", got)
	}
}
