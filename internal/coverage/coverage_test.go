package coverage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/large-farva/coverage-engine/internal/grid"
)

// TestAccumulateUnion covers two satellites whose caps overlap entirely:
// the shared cells gain one visit per step, not two.
func TestAccumulateUnion(t *testing.T) {
	satA := []grid.Cell{"a", "b", "c"}
	satB := []grid.Cell{"a", "b", "c"}

	m := New()
	set := NewStepSet()
	set.Add(satA...)
	set.Add(satB...)
	m.Accumulate(set)

	for _, c := range satA {
		if got := m.Count(c); got != 1 {
			t.Errorf("Count(%s) = %d, want 1", c, got)
		}
	}
	if m.Steps() != 1 {
		t.Errorf("Steps() = %d, want 1", m.Steps())
	}
}

func TestAccumulateAcrossSteps(t *testing.T) {
	m := New()

	s1 := NewStepSet()
	s1.Add("a", "b")
	m.Accumulate(s1)

	s2 := NewStepSet()
	s2.Add("b", "c", "c")
	m.Accumulate(s2)

	m.Accumulate(NewStepSet())

	want := map[grid.Cell]int{"a": 1, "b": 2, "c": 1, "never": 0}
	for c, n := range want {
		if got := m.Count(c); got != n {
			t.Errorf("Count(%s) = %d, want %d", c, got, n)
		}
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
	if m.Steps() != 3 {
		t.Errorf("Steps() = %d, want 3", m.Steps())
	}

	st := m.Stats()
	if st.Cells != 3 || st.Total != 4 || st.Min != 1 || st.Max != 2 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestWriteFormat(t *testing.T) {
	m := New()
	set := NewStepSet()
	set.Add("8428309ffffffff", "842830bffffffff")
	m.Accumulate(set)
	set = NewStepSet()
	set.Add("8428309ffffffff")
	m.Accumulate(set)

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatal(err)
	}
	want := "8428309ffffffff,2\n842830bffffffff,1\n"
	if buf.String() != want {
		t.Errorf("Write() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestFileRoundTrip(t *testing.T) {
	m := New()
	set := NewStepSet()
	set.Add("a", "b")
	m.Accumulate(set)

	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), FileName("h3", 4, 2, compress))
		if err := m.WriteFile(path); err != nil {
			t.Fatalf("WriteFile(%s): %v", path, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", path, err)
		}
		if got.Count("a") != 1 || got.Count("b") != 1 || got.Len() != 2 {
			t.Errorf("%s: round trip lost data: %+v", path, got.Entries())
		}
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("h3", 4, 0, false); got != "h3_4_cov_0.txt" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName("s2", 9, 3, true); got != "s2_9_cov_3.txt.zst" {
		t.Errorf("FileName = %q", got)
	}
}

func TestParseFileName(t *testing.T) {
	kind, res, proc, zst, ok := ParseFileName("/data/out/s2_9_cov_3.txt.zst")
	if !ok || kind != "s2" || res != 9 || proc != 3 || !zst {
		t.Errorf("ParseFileName = %q %d %d %v %v", kind, res, proc, zst, ok)
	}
	if _, _, _, _, ok := ParseFileName(FileName("h3", 4, 0, false)); !ok {
		t.Error("FileName output should parse")
	}
	for _, bad := range []string{"h3_4_cov_0.csv", "h3_x_cov_0.txt", "h3_4_cover_0.txt", "merged.txt"} {
		if _, _, _, _, ok := ParseFileName(bad); ok {
			t.Errorf("ParseFileName(%q) should fail", bad)
		}
	}
}

func TestReadRejectsMalformedLines(t *testing.T) {
	for _, in := range []string{"abc\n", "abc,x\n", ",3\n", "abc,-1\n"} {
		if _, err := Read(strings.NewReader(in)); err == nil {
			t.Errorf("Read(%q): expected error", in)
		}
	}
}

func TestMergeFilesToleratesMissingPartitions(t *testing.T) {
	dir := t.TempDir()

	p0 := filepath.Join(dir, FileName("h3", 4, 0, false))
	p1 := filepath.Join(dir, FileName("h3", 4, 1, true))
	p2 := filepath.Join(dir, FileName("h3", 4, 2, false))
	if err := os.WriteFile(p0, []byte("a,3\nb,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m1 := New()
	set := NewStepSet()
	set.Add("a", "c")
	m1.Accumulate(set)
	if err := m1.WriteFile(p1); err != nil {
		t.Fatal(err)
	}

	merged, missing, err := MergeFiles([]string{p0, p1, p2})
	if err != nil {
		t.Fatalf("MergeFiles: %v", err)
	}
	if len(missing) != 1 || missing[0] != p2 {
		t.Errorf("missing = %v, want [%s]", missing, p2)
	}
	want := map[grid.Cell]int{"a": 4, "b": 1, "c": 1}
	for c, n := range want {
		if got := merged.Count(c); got != n {
			t.Errorf("merged Count(%s) = %d, want %d", c, got, n)
		}
	}
}

func TestMergeFilesFailsOnCorruptInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte("not a coverage line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := MergeFiles([]string{path}); err == nil {
		t.Fatal("expected error for corrupt input")
	}
}
