package coverage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/large-farva/coverage-engine/internal/grid"
)

const zstdExt = ".zst"

// FileName is the per-process output name, e.g. "h3_4_cov_0.txt".
func FileName(kind string, resolution, process int, compress bool) string {
	name := fmt.Sprintf("%s_%d_cov_%d.txt", kind, resolution, process)
	if compress {
		name += zstdExt
	}
	return name
}

// ParseFileName reverses FileName. ok is false when name does not follow the
// "{kind}_{resolution}_cov_{process}.txt[.zst]" pattern.
func ParseFileName(name string) (kind string, resolution, process int, compress, ok bool) {
	name = filepath.Base(name)
	if strings.HasSuffix(name, zstdExt) {
		compress = true
		name = strings.TrimSuffix(name, zstdExt)
	}
	name, found := strings.CutSuffix(name, ".txt")
	if !found {
		return "", 0, 0, false, false
	}
	parts := strings.Split(name, "_")
	if len(parts) != 4 || parts[2] != "cov" || parts[0] == "" {
		return "", 0, 0, false, false
	}
	res, err1 := strconv.Atoi(parts[1])
	proc, err2 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || res < 0 || proc < 0 {
		return "", 0, 0, false, false
	}
	return parts[0], res, proc, compress, true
}

// Write emits one "cell,count" line per covered cell, sorted by cell.
func (m *Map) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range m.Entries() {
		if _, err := fmt.Fprintf(bw, "%s,%d\n", e.Cell, e.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes m to path, zstd-compressed when path ends in ".zst". The
// file is written to a temp name and renamed so a crashed run never leaves a
// truncated partition behind.
func (m *Map) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "coverage-*.tmp")
	if err != nil {
		return err
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	var w io.Writer = tmp
	var zw *zstd.Encoder
	if strings.HasSuffix(path, zstdExt) {
		zw, err = zstd.NewWriter(tmp)
		if err != nil {
			cleanup()
			return err
		}
		w = zw
	}

	if err := m.Write(w); err != nil {
		cleanup()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			cleanup()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Read parses "cell,count" lines into a new map. Blank lines are ignored.
// The step count of a map read back from a file is unknown and left at zero.
func Read(r io.Reader) (*Map, error) {
	m := New()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		cell, countStr, ok := strings.Cut(text, ",")
		if !ok || cell == "" {
			return nil, fmt.Errorf("line %d: want cell,count: %q", line, text)
		}
		n, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("line %d: bad count %q", line, countStr)
		}
		m.counts[grid.Cell(strings.TrimSpace(cell))] += n
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadFile reads a coverage file, decompressing ".zst" files.
func ReadFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, zstdExt) {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	m, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// MergeFiles sums the coverage files in paths. Missing files are skipped and
// reported in the returned list, since partitions of a failed process may
// never have been written; any other read error aborts.
func MergeFiles(paths []string) (merged *Map, missing []string, err error) {
	merged = New()
	for _, p := range paths {
		m, err := ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, p)
				continue
			}
			return nil, missing, err
		}
		merged.Merge(m)
	}
	return merged, missing, nil
}
