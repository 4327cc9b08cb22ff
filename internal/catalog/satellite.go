package catalog

import (
	"fmt"
	"strings"

	"github.com/akhenakh/sgp4"
)

// Satellite is one catalog record: its name, NORAD catalog number, and the
// element set it is propagated from. Line1 and Line2 are empty for records
// that came from OMM JSON.
type Satellite struct {
	Name     string
	NoradID  int
	Line1    string
	Line2    string
	Elements *sgp4.TLE
}

func (s Satellite) String() string {
	return fmt.Sprintf("%s (%d)", s.Name, s.NoradID)
}

// ParseTLE extracts satellites from a bulk three-line TLE dump (name, line 1,
// line 2). Groups that fail to parse are counted and skipped.
func ParseTLE(raw string) (sats []Satellite, skipped int) {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(raw), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	for i := 0; i+2 < len(lines); i += 3 {
		name, l1, l2 := lines[i], lines[i+1], lines[i+2]

		tle, err := sgp4.ParseTLE(name + "\n" + l1 + "\n" + l2)
		if err != nil {
			skipped++
			continue
		}

		sats = append(sats, Satellite{
			Name:     tle.Name,
			NoradID:  tle.SatelliteNumber,
			Line1:    l1,
			Line2:    l2,
			Elements: tle,
		})
	}

	if rem := len(lines) % 3; rem != 0 {
		skipped++
	}
	return sats, skipped
}

// ParseOMM extracts satellites from an OMM JSON array. Records that cannot be
// converted to an element set are counted and skipped.
func ParseOMM(raw []byte) (sats []Satellite, skipped int, err error) {
	omms, err := sgp4.ParseOMMs(raw)
	if err != nil {
		return nil, 0, err
	}

	for i := range omms {
		tle, err := omms[i].ToTLE()
		if err != nil {
			skipped++
			continue
		}
		sats = append(sats, Satellite{
			Name:     strings.TrimSpace(omms[i].ObjectName),
			NoradID:  omms[i].NoradCatID,
			Elements: tle,
		})
	}
	return sats, skipped, nil
}

// FilterPrefix keeps the satellites whose name starts with prefix,
// case-insensitively. An empty prefix keeps everything.
func FilterPrefix(sats []Satellite, prefix string) []Satellite {
	if prefix == "" {
		return sats
	}
	upper := strings.ToUpper(prefix)
	out := sats[:0:0]
	for _, s := range sats {
		if strings.HasPrefix(strings.ToUpper(s.Name), upper) {
			out = append(out, s)
		}
	}
	return out
}
