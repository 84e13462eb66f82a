// Package seq scans, names and watches image sequences on disk.
//
// A sequence is a set of files sharing the text around a trailing frame
// number. Patterns address them in printf style ("plate.%04d.exr") or as
// hash runs ("plate.####.exr").
package seq

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Pattern names the frames of one sequence: prefix, zero-padded frame
// number, suffix. Pad 0 formats the number unpadded.
type Pattern struct {
	Prefix string
	Suffix string
	Pad    int
}

// ParsePattern reads a printf-style or hash-run pattern string. The second
// return is false when s carries no frame placeholder, which is how plain
// single-file paths look.
func ParsePattern(s string) (Pattern, bool) {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		n := i
		for n < len(s) && s[n] == '#' {
			n++
		}
		return Pattern{Prefix: s[:i], Suffix: s[n:], Pad: n - i}, true
	}

	i := strings.IndexByte(s, '%')
	if i < 0 {
		return Pattern{}, false
	}
	j := i + 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j >= len(s) || s[j] != 'd' {
		return Pattern{}, false
	}
	if strings.IndexByte(s[j+1:], '%') >= 0 {
		return Pattern{}, false
	}
	pad := 0
	if j > i+1 {
		pad, _ = strconv.Atoi(s[i+1 : j])
	}
	return Pattern{Prefix: s[:i], Suffix: s[j+1:], Pad: pad}, true
}

// Format names the file for one frame.
func (p Pattern) Format(frame int64) string {
	if p.Pad <= 0 {
		return p.Prefix + strconv.FormatInt(frame, 10) + p.Suffix
	}
	return fmt.Sprintf("%s%0*d%s", p.Prefix, p.Pad, frame, p.Suffix)
}

// Match extracts the frame number from a file name, accepting any digit
// width so re-padded sequences still resolve.
func (p Pattern) Match(name string) (int64, bool) {
	if len(name) <= len(p.Prefix)+len(p.Suffix) {
		return 0, false
	}
	if !strings.HasPrefix(name, p.Prefix) || !strings.HasSuffix(name, p.Suffix) {
		return 0, false
	}
	frame, err := strconv.ParseInt(name[len(p.Prefix):len(name)-len(p.Suffix)], 10, 64)
	if err != nil {
		return 0, false
	}
	return frame, true
}

// String renders the printf form of the pattern.
func (p Pattern) String() string {
	if p.Pad <= 0 {
		return p.Prefix + "%d" + p.Suffix
	}
	return fmt.Sprintf("%s%%0%dd%s", p.Prefix, p.Pad, p.Suffix)
}

// Sequence is one scanned frame set. Frames holds the indexes present on
// disk in ascending order; gaps are the caller's concern.
type Sequence struct {
	Dir     string
	Pattern Pattern
	Frames  []int64
}

// First returns the lowest frame present, or 0 for an empty sequence.
func (s *Sequence) First() int64 {
	if len(s.Frames) == 0 {
		return 0
	}
	return s.Frames[0]
}

// Last returns the highest frame present, or 0 for an empty sequence.
func (s *Sequence) Last() int64 {
	if len(s.Frames) == 0 {
		return 0
	}
	return s.Frames[len(s.Frames)-1]
}

// Len returns the number of frames present.
func (s *Sequence) Len() int { return len(s.Frames) }

// Contains reports whether a frame exists on disk.
func (s *Sequence) Contains(frame int64) bool {
	_, ok := slices.BinarySearch(s.Frames, frame)
	return ok
}

// Path returns the full path of one frame's file.
func (s *Sequence) Path(frame int64) string {
	return filepath.Join(s.Dir, s.Pattern.Format(frame))
}

// Scan inventories the sequences of one directory. Regular files whose
// stem ends in a digit run group by the text around it; a loose numbered
// file forms a one-frame sequence, files without a number are skipped.
// Names are ordered with numeric collation, so mixed zero-padding cannot
// scramble frame order.
func Scan(dir string) ([]Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	c := collate.New(language.Und, collate.Numeric)
	c.SortStrings(names)

	type group struct {
		pat    Pattern
		frames []int64
	}
	groups := make(map[string]*group)
	var order []string
	for _, name := range names {
		ext := filepath.Ext(name)
		stem := name[:len(name)-len(ext)]
		start, end, ok := lastDigitRun(stem)
		if !ok {
			continue
		}
		frame, err := strconv.ParseInt(stem[start:end], 10, 64)
		if err != nil {
			continue
		}
		prefix, suffix := stem[:start], stem[end:]+ext
		key := prefix + "\x00" + suffix
		g := groups[key]
		if g == nil {
			g = &group{pat: Pattern{Prefix: prefix, Suffix: suffix, Pad: end - start}}
			groups[key] = g
			order = append(order, key)
		} else if g.pat.Pad != end-start {
			// Mixed widths within one set: format unpadded.
			g.pat.Pad = 0
		}
		g.frames = append(g.frames, frame)
	}

	seqs := make([]Sequence, 0, len(order))
	for _, key := range order {
		g := groups[key]
		seqs = append(seqs, Sequence{Dir: dir, Pattern: g.pat, Frames: g.frames})
	}
	slices.SortFunc(seqs, func(a, b Sequence) int {
		return c.CompareString(a.Pattern.String(), b.Pattern.String())
	})
	return seqs, nil
}

// lastDigitRun locates the rightmost run of digits in a file stem.
func lastDigitRun(stem string) (start, end int, ok bool) {
	end = -1
	for i := len(stem) - 1; i >= 0; i-- {
		c := stem[i]
		switch {
		case c >= '0' && c <= '9':
			if end < 0 {
				end = i + 1
			}
		case end >= 0:
			return i + 1, end, true
		}
	}
	if end >= 0 {
		return 0, end, true
	}
	return 0, 0, false
}

// Fingerprint hashes the directory's file listing with names, sizes and
// modification times. Two equal fingerprints mean no frame appeared,
// vanished or was rewritten in between.
func Fingerprint(dir string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	h := xxhash.New()
	var buf [16]byte
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		h.WriteString(e.Name())
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:8], uint64(info.Size()))
		binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))
		h.Write(buf[:])
	}
	return h.Sum64(), nil
}
