package artifact

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Record holds the fields a final filename is derived from.
type Record struct {
	Step      int
	Timestamp string
	Hash      string
	Prefix    string
	Extension string
}

// SubStep is the two-digit sequence derived from the step; it wraps at 100.
func (r Record) SubStep() int {
	return r.Step % 100
}

// FileName derives the final artifact filename. It is a pure function of
// the record.
func (r Record) FileName() string {
	return fmt.Sprintf("%03d_%s%02d_%s_%s.%s", r.Step, r.Timestamp, r.SubStep(), r.Hash, r.Prefix, r.Extension)
}

// TempFileName is where an artifact is serialized before it is hashed.
func TempFileName(prefix, ext string) string {
	return fmt.Sprintf("%s_temp.%s", prefix, ext)
}

// FileNamePattern matches names produced by Record.FileName.
var FileNamePattern = regexp.MustCompile(`^(\d{3,})_(\d{8}_\d{6})(\d{2})_([0-9a-f]{8})_(.+)\.(\w+)$`)

// ParseFileName recovers the record from a final artifact filename.
func ParseFileName(name string) (Record, error) {
	m := FileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return Record{}, fmt.Errorf("%q is not an artifact filename", name)
	}
	step, err := strconv.Atoi(m[1])
	if err != nil {
		return Record{}, fmt.Errorf("%q: bad step: %w", name, err)
	}
	rec := Record{
		Step:      step,
		Timestamp: m[2],
		Hash:      m[4],
		Prefix:    m[5],
		Extension: m[6],
	}
	if sub, _ := strconv.Atoi(m[3]); sub != rec.SubStep() {
		return Record{}, fmt.Errorf("%q: sub-step %02d does not match step %d", name, sub, step)
	}
	return rec, nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPrefix)
	}
	if strings.ContainsAny(prefix, `/\`) || prefix == "." || prefix == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}
