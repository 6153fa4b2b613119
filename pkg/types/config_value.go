package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags the variant held by a Value. Modeled as an explicit
// tagged union (not an empty interface) so retrieval is a typed getter
// that reports a tag mismatch instead of panicking.
type ValueKind int

const (
	KindString ValueKind = iota
	KindStringVec
	KindInt
	KindFloat
	KindFloatVec
	KindBool
	KindMemSize
	KindJobLen
	KindFileType
	KindReadEnd
)

// FileType is the closed set of input file shapes the mapper accepts.
type FileType string

const (
	FileTypePaired      FileType = "paired"
	FileTypeSingle      FileType = "single"
	FileTypeInterleaved FileType = "interleaved"
	FileTypeStream      FileType = "stream"
	FileTypeBam         FileType = "bam"
	FileTypeCram        FileType = "cram"
)

// ReadEnd identifies which mate of a paired read a value describes.
type ReadEnd string

const (
	ReadEnd1 ReadEnd = "end1"
	ReadEnd2 ReadEnd = "end2"
)

// Value is a typed configuration value. Exactly one of the fields
// matching Kind is meaningful; getters return ok=false on a tag
// mismatch rather than panicking.
type Value struct {
	Kind ValueKind

	str      string
	strVec   []string
	i        int64
	f        float64
	fVec     []float64
	b        bool
	memBytes int64
	jobSecs  int64
	fileType FileType
	readEnd  ReadEnd
}

func NewStringValue(s string) Value        { return Value{Kind: KindString, str: s} }
func NewStringVecValue(s []string) Value    { return Value{Kind: KindStringVec, strVec: s} }
func NewIntValue(i int64) Value             { return Value{Kind: KindInt, i: i} }
func NewFloatValue(f float64) Value         { return Value{Kind: KindFloat, f: f} }
func NewFloatVecValue(f []float64) Value    { return Value{Kind: KindFloatVec, fVec: f} }
func NewBoolValue(b bool) Value             { return Value{Kind: KindBool, b: b} }
func NewMemSizeValue(bytes int64) Value     { return Value{Kind: KindMemSize, memBytes: bytes} }
func NewJobLenValue(seconds int64) Value    { return Value{Kind: KindJobLen, jobSecs: seconds} }
func NewFileTypeValue(t FileType) Value     { return Value{Kind: KindFileType, fileType: t} }
func NewReadEndValue(r ReadEnd) Value       { return Value{Kind: KindReadEnd, readEnd: r} }

func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsStringVec() ([]string, bool) {
	if v.Kind != KindStringVec {
		return nil, false
	}
	return v.strVec, true
}

func (v Value) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) AsFloatVec() ([]float64, bool) {
	if v.Kind != KindFloatVec {
		return nil, false
	}
	return v.fVec, true
}

func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsMemSize() (int64, bool) {
	if v.Kind != KindMemSize {
		return 0, false
	}
	return v.memBytes, true
}

func (v Value) AsJobLen() (int64, bool) {
	if v.Kind != KindJobLen {
		return 0, false
	}
	return v.jobSecs, true
}

func (v Value) AsFileType() (FileType, bool) {
	if v.Kind != KindFileType {
		return "", false
	}
	return v.fileType, true
}

func (v Value) AsReadEnd() (ReadEnd, bool) {
	if v.Kind != KindReadEnd {
		return "", false
	}
	return v.readEnd, true
}

// ParseMemSize parses a size with an optional k/M/G suffix (base 1024)
// into a byte count, e.g. "4G" -> 4294967296.
func ParseMemSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty memory size")
	}
	mult := int64(1)
	suffix := s[len(s)-1]
	numPart := s
	switch suffix {
	case 'k', 'K':
		mult = 1 << 10
		numPart = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		numPart = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		numPart = s[:len(s)-1]
	}
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %w", s, err)
	}
	return int64(n * float64(mult)), nil
}

// ParseJobLen parses an "h:m:s", "m:s" or bare-seconds duration string
// into a second count.
func ParseJobLen(s string) (int64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid job length %q: %w", s, err)
		}
		total = total*60 + n
	}
	return total, nil
}

// JobLenString renders a second count back as "h:m:s".
func JobLenString(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int64(d.Hours())
	m := int64(d.Minutes()) % 60
	s := int64(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Section names the closed set of config sections, mirroring the
// original's section enum; section-specific lookups fall back to
// Default when a key is absent.
type Section string

const (
	SectionDefault  Section = "Default"
	SectionIndex    Section = "Index"
	SectionMapping  Section = "Mapping"
	SectionCalling  Section = "Calling"
	SectionExtract  Section = "Extract"
	SectionReport   Section = "Report"
	SectionDbSnp    Section = "DbSnp"
	SectionMD5Sum   Section = "MD5Sum"
)

// Contig is one entry in the reference contig list.
type Contig struct {
	Name    string
	Length  int64
	InPool  bool
}
