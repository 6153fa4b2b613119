package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/heathsc/gembsctl/pkg/lock"
	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
)

// CurrentVersion is the format-header version byte this package
// writes. A file whose header carries a different version is refused
// rather than guessed at.
const CurrentVersion byte = 1

const (
	flagUncompressed byte = 0
	flagCompressed   byte = 1
)

// ErrStateDecode marks a primary-state file that failed to decode:
// this is fatal and the controller must refuse to run.
type ErrStateDecode struct {
	Path  string
	Cause error
}

func (e *ErrStateDecode) Error() string {
	return fmt.Sprintf("config: failed to decode state file %s: %v", e.Path, e.Cause)
}

func (e *ErrStateDecode) Unwrap() error { return e.Cause }

// Store is the four sub-maps making up the config/state store.
type Store struct {
	Config      map[types.Section]map[string]types.Value
	SampleData  map[string]map[string]types.Value
	Contigs     []types.Contig
	ContigPools map[string]map[string]struct{}
}

// New returns an empty store, the state a project has before its
// first `prepare` run.
func New() *Store {
	return &Store{
		Config:      make(map[types.Section]map[string]types.Value),
		SampleData:  make(map[string]map[string]types.Value),
		ContigPools: make(map[string]map[string]struct{}),
	}
}

// Get returns the section-specific value if present, otherwise the
// Default-section value, otherwise ok=false.
func (s *Store) Get(section types.Section, key string) (types.Value, bool) {
	if m, ok := s.Config[section]; ok {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	if section != types.SectionDefault {
		if m, ok := s.Config[types.SectionDefault]; ok {
			if v, ok := m[key]; ok {
				return v, true
			}
		}
	}
	return types.Value{}, false
}

// GetStrict returns only the section-specific value, skipping the
// Default-section fallback Get applies - useful where an explicitly
// unset value must not be masked by a Default entry.
func (s *Store) GetStrict(section types.Section, key string) (types.Value, bool) {
	if m, ok := s.Config[section]; ok {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	return types.Value{}, false
}

// Set stores a value under the given section and key.
func (s *Store) Set(section types.Section, key string, v types.Value) {
	if s.Config == nil {
		s.Config = make(map[types.Section]map[string]types.Value)
	}
	m, ok := s.Config[section]
	if !ok {
		m = make(map[string]types.Value)
		s.Config[section] = m
	}
	m[key] = v
}

// Encode serializes a store to its on-disk representation, gzipping
// the msgpack payload when compress is true.
func Encode(s *Store, compress bool) ([]byte, error) {
	payload, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("config: encoding store: %w", err)
	}

	flag := flagUncompressed
	if compress {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return nil, fmt.Errorf("config: compressing store: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("config: closing compressor: %w", err)
		}
		payload = buf.Bytes()
		flag = flagCompressed
	}

	out := make([]byte, 0, len(payload)+2)
	out = append(out, CurrentVersion, flag)
	out = append(out, payload...)
	return out, nil
}

// Decode parses a store from its on-disk representation.
func Decode(data []byte) (*Store, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("config: state blob too short (%d bytes)", len(data))
	}
	version, flag := data[0], data[1]
	if version != CurrentVersion {
		return nil, fmt.Errorf("config: unsupported state format version %d", version)
	}

	payload := data[2:]
	if flag == flagCompressed {
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("config: opening compressed state: %w", err)
		}
		defer gr.Close()
		decompressed, err := io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("config: decompressing state: %w", err)
		}
		payload = decompressed
	}

	s := New()
	if err := msgpack.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("config: decoding store: %w", err)
	}
	return s, nil
}

// Load reads and decodes the store at path. A missing file returns a
// fresh empty store (the project's pre-prepare state), not an error.
// Any decode failure is wrapped in ErrStateDecode and must be treated
// as fatal by the caller.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	s, err := Decode(data)
	if err != nil {
		return nil, &ErrStateDecode{Path: path, Cause: err}
	}
	return s, nil
}

// Save atomically writes the store to path, compressing when
// requested.
func Save(path string, s *Store, compress bool) error {
	data, err := Encode(s, compress)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// LoadLocked is Load performed while holding the primary file lock on
// path: the state file is always read and written under that lock.
func LoadLocked(path string) (*Store, error) {
	l, err := lock.WaitFor(path)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	return Load(path)
}

// SaveLocked is Save performed while holding the primary file lock.
func SaveLocked(path string, s *Store, compress bool) error {
	l, err := lock.WaitFor(path)
	if err != nil {
		return err
	}
	defer l.Close()
	return Save(path, s, compress)
}
