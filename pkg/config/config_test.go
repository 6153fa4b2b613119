package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/heathsc/gembsctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFallsBackToDefault(t *testing.T) {
	s := New()
	s.Set(types.SectionDefault, "threads", types.NewIntValue(4))
	s.Set(types.SectionMapping, "threads", types.NewIntValue(8))
	s.Set(types.SectionMapping, "memory", types.NewMemSizeValue(1<<30))

	v, ok := s.Get(types.SectionMapping, "threads")
	require.True(t, ok)
	n, _ := v.AsInt()
	assert.EqualValues(t, 8, n)

	v, ok = s.Get(types.SectionCalling, "threads")
	require.True(t, ok)
	n, _ = v.AsInt()
	assert.EqualValues(t, 4, n)

	_, ok = s.Get(types.SectionCalling, "unknown")
	assert.False(t, ok)
}

func TestGetStrictSkipsDefaultFallback(t *testing.T) {
	s := New()
	s.Set(types.SectionDefault, "threads", types.NewIntValue(4))

	_, ok := s.GetStrict(types.SectionMapping, "threads")
	assert.False(t, ok)

	v, ok := s.GetStrict(types.SectionDefault, "threads")
	require.True(t, ok)
	n, _ := v.AsInt()
	assert.EqualValues(t, 4, n)
}

func TestEncodeDecodeRoundTripUncompressed(t *testing.T) {
	s := New()
	s.Set(types.SectionDefault, "project", types.NewStringValue("gembs-test"))
	s.Contigs = []types.Contig{{Name: "chr1", Length: 1000, InPool: true}}

	data, err := Encode(s, false)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, data[0])
	assert.Equal(t, byte(0), data[1])

	decoded, err := Decode(data)
	require.NoError(t, err)
	v, ok := decoded.Get(types.SectionDefault, "project")
	require.True(t, ok)
	str, _ := v.AsString()
	assert.Equal(t, "gembs-test", str)
	assert.Equal(t, s.Contigs, decoded.Contigs)
}

func TestEncodeDecodeRoundTripCompressed(t *testing.T) {
	s := New()
	s.Set(types.SectionDefault, "project", types.NewStringValue("gembs-test"))

	data, err := Encode(s, true)
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[1])

	decoded, err := Decode(data)
	require.NoError(t, err)
	v, ok := decoded.Get(types.SectionDefault, "project")
	require.True(t, ok)
	str, _ := v.AsString()
	assert.Equal(t, "gembs-test", str)
}

func TestLoadMissingFileReturnsEmptyStore(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.state"))
	require.NoError(t, err)
	assert.Empty(t, s.Config)
}

func TestLoadCorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.state")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xff, 1, 2, 3}, 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var decodeErr *ErrStateDecode
	assert.True(t, errors.As(err, &decodeErr))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.state")

	s := New()
	s.Set(types.SectionIndex, "reference", types.NewStringValue("ref.fa"))
	require.NoError(t, Save(path, s, true))

	loaded, err := Load(path)
	require.NoError(t, err)
	v, ok := loaded.GetStrict(types.SectionIndex, "reference")
	require.True(t, ok)
	str, _ := v.AsString()
	assert.Equal(t, "ref.fa", str)
}
