package calibration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	values []float64
	errs   []error
	i      int
}

func (s *scripted) ReadRaw() (float64, error) {
	i := s.i
	s.i++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	return s.values[i%len(s.values)], nil
}

func TestFactorRoundTrip(t *testing.T) {
	f, err := Factor(100, 100, DefaultMaxFactor)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	f, err = Factor(200, 80, DefaultMaxFactor)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)
}

func TestFactorSanity(t *testing.T) {
	tests := []struct {
		name      string
		reference float64
		measured  float64
		max       float64
	}{
		{"zero measured", 100, 0, 10},
		{"negative measured", 100, -50, 10},
		{"too large", 100, 9, 10},
		{"zero reference", 0, 100, 10},
		{"custom ceiling", 100, 40, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Factor(tt.reference, tt.measured, tt.max)
			assert.ErrorIs(t, err, ErrFactorOutOfRange)
		})
	}

	f, err := Factor(100, 10, 10)
	require.NoError(t, err, "ceiling is inclusive")
	assert.Equal(t, 10.0, f)

	_, err = Factor(100, 5, 0)
	assert.ErrorIs(t, err, ErrFactorOutOfRange, "zero ceiling means the default")
}

func TestProcedureSkipsFailedReads(t *testing.T) {
	r := &scripted{
		values: []float64{99, 101, 100, 100},
		errs:   []error{nil, errors.New("glitch"), nil, nil},
	}
	p := Procedure{Samples: 4, MaxFactor: 10}

	factor, measured, err := p.Run(r, 100)
	require.NoError(t, err)
	assert.InDelta(t, 99.6666, measured, 1e-3)
	assert.InDelta(t, 100/measured, factor, 1e-12)
}

func TestProcedureNoSamples(t *testing.T) {
	glitch := errors.New("glitch")
	r := &scripted{values: []float64{1}, errs: []error{glitch, glitch}}
	p := Procedure{Samples: 2}

	_, _, err := p.Run(r, 100)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestFileStoreMissingIsDefault(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "calibration.yaml"))
	assert.Equal(t, DefaultFactor, s.Load())
}

func TestFileStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	s := NewFileStore(path)

	require.NoError(t, s.Save(1.0234))
	assert.Equal(t, 1.0234, s.Load())

	require.NoError(t, s.Save(0.5))
	assert.Equal(t, 0.5, NewFileStore(path).Load())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files cleaned up")
}

func TestFileStoreCorruptIsDefault(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"garbage.yaml":  "factor: [not a number",
		"negative.yaml": "factor: -2\n",
		"empty.yaml":    "",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		assert.Equal(t, DefaultFactor, NewFileStore(path).Load(), name)
	}
}

func TestFileStoreSaveError(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "missing-dir", "calibration.yaml"))
	assert.Error(t, s.Save(1.1))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore(0)
	assert.Equal(t, DefaultFactor, m.Load())
	require.NoError(t, m.Save(2))
	assert.Equal(t, 2.0, m.Load())
	assert.Equal(t, 1, m.Saves())

	m.SaveErr = errors.New("flash full")
	assert.Error(t, m.Save(3))
	assert.Equal(t, 2.0, m.Load())
}

func TestCalibrateRawHundredReferenceHundred(t *testing.T) {
	r := &scripted{values: []float64{100}}
	f, measured, err := Procedure{Samples: 5, MaxFactor: DefaultMaxFactor}.Run(r, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, measured)
	assert.Equal(t, 1.0, f)
	assert.Equal(t, 100.0, 100*f)
}
