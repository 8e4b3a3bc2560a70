package sensor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeBoardOrderAndValues(t *testing.T) {
	b := NewFakeBoard(DefaultNames...)
	b.SetValues(Temperature, 21.5, 22.0)

	sensors := b.Sensors()
	require.Len(t, sensors, 5)
	for i, name := range DefaultNames {
		assert.Equal(t, name, sensors[i].Name)
	}

	v, err := sensors[0].Read()
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)

	v, _ = sensors[0].Read()
	assert.Equal(t, 22.0, v)

	// Last value repeats
	v, _ = sensors[0].Read()
	assert.Equal(t, 22.0, v)
	assert.Equal(t, 3, b.ReadCount(Temperature))

	// Unscripted sensors read zero
	v, err = sensors[1].Read()
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestFakeBoardError(t *testing.T) {
	b := NewFakeBoard(Humidity)
	simulated := errors.New("simulated error")
	b.SetError(Humidity, simulated)

	_, err := b.Sensors()[0].Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, simulated)
	assert.Equal(t, 1, b.ReadCount(Humidity))

	b.SetError(Humidity, nil)
	_, err = b.Sensors()[0].Read()
	assert.NoError(t, err)
}

func TestFakeBoardClose(t *testing.T) {
	b := NewFakeBoard()
	assert.False(t, b.Closed)
	require.NoError(t, b.Close())
	assert.True(t, b.Closed)
}

func writeAttrs(t *testing.T, dir string, attrs map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, value := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644))
	}
}

func TestIIOBoardRead(t *testing.T) {
	root := t.TempDir()
	writeAttrs(t, filepath.Join(root, "iio:device0"), map[string]string{
		"name":          "lps22hb",
		"in_temp_raw":   "2150",
		"in_temp_scale": "10",
	})
	writeAttrs(t, filepath.Join(root, "iio:device1"), map[string]string{
		"name":                       "hts221",
		"in_humidityrelative_raw":    "100",
		"in_humidityrelative_offset": "20",
		"in_humidityrelative_scale":  "0.5",
	})

	channels := map[string]Channel{
		Temperature: {Device: "lps22hb", Attr: "in_temp", Factor: 0.001},
		Humidity:    {Device: "hts221", Attr: "in_humidityrelative"},
	}
	b, err := NewIIOBoard(root, []string{Humidity, Temperature}, channels)
	require.NoError(t, err)
	defer b.Close()

	sensors := b.Sensors()
	require.Len(t, sensors, 2)
	assert.Equal(t, Humidity, sensors[0].Name)
	assert.Equal(t, Temperature, sensors[1].Name)

	v, err := sensors[0].Read()
	require.NoError(t, err)
	assert.InDelta(t, 60.0, v, 1e-9)

	v, err = sensors[1].Read()
	require.NoError(t, err)
	assert.InDelta(t, 21.5, v, 1e-9)
}

func TestIIOBoardMissingDevice(t *testing.T) {
	root := t.TempDir()
	writeAttrs(t, filepath.Join(root, "iio:device0"), map[string]string{"name": "hts221"})

	_, err := NewIIOBoard(root, []string{Temperature}, DefaultChannels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lps22hb")
}

func TestIIOBoardMissingChannel(t *testing.T) {
	_, err := NewIIOBoard(t.TempDir(), []string{"co2"}, DefaultChannels)
	require.Error(t, err)
}

func TestIIOBoardMissingRoot(t *testing.T) {
	_, err := NewIIOBoard(filepath.Join(t.TempDir(), "nope"), DefaultNames, DefaultChannels)
	require.Error(t, err)
}

func TestIIOBoardBadRaw(t *testing.T) {
	root := t.TempDir()
	writeAttrs(t, filepath.Join(root, "iio:device0"), map[string]string{
		"name":          "lis2mdl",
		"in_magn_x_raw": "garbage",
	})

	b, err := NewIIOBoard(root, []string{Magnetic}, DefaultChannels)
	require.NoError(t, err)

	_, err = b.Sensors()[0].Read()
	assert.Error(t, err)
}

func TestIIOBoardRawRemoved(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "iio:device0")
	writeAttrs(t, dir, map[string]string{
		"name":          "lis2mdl",
		"in_magn_x_raw": "1",
	})

	b, err := NewIIOBoard(root, []string{Magnetic}, DefaultChannels)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "in_magn_x_raw")))

	_, err = b.Sensors()[0].Read()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
