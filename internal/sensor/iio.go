package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultIIORoot is where the kernel exposes IIO devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// Channel locates one IIO channel. The reading is
// (raw + offset) * scale * Factor, where offset and scale default to 0 and 1
// when the driver does not expose them.
type Channel struct {
	Device string  // content of the device's "name" attribute, e.g. "lps22hb"
	Attr   string  // channel prefix, e.g. "in_temp" or "in_accel_x"
	Factor float64 // unit conversion applied after scale; 0 means 1
}

// DefaultChannels maps the devkit sensors onto their usual IIO drivers.
// Factors convert to the units the cloud model expects: °C, hPa, %RH, mg
// and mG.
var DefaultChannels = map[string]Channel{
	Temperature:  {Device: "lps22hb", Attr: "in_temp", Factor: 0.001},
	Pressure:     {Device: "lps22hb", Attr: "in_pressure", Factor: 10},
	Humidity:     {Device: "hts221", Attr: "in_humidityrelative", Factor: 1},
	Acceleration: {Device: "lsm6dsl_accel", Attr: "in_accel_x", Factor: 1000 / 9.80665},
	Magnetic:     {Device: "lis2mdl", Attr: "in_magn_x", Factor: 1000},
}

// IIOBoard reads sensors from the Linux Industrial I/O sysfs interface.
type IIOBoard struct {
	sensors []Sensor
}

// NewIIOBoard resolves each named channel to its device directory under root.
// Names are read in the given order. A channel whose device is absent is a
// setup error.
func NewIIOBoard(root string, names []string, channels map[string]Channel) (*IIOBoard, error) {
	devices, err := scanIIODevices(root)
	if err != nil {
		return nil, err
	}

	b := &IIOBoard{}
	for _, name := range names {
		ch, ok := channels[name]
		if !ok {
			return nil, fmt.Errorf("sensor %s: no channel configured", name)
		}
		dir, ok := devices[ch.Device]
		if !ok {
			return nil, fmt.Errorf("sensor %s: iio device %q not found under %s", name, ch.Device, root)
		}
		r := &iioReader{dir: dir, ch: ch}
		b.sensors = append(b.sensors, Sensor{Name: name, Read: r.read})
	}
	return b, nil
}

// Sensors returns the resolved sensors in the order they were requested.
func (b *IIOBoard) Sensors() []Sensor {
	return b.sensors
}

// Close is a no-op; sysfs attributes are opened per read.
func (b *IIOBoard) Close() error {
	return nil
}

// scanIIODevices maps device names to their sysfs directories.
func scanIIODevices(root string) (map[string]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan iio devices: %w", err)
	}
	devices := make(map[string]string)
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		name, err := readAttr(dir, "name")
		if err != nil {
			continue
		}
		if _, dup := devices[name]; !dup {
			devices[name] = dir
		}
	}
	return devices, nil
}

type iioReader struct {
	dir string
	ch  Channel
}

func (r *iioReader) read() (float64, error) {
	raw, err := readFloatAttr(r.dir, r.ch.Attr+"_raw")
	if err != nil {
		return 0, err
	}

	offset, err := readFloatAttr(r.dir, r.ch.Attr+"_offset")
	if errors.Is(err, os.ErrNotExist) {
		offset = 0
	} else if err != nil {
		return 0, err
	}

	scale, err := readFloatAttr(r.dir, r.ch.Attr+"_scale")
	if errors.Is(err, os.ErrNotExist) {
		scale = 1
	} else if err != nil {
		return 0, err
	}

	factor := r.ch.Factor
	if factor == 0 {
		factor = 1
	}
	return (raw + offset) * scale * factor, nil
}

func readAttr(dir, attr string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readFloatAttr(dir, attr string) (float64, error) {
	s, err := readAttr(dir, attr)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", attr, err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", attr, err)
	}
	return v, nil
}
