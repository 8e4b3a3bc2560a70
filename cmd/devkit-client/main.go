// Command devkit-client publishes a board's sensor readings to an IoT hub and
// drives its status LED from cloud commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/devkit-client/internal/config"
	"github.com/sweeney/devkit-client/internal/device"
	"github.com/sweeney/devkit-client/internal/iothub"
	"github.com/sweeney/devkit-client/internal/led"
	"github.com/sweeney/devkit-client/internal/sensor"
	"github.com/sweeney/devkit-client/internal/status"
	"github.com/sweeney/devkit-client/internal/web"
)

func main() {
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	printState := flag.Bool("print-state", false, "Print one reading from every sensor and exit")
	logLevel := flag.String("log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	config.InitLogger(cfg.LogLevel)

	if err := run(cfg, *httpAddr, *printState); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, httpAddr string, printState bool) error {
	board, err := sensor.NewIIOBoard(cfg.IIORoot, sensor.DefaultNames, sensor.DefaultChannels)
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}
	defer board.Close()

	// Print state mode
	if printState {
		return printReadings(os.Stdout, board.Sensors())
	}

	statusLED, err := led.NewGPIOLED(cfg.LEDChip, cfg.LEDLine)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer statusLED.Close()

	session := iothub.NewRealSession(iothub.Config{
		Hostname:   cfg.Hostname,
		DeviceID:   cfg.DeviceID,
		PrimaryKey: cfg.PrimaryKey,
		ModelID:    cfg.ModelID,
	})
	defer session.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Hub:      cfg.Hostname,
		DeviceID: cfg.DeviceID,
		ModelID:  cfg.ModelID,
		HTTPAddr: httpAddr,
	})
	tracker.SetConnectionStatus(session.IsConnected)
	tracker.SetDropCounter(session.Dropped)
	tracker.IntervalChanged(cfg.TelemetryInterval)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logrus.Infof("http status server listening on %s", httpAddr)
	}

	dev, err := device.New(device.Config{
		Session:         session,
		LED:             statusLED,
		Sensors:         board.Sensors(),
		IntervalSeconds: cfg.TelemetryInterval,
		Observer:        tracker,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"hub":      cfg.Hostname,
		"device":   cfg.DeviceID,
		"model":    cfg.ModelID,
		"interval": cfg.TelemetryInterval,
	}).Info("starting")

	return runDevice(ctx, dev)
}

// runDevice runs until ctx is cancelled. Cancellation is a clean exit;
// anything else is a setup failure.
func runDevice(ctx context.Context, dev *device.Device) error {
	err := dev.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logrus.Info("shutting down")
		return nil
	}
	return err
}

// printReadings reads every sensor once. A failed read is printed and
// reported as an error after all sensors were tried.
func printReadings(w io.Writer, sensors []sensor.Sensor) error {
	var failed int
	for _, s := range sensors {
		v, err := s.Read()
		if err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", s.Name, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s: %.2f\n", s.Name, v)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sensors failed", failed, len(sensors))
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
