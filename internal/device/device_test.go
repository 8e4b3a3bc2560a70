package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/devkit-client/internal/iothub"
	"github.com/sweeney/devkit-client/internal/led"
	"github.com/sweeney/devkit-client/internal/sensor"
)

func newDevice(t *testing.T) (*Device, *iothub.FakeSession, *led.FakeLED) {
	t.Helper()
	session := iothub.NewFakeSession()
	l := led.NewFakeLED()
	d, err := New(Config{Session: session, LED: l, Sensors: newBoard().Sensors()})
	require.NoError(t, err)
	return d, session, l
}

func TestNewValidatesConfig(t *testing.T) {
	sensors := newBoard().Sensors()
	_, err := New(Config{LED: led.NewFakeLED(), Sensors: sensors})
	assert.Error(t, err)
	_, err = New(Config{Session: iothub.NewFakeSession(), Sensors: sensors})
	assert.Error(t, err)
	_, err = New(Config{Session: iothub.NewFakeSession(), LED: led.NewFakeLED()})
	assert.Error(t, err)
}

func TestStartSequence(t *testing.T) {
	d, session, l := newDevice(t)
	session.Twin = []iothub.Property{{Name: PropertyTelemetryInterval, Value: []byte("20"), Version: 3}}

	require.NoError(t, d.Start(context.Background()))

	assert.True(t, session.Connected)
	assert.True(t, session.TwinRequested)
	assert.Equal(t, int32(20), d.State().IntervalSeconds())
	assert.Equal(t, []iothub.Ack{{Name: "telemetryInterval", Value: int32(20), Status: 200, Version: 3}}, session.AckSnapshot())
	assert.Equal(t, []iothub.Reported{{Name: "ledState", Value: false}}, session.ReportedSnapshot())
	assert.Equal(t, []bool{false}, l.States)
}

func TestStartRegistersHandlers(t *testing.T) {
	d, session, l := newDevice(t)
	require.NoError(t, d.Start(context.Background()))

	resp := session.InjectCommand(iothub.Command{Name: CommandSetLEDState, Payload: []byte("true")})
	assert.Equal(t, 200, resp.Status)
	assert.True(t, l.On())
	assert.True(t, d.State().LED())
}

func TestStartConnectFailure(t *testing.T) {
	d, session, _ := newDevice(t)
	session.ConnectError = errors.New("tls handshake")

	err := d.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
	assert.False(t, session.TwinRequested)
	assert.Empty(t, session.ReportedSnapshot())
}

func TestStartTwinFailure(t *testing.T) {
	d, session, _ := newDevice(t)
	session.TwinError = iothub.ErrTimeout

	err := d.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, iothub.ErrTimeout)
	assert.Empty(t, session.ReportedSnapshot())
}

func TestRunPublishesAfterStart(t *testing.T) {
	d, session, _ := newDevice(t)
	pub := published(session)
	clock := newFakeClock()
	d.Scheduler().After = clock.After

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	clock.nextWait(t)
	clock.ticks <- time.Now()
	assert.Equal(t, sensor.Temperature, nextTelemetry(t, pub).Name)
	assert.Equal(t, 10*time.Second, clock.nextWait(t))

	// A desired patch changes the period and triggers a publish immediately.
	session.InjectDesiredProperty(intervalProperty("2", 5))
	assert.Equal(t, sensor.Pressure, nextTelemetry(t, pub).Name)
	assert.Equal(t, 2*time.Second, clock.nextWait(t))

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunStartFailure(t *testing.T) {
	d, session, _ := newDevice(t)
	session.ConnectError = errors.New("refused")
	assert.Error(t, d.Run(context.Background()))
}
