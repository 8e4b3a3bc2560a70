package iothub

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "iothub")

// Config describes how to reach the hub.
type Config struct {
	Hostname   string
	DeviceID   string
	PrimaryKey string // base64 symmetric key
	ModelID    string // advertised at connect time

	Port           int           // default 8883
	TokenTTL       time.Duration // SAS token lifetime, default 1h
	PublishTimeout time.Duration // default 5s
	BufferSize     int           // telemetry held while offline, default 100
	InboxSize      int           // inbound messages queued for handlers, default 64

	// TLSConfig overrides the default TLS settings (system roots, ServerName=Hostname).
	TLSConfig *tls.Config
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 8883
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = time.Hour
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = 5 * time.Second
	}
	if c.BufferSize == 0 {
		c.BufferSize = 100
	}
	if c.InboxSize == 0 {
		c.InboxSize = 64
	}
}

// Broker returns the MQTT broker URL.
func (c Config) Broker() string {
	return fmt.Sprintf("ssl://%s:%d", c.Hostname, c.Port)
}

// inbound is one unit of work for the dispatch goroutine.
type inbound struct {
	command  *Command
	property *Property
	twin     bool // property came from the full twin, not a patch
}

// RealSession talks to an actual IoT Hub over MQTT.
type RealSession struct {
	cfg    Config
	client paho.Client

	handlersMu sync.RWMutex
	handlers   Handlers

	inbox     chan inbound
	startOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	buf     *ringBuffer
	online  bool // connected and buffer replayed; buffered publishes go direct
	pending map[string]chan twinResponse
}

type twinResponse struct {
	status int
	body   []byte
}

// NewRealSession creates a session for the given device. It does not connect.
func NewRealSession(cfg Config) *RealSession {
	cfg.setDefaults()
	s := &RealSession{
		cfg:     cfg,
		inbox:   make(chan inbound, cfg.InboxSize),
		done:    make(chan struct{}),
		buf:     newRingBuffer(cfg.BufferSize),
		pending: make(map[string]chan twinResponse),
	}

	tlsConfig := cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: cfg.Hostname, MinVersion: tls.VersionTLS12}
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker()).
		SetClientID(cfg.DeviceID).
		SetProtocolVersion(4).
		SetTLSConfig(tlsConfig).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCredentialsProvider(s.credentials).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.connectionLost)

	s.client = paho.NewClient(opts)
	return s
}

// credentials signs a fresh SAS token on every (re)connect.
func (s *RealSession) credentials() (string, string) {
	token, err := SASToken(s.cfg.Hostname, s.cfg.DeviceID, s.cfg.PrimaryKey, time.Now().Add(s.cfg.TokenTTL))
	if err != nil {
		log.WithError(err).Error("sign SAS token")
	}
	return Username(s.cfg.Hostname, s.cfg.DeviceID, s.cfg.ModelID), token
}

// Register installs the inbound handlers.
func (s *RealSession) Register(h Handlers) {
	s.handlersMu.Lock()
	s.handlers = h
	s.handlersMu.Unlock()
}

// Connect blocks until the broker accepts the connection and the inbound
// topics are subscribed.
func (s *RealSession) Connect(ctx context.Context) error {
	s.startOnce.Do(func() { go s.dispatchLoop() })

	if err := waitToken(ctx, s.client.Connect()); err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Broker(), err)
	}
	// onConnect subscribes too, but runs asynchronously; the twin request
	// that follows needs the response topic in place.
	if err := s.subscribe(ctx); err != nil {
		return err
	}
	log.WithField("broker", s.cfg.Broker()).Info("connected")
	return nil
}

func (s *RealSession) subscribe(ctx context.Context) error {
	filters := map[string]byte{
		methodRequestFilter: 0,
		twinResponseFilter:  0,
		twinDesiredFilter:   0,
	}
	if err := waitToken(ctx, s.client.SubscribeMultiple(filters, s.onMessage)); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// onConnect runs on every successful (re)connect.
func (s *RealSession) onConnect(c paho.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.subscribe(ctx); err != nil {
		log.WithError(err).Error("resubscribe")
	}

	// Messages published while replaying keep going to the buffer, so the
	// drain repeats until it comes back empty.
	for {
		s.mu.Lock()
		msgs := s.buf.drainAll()
		if len(msgs) == 0 {
			s.online = true
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		log.Infof("replaying %d buffered messages", len(msgs))
		for _, m := range msgs {
			if err := s.waitPublish(c.Publish(m.topic, m.qos, false, m.payload)); err != nil {
				log.WithError(err).WithField("topic", m.topic).Warn("replay failed")
			}
		}
	}
}

func (s *RealSession) connectionLost(_ paho.Client, err error) {
	s.mu.Lock()
	s.online = false
	s.mu.Unlock()
	log.WithError(err).Warn("connection lost")
}

// onMessage routes an inbound message. Twin responses complete a pending
// request directly; everything else is queued for the dispatch goroutine.
func (s *RealSession) onMessage(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	switch {
	case strings.HasPrefix(topic, methodRequestPrefix):
		name, rid, err := parseMethodTopic(topic)
		if err != nil {
			log.WithError(err).Warn("bad method request")
			return
		}
		s.enqueue(inbound{command: &Command{Name: name, Payload: payload, RequestID: rid}})

	case strings.HasPrefix(topic, twinResponsePrefix):
		status, rid, err := parseTwinResponseTopic(topic)
		if err != nil {
			log.WithError(err).Warn("bad twin response")
			return
		}
		s.mu.Lock()
		ch, ok := s.pending[rid]
		delete(s.pending, rid)
		s.mu.Unlock()
		if !ok {
			// Reported patches are answered here too; nobody waits for them.
			if status >= 300 {
				log.WithFields(logrus.Fields{"status": status, "rid": rid}).Warn("twin request rejected")
			}
			return
		}
		ch <- twinResponse{status: status, body: payload}

	case strings.HasPrefix(topic, twinDesiredPrefix):
		props, err := ParseDesired(payload, parseDesiredTopicVersion(topic))
		if err != nil {
			log.WithError(err).Warn("bad desired patch")
			return
		}
		for i := range props {
			s.enqueue(inbound{property: &props[i]})
		}

	default:
		log.WithField("topic", topic).Debug("unexpected message")
	}
}

func (s *RealSession) enqueue(in inbound) {
	select {
	case s.inbox <- in:
	default:
		log.Warn("inbox full, dropping inbound message")
	}
}

// dispatchLoop runs handlers one at a time.
func (s *RealSession) dispatchLoop() {
	for {
		select {
		case <-s.done:
			return
		case in := <-s.inbox:
			s.dispatch(in)
		}
	}
}

func (s *RealSession) dispatch(in inbound) {
	s.handlersMu.RLock()
	h := s.handlers
	s.handlersMu.RUnlock()

	switch {
	case in.command != nil:
		status, body := StatusNotImplemented, EmptyBody
		if h.Command != nil {
			status, body = h.Command(*in.command)
		}
		if err := s.respond(in.command.RequestID, status, body); err != nil {
			log.WithError(err).WithField("method", in.command.Name).Error("method response failed")
		}
	case in.property != nil && in.twin:
		if h.TwinProperty != nil {
			h.TwinProperty(*in.property)
		}
	case in.property != nil:
		if h.DesiredProperty != nil {
			h.DesiredProperty(*in.property)
		}
	}
}

func (s *RealSession) respond(rid string, status int, body []byte) error {
	if body == nil {
		body = EmptyBody
	}
	return s.publish(MethodResponseTopic(status, rid), 1, body, false)
}

// RequestTwin fetches the full twin and queues its desired properties for
// the TwinProperty handler. It blocks until the hub answers or ctx is done.
func (s *RealSession) RequestTwin(ctx context.Context) error {
	rid := uuid.NewString()
	ch := make(chan twinResponse, 1)

	s.mu.Lock()
	s.pending[rid] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, rid)
		s.mu.Unlock()
	}()

	if err := s.publish(TwinGetTopic(rid), 0, []byte{}, false); err != nil {
		return fmt.Errorf("twin get: %w", err)
	}

	var resp twinResponse
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return fmt.Errorf("twin get: %w", ctx.Err())
	}
	if resp.status != StatusOK {
		return fmt.Errorf("twin get: hub returned status %d", resp.status)
	}

	props, err := ParseTwin(resp.body)
	if err != nil {
		return err
	}
	for i := range props {
		s.enqueue(inbound{property: &props[i], twin: true})
	}
	return nil
}

// PublishTelemetry sends a reading. While offline the message is buffered.
func (s *RealSession) PublishTelemetry(name string, value float64) error {
	payload, err := FormatTelemetry(name, value)
	if err != nil {
		return fmt.Errorf("format telemetry: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return s.publish(TelemetryTopic(s.cfg.DeviceID), 0, payload, true)
}

// PublishReported sends a reported-properties patch. While offline the
// patch is buffered.
func (s *RealSession) PublishReported(name string, value any) error {
	payload, err := FormatReported(name, value)
	if err != nil {
		return fmt.Errorf("format reported property: %w", err)
	}
	return s.publish(TwinReportedTopic(uuid.NewString()), 1, payload, true)
}

// AckWritable acknowledges a writable property.
func (s *RealSession) AckWritable(name string, value any, status int, version int64) error {
	payload, err := FormatWritableAck(name, value, status, version)
	if err != nil {
		return fmt.Errorf("format writable ack: %w", err)
	}
	return s.publish(TwinReportedTopic(uuid.NewString()), 1, payload, true)
}

// publish sends a message. Buffered messages wait in the ring until the
// session is online, so they reach the hub in publish order; the others fail
// with ErrNotConnected when the socket is down.
func (s *RealSession) publish(topic string, qos byte, payload []byte, buffered bool) error {
	if !buffered {
		if !s.client.IsConnectionOpen() {
			return ErrNotConnected
		}
		return s.waitPublish(s.client.Publish(topic, qos, false, payload))
	}

	s.mu.Lock()
	if !s.online || !s.client.IsConnectionOpen() {
		s.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos})
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.waitPublish(s.client.Publish(topic, qos, false, payload))
}

func (s *RealSession) waitPublish(token paho.Token) error {
	if !token.WaitTimeout(s.cfg.PublishTimeout) {
		return fmt.Errorf("publish: %w", ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the MQTT connection is open.
func (s *RealSession) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a reconnect.
func (s *RealSession) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.len()
}

// Dropped returns the number of buffered messages lost to overflow since
// startup.
func (s *RealSession) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.dropped
}

// Close stops dispatching and disconnects from the hub.
func (s *RealSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.client.Disconnect(1000) // 1 second timeout
	})
	return nil
}

// waitToken blocks until token completes or ctx is done.
func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
