package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"motorwatch/internal/config"
	"motorwatch/internal/dto"
	"motorwatch/internal/ingest"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/service"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Publisher sends one payload to a topic.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// FrameHandler processes one frame and responds through responder.
type FrameHandler interface {
	Handle(ctx context.Context, frame *model.Frame, responder service.Responder) error
}

// Stats are counters of the MQTT transport.
type Stats struct {
	Connected bool   `json:"connected"`
	Received  uint64 `json:"received"`
	Ignored   uint64 `json:"ignored"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

// Service subscribes to the frames topic and answers requests on the same topic.
type Service struct {
	cfg       *config.Config
	handler   FrameHandler
	logger    *logger.Logger
	client    paho.Client
	publisher Publisher
	baseCtx   context.Context

	mu    sync.RWMutex
	stats Stats
}

// NewService creates the transport. Call Connect to start receiving.
func NewService(cfg *config.Config, handler FrameHandler, logger *logger.Logger) *Service {
	return &Service{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Connect dials the broker and subscribes. The subscription is renewed on every
// reconnect. ctx bounds the lifetime of message processing.
func (s *Service) Connect(ctx context.Context) error {
	s.baseCtx = ctx

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", s.cfg.MQTTBrokerHost, s.cfg.MQTTBrokerPort))
	opts.SetClientID(s.cfg.MQTTClientID)
	if s.cfg.MQTTUsername != "" {
		opts.SetUsername(s.cfg.MQTTUsername)
		opts.SetPassword(s.cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// Frames are independent; let paho run handlers concurrently.
	opts.SetOrderMatters(false)

	opts.OnConnect = func(c paho.Client) {
		s.setConnected(true)
		s.logger.Info("📡 MQTT connected to %s:%d", s.cfg.MQTTBrokerHost, s.cfg.MQTTBrokerPort)
		token := c.Subscribe(s.cfg.MQTTTopic, byte(s.cfg.MQTTQoS), s.messageHandler)
		if !token.WaitTimeout(connectTimeout) {
			s.logger.Error("MQTT subscription to %s timed out", s.cfg.MQTTTopic)
			return
		}
		if err := token.Error(); err != nil {
			s.logger.Error("MQTT subscription to %s failed: %v", s.cfg.MQTTTopic, err)
			return
		}
		s.logger.Info("📡 Subscribed to %s", s.cfg.MQTTTopic)
	}

	opts.OnConnectionLost = func(c paho.Client, err error) {
		s.setConnected(false)
		s.logger.Warning("MQTT connection lost, will auto-reconnect: %v", err)
	}

	s.client = paho.NewClient(opts)
	s.publisher = &pahoPublisher{client: s.client}

	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return &model.TransportFault{Transport: model.TransportMQTT, Err: errors.New("mqtt connection timeout")}
	}
	if err := token.Error(); err != nil {
		return &model.TransportFault{Transport: model.TransportMQTT, Err: errors.Wrap(err, "mqtt connection failed")}
	}
	return nil
}

// Disconnect closes the broker connection.
func (s *Service) Disconnect() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.MQTTTopic).WaitTimeout(publishTimeout)
		s.client.Disconnect(250)
		s.logger.Info("MQTT disconnected")
	}
	s.setConnected(false)
}

func (s *Service) messageHandler(_ paho.Client, msg paho.Message) {
	s.HandleMessage(s.baseCtx, msg.Payload())
}

// HandleMessage processes one inbound payload. Non-request messages and
// devices outside the allow-list are dropped silently; every recognized
// request gets exactly one response.
func (s *Service) HandleMessage(ctx context.Context, payload []byte) {
	s.count(func(st *Stats) { st.Received++ })

	frame, deviceID, ok, err := ingest.FromMQTT(payload, s.cfg.DeviceAllowed, time.Now().UTC())
	if !ok {
		s.count(func(st *Stats) { st.Ignored++ })
		if err != nil {
			s.logger.Warning("Dropping malformed MQTT message: %v", err)
		}
		return
	}

	responder := &Responder{service: s}
	if err != nil {
		s.logger.Warning("Rejected MQTT request from %s: %v", deviceID, err)
		responder.send(dto.NewErrorResponse(deviceID, err))
		return
	}
	defer frame.Close()

	if err := s.handler.Handle(ctx, frame, responder); err != nil {
		s.logger.Error("Handling MQTT frame from %s failed: %v", deviceID, err)
	}
}

// Stats returns a snapshot of the transport counters.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Service) setConnected(connected bool) {
	s.count(func(st *Stats) { st.Connected = connected })
}

func (s *Service) count(update func(*Stats)) {
	s.mu.Lock()
	update(&s.stats)
	s.mu.Unlock()
}

// Responder publishes results for MQTT frames back on the frames topic.
type Responder struct {
	service *Service
}

func (r *Responder) Transport() model.Transport { return model.TransportMQTT }

// Respond publishes the result, or the error when processing failed.
// Publish failures are logged only.
func (r *Responder) Respond(_ context.Context, frame *model.Frame, result *model.Result, err error) error {
	if err != nil {
		r.send(dto.NewErrorResponse(frame.DeviceID, err))
		return nil
	}
	r.send(dto.NewClassifyResponse(frame.DeviceID, r.service.cfg.TargetLabel, result))
	return nil
}

func (r *Responder) send(resp dto.ClassifyResponse) {
	s := r.service
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to marshal MQTT response: %v", err)
		return
	}

	if s.publisher == nil {
		s.logger.Error("MQTT response for %s dropped: not connected", resp.DeviceID)
		s.count(func(st *Stats) { st.Errors++ })
		return
	}

	if err := s.publisher.Publish(s.cfg.MQTTTopic, byte(s.cfg.MQTTQoS), payload); err != nil {
		s.logger.Error("Failed to publish response for %s: %v", resp.DeviceID, err)
		s.count(func(st *Stats) { st.Errors++ })
		return
	}
	s.count(func(st *Stats) { st.Published++ })
}

type pahoPublisher struct {
	client paho.Client
}

func (p *pahoPublisher) Publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}
