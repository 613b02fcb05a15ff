package mailer

import (
	"context"

	"smtp-relay/internal/common/logging"
)

// Recorder receives the outcome of every send attempt
type Recorder interface {
	RecordSent(ctx context.Context)
	RecordFailed(ctx context.Context)
}

// SendResult reports a completed send attempt
type SendResult struct {
	Recipients int      `json:"recipients"`
	DebugLog   []string `json:"debug_log,omitempty"`
}

// Sender composes messages and delivers them through a freshly configured
// transport, recording the outcome in the statistics.
type Sender struct {
	configurator *Configurator
	stats        Recorder
	logger       logging.Logger

	// newTransport is an injection point for tests
	newTransport func() Transport
}

// NewSender creates a sender. stats may be nil when no statistics are kept.
func NewSender(configurator *Configurator, stats Recorder, logger logging.Logger) *Sender {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Sender{
		configurator: configurator,
		stats:        stats,
		logger:       logger,
		newTransport: func() Transport { return NewSMTPTransport(logger) },
	}
}

// WithTransportFactory overrides how transports are created. Tests use it
// to substitute a recording transport.
func (s *Sender) WithTransportFactory(factory func() Transport) *Sender {
	s.newTransport = factory
	return s
}

// Send composes and delivers one message. Configuration failures (including
// an unavailable OAuth2 credential) abort before any connection is opened.
func (s *Sender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if msg.From == "" {
		from, name, err := s.configurator.FromAddress(ctx)
		if err != nil {
			return nil, err
		}
		msg.From = from
		if msg.FromName == "" {
			msg.FromName = name
		}
	}

	raw, err := msg.Build()
	if err != nil {
		return nil, err
	}

	transport := s.newTransport()
	if err := s.configurator.Configure(ctx, transport); err != nil {
		s.logger.Error("Send aborted during transport configuration", err)
		return nil, err
	}

	if err := transport.Send(ctx, msg.From, msg.To, raw); err != nil {
		if s.stats != nil {
			s.stats.RecordFailed(ctx)
		}
		s.logger.Error("Send failed", err,
			logging.Int("recipients", len(msg.To)))
		return &SendResult{Recipients: len(msg.To), DebugLog: transport.DebugLog()}, err
	}

	if s.stats != nil {
		s.stats.RecordSent(ctx)
	}
	s.logger.Info("Message sent",
		logging.Int("recipients", len(msg.To)))

	return &SendResult{Recipients: len(msg.To), DebugLog: transport.DebugLog()}, nil
}
