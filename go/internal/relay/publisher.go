// Package relay mirrors routed room frames onto NATS so other local processes (recorders,
// bots, dashboards) can follow the room without opening their own WebSocket.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomsync/go/internal/protocol"
	"github.com/mcdev12/roomsync/go/internal/router"
)

const defaultFlushTimeout = 5 * time.Second

// PublisherConfig holds configuration for the NATS relay
type PublisherConfig struct {
	URL           string
	SubjectPrefix string // Subjects are <prefix>.<room>.<frame type>
	StreamName    string // When set, frames are published to this JetStream stream
	MaxAge        time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultPublisherConfig returns default relay configuration
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "roomsync",
		MaxAge:        24 * time.Hour,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher publishes frames to NATS
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config PublisherConfig
}

// NewPublisher connects to NATS and, if a stream is configured, makes sure it exists
func NewPublisher(ctx context.Context, config PublisherConfig) (*Publisher, error) {
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = DefaultPublisherConfig().SubjectPrefix
	}

	opts := []nats.Option{
		nats.Name("roomsync-relay"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := &Publisher{nc: nc, config: config}

	if config.StreamName != "" {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:        config.StreamName,
			Description: "Room frames mirrored by roomsync clients",
			Subjects:    []string{config.SubjectPrefix + ".>"},
			MaxAge:      config.MaxAge,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
		}
		p.js = js
		log.Info().Str("stream", config.StreamName).Msg("relay publishing to JetStream")
	}

	return p, nil
}

// Subject returns the subject of a frame type in a room
func (p *Publisher) Subject(roomID string, frameType protocol.FrameType) string {
	return p.config.SubjectPrefix + "." + subjectToken(roomID) + "." + subjectToken(string(frameType))
}

// subjectToken makes s usable as a single subject token
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Publish publishes frame under roomID. The frame's room_id is filled in when absent.
func (p *Publisher) Publish(roomID string, frame *protocol.Frame) error {
	out := *frame
	if out.RoomID == "" {
		out.RoomID = roomID
	}
	data, err := protocol.Encode(out)
	if err != nil {
		return err
	}

	subject := p.Subject(roomID, frame.Type)
	if p.js != nil {
		if _, err := p.js.PublishAsync(subject, data); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		return nil
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Tap returns a router tap that publishes the frames of roomID
func (p *Publisher) Tap(roomID string) router.Tap {
	return router.TapFunc(func(frame *protocol.Frame) {
		if err := p.Publish(roomID, frame); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("failed to relay frame")
		}
	})
}

// Flush waits until published frames reached the server. A context without a deadline
// is bounded by defaultFlushTimeout.
func (p *Publisher) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	if p.js != nil {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if err := p.Flush(context.Background()); err != nil {
		log.Warn().Err(err).Msg("relay flush failed")
	}
	p.nc.Close()
}
