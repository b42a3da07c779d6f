// Package natsbridge mirrors timer events onto NATS subjects and accepts
// commands published to NATS, for consumers that do not hold a websocket.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clementchew02/Timer/internal/engine"
	"github.com/clementchew02/Timer/internal/lobby"
	"github.com/clementchew02/Timer/internal/types"
	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Config struct {
	URL           string
	Prefix        string // events go to <prefix>.<event type>, commands come from <prefix>.commands
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Prefix:        "timer",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Sender is the part of the lobby the bridge feeds commands into.
type Sender interface {
	Send(ctx context.Context, m lobby.Msg) error
}

type publisher interface {
	Publish(subject string, data []byte) error
}

type Bridge struct {
	nc     *nats.Conn
	pub    publisher
	sub    *nats.Subscription
	prefix string
	log    *zap.Logger
}

func Connect(cfg Config, log *zap.Logger) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name("timer-server"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	b := newBridge(nc, cfg.Prefix, log)
	b.nc = nc
	return b, nil
}

func newBridge(pub publisher, prefix string, log *zap.Logger) *Bridge {
	return &Bridge{pub: pub, prefix: prefix, log: log}
}

func (b *Bridge) EventSubject(t engine.EventType) string { return b.prefix + "." + string(t) }

func (b *Bridge) CommandSubject() string { return b.prefix + ".commands" }

// Publish implements engine.Sink. Failures are logged; the lobby never
// waits on NATS.
func (b *Bridge) Publish(e engine.Event) {
	payload, err := json.Marshal(types.FromEvent(e))
	if err != nil {
		b.log.Error("encode event for NATS", zap.Error(err))
		return
	}
	if err := b.pub.Publish(b.EventSubject(e.Type), payload); err != nil {
		b.log.Warn("publish event to NATS", zap.String("room", string(e.Room)), zap.Error(err))
	}
}

// Subscribe forwards commands from the command subject to s.
func (b *Bridge) Subscribe(s Sender) error {
	if b.nc == nil {
		return fmt.Errorf("subscribe %s: not connected", b.CommandSubject())
	}
	sub, err := b.nc.Subscribe(b.CommandSubject(), b.commandHandler(s))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.CommandSubject(), err)
	}
	b.sub = sub
	b.log.Info("listening for NATS commands", zap.String("subject", b.CommandSubject()))
	return nil
}

func (b *Bridge) commandHandler(s Sender) nats.MsgHandler {
	return func(m *nats.Msg) {
		var cm types.ClientMessage
		if err := json.Unmarshal(m.Data, &cm); err != nil {
			b.log.Debug("bad json on command subject", zap.Error(err))
			return
		}
		if cm.Type == "" {
			cm.Type = types.TypeCommand
		}
		id, cmd, ok := types.ToCommand(cm)
		if !ok {
			b.log.Debug("unknown message type on command subject", zap.String("type", cm.Type))
			return
		}
		if err := s.Send(context.Background(), lobby.FromClient{Room: id, Command: cmd}); err != nil {
			b.log.Debug("drop NATS command", zap.Error(err))
		}
	}
}

func (b *Bridge) Close() error {
	var err error
	if b.sub != nil {
		err = multierr.Append(err, b.sub.Unsubscribe())
	}
	if b.nc != nil {
		err = multierr.Append(err, b.nc.Drain())
	}
	return err
}
