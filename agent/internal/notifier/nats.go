package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/teamalert/teamalert/agent/internal/alert"
)

// MsgPublisher is the part of *nats.Conn the NATS sink needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATS publishes change events as JSON to <prefix>.<alert>.
type NATS struct {
	pub    MsgPublisher
	prefix string
}

// NewNATS returns a NATS sink publishing through pub.
func NewNATS(pub MsgPublisher, prefix string) *NATS {
	return &NATS{pub: pub, prefix: strings.TrimSuffix(prefix, ".")}
}

// Name returns "nats".
func (n *NATS) Name() string { return "nats" }

// Send publishes ev. Initial events are not published.
func (n *NATS) Send(ctx context.Context, ev alert.Event) error {
	if ev.Initial() {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return n.pub.PublishMsg(&nats.Msg{
		Subject: n.Subject(ev.Alert),
		Data:    payload,
		Header:  headers(ctx, ev),
	})
}

// Subject returns the subject events of alertName are published on.
// NATS subjects cannot contain whitespace or wildcards, so those become '_'.
func (n *NATS) Subject(alertName string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '*', '>', '.':
			return '_'
		}
		return r
	}, alertName)
	if n.prefix == "" {
		return token
	}
	return n.prefix + "." + token
}

func headers(ctx context.Context, ev alert.Event) nats.Header {
	h := nats.Header{}
	h.Set("Event-Id", ev.ID)
	if deadline, ok := ctx.Deadline(); ok {
		h.Set("Deadline", deadline.UTC().Format(time.RFC3339Nano))
	}
	return h
}

// Connect dials url. The client keeps reconnecting for the life of the
// process; an unreachable server at start-up is retried in the background.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("teamalert"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("notifier: nats disconnected", "err", err)
				return
			}
			slog.Warn("notifier: nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("notifier: nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notifier: connect nats %s: %w", url, err)
	}
	return nc, nil
}
