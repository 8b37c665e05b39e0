package poller

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const ReconnectDelay = 5 * time.Second

// WebsocketURL turns a server base URL into its /ws endpoint.
func WebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String(), nil
}

// WatchPush listens on the server's websocket and calls p.Trigger for every
// message received. Dropped connections are retried after delay until ctx
// is done. Pushes only shorten the wait; polling remains the source of truth.
func WatchPush(ctx context.Context, wsURL string, p *Poller, delay time.Duration, logger *slog.Logger) error {
	if delay <= 0 {
		delay = ReconnectDelay
	}
	for {
		if err := listen(ctx, wsURL, p); err != nil && ctx.Err() == nil {
			logger.Debug("push channel unavailable", "url", wsURL, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func listen(ctx context.Context, wsURL string, p *Poller) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
		p.Trigger()
	}
}
