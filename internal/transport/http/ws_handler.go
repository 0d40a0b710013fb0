package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wireroom-server/internal/config"
	"github.com/vovakirdan/wireroom-server/internal/core"
	"github.com/vovakirdan/wireroom-server/internal/metrics"
)

const writeTimeout = 10 * time.Second

var errKicked = errors.New("client kicked")

// WSOptions tune one WebSocket session.
type WSOptions struct {
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	SendBuffer           int
	PingInterval         time.Duration
	Proxied              bool
	RealIPHeader         string
}

// WSOptionsFrom picks the transport settings out of cfg.
func WSOptionsFrom(cfg config.Config) WSOptions {
	return WSOptions{
		MaxMessageBytes:      cfg.MaxMessageBytes,
		MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
		SendBuffer:           cfg.SendBuffer,
		PingInterval:         cfg.PingInterval,
		Proxied:              cfg.Proxied,
		RealIPHeader:         cfg.RealIPHeader,
	}
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub     Hub
	opts    WSOptions
	metrics *metrics.Metrics
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub Hub, opts WSOptions, m *metrics.Metrics, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, opts: opts, metrics: m, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ip := clientIP(r, h.opts.Proxied, h.opts.RealIPHeader)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Str("ip", ip).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), ip, h.opts.SendBuffer)
	if err := h.hub.RegisterClient(client); err != nil {
		h.log.Warn().Err(err).Str("ip", ip).Msg("hub rejected client")
		conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}
	defer func() {
		if err := h.hub.UnregisterClient(client); err != nil && !errors.Is(err, core.ErrHubStopped) {
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("unregister client")
		}
	}()
	h.metrics.Connection()
	h.log.Debug().Str("client_id", client.ID).Str("ip", ip).Msg("ws connected")

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.readLoop(ctx, conn, client) })
	g.Go(func() error { return h.writeLoop(ctx, conn, client) })
	err = g.Wait()

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case errors.Is(err, errKicked):
		h.log.Debug().Str("client_id", client.ID).Msg("ws kicked")
		return
	case errors.Is(err, core.ErrHubStopped):
		status = websocket.StatusGoingAway
		reason = "server shutting down"
	case err != nil && !errors.Is(err, context.Canceled):
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		} else {
			status = websocket.StatusInternalError
			reason = "internal error"
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}
	h.log.Debug().Str("client_id", client.ID).Int("status", int(status)).Msg("ws disconnected")

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.MaxMessagesPerSecond, nil)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageBinary {
			continue
		}
		if !limiter.allow() {
			h.metrics.RateLimited()
			h.log.Debug().Str("client_id", client.ID).Msg("message dropped by rate limit")
			continue
		}
		if err := h.hub.HandleMessage(client, data); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	var ping <-chan time.Time
	if h.opts.PingInterval > 0 {
		ticker := time.NewTicker(h.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-client.Send():
			if err := writeFrame(ctx, conn, frame); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws frame")
				return err
			}
		case <-client.Done():
			// Close before the read loop's context is cancelled so the peer
			// sees the reason.
			conn.Close(websocket.StatusGoingAway, "disconnected by server")
			return errKicked
		case <-ping:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("ws ping failed")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, frame)
}

// clientIP returns the address identities are derived from. Behind a proxy
// the last entry of header is trusted; it is the one the proxy appended.
func clientIP(r *stdhttp.Request, proxied bool, header string) string {
	if proxied && header != "" {
		if v := r.Header.Get(header); v != "" {
			parts := strings.Split(v, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				if ip := strings.TrimSpace(parts[i]); ip != "" {
					return ip
				}
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
