package apns

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

const dialTimeout = 20 * time.Second

// sessionManager owns the single HTTP/2 connection to the authority and the
// keepalive goroutine bound to it. A keepalive never outlives its connection.
type sessionManager struct {
	authority      string
	pingInterval   time.Duration
	requestTimeout time.Duration
	transport      *http2.Transport
	logger         *slog.Logger

	// Replaced in tests.
	dial func(ctx context.Context) (net.Conn, error)
	ping func(ctx context.Context, cc *http2.ClientConn) error

	mu        sync.Mutex
	conn      *http2.ClientConn
	keepalive *keepalive
}

type keepalive struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the keepalive and waits for its goroutine to exit, so no ping
// can fire after stop returns.
func (k *keepalive) stop() {
	k.cancel()
	<-k.done
}

func newSessionManager(authority string, tlsConfig *tls.Config, pingInterval, requestTimeout time.Duration, logger *slog.Logger) *sessionManager {
	m := &sessionManager{
		authority:      authority,
		pingInterval:   pingInterval,
		requestTimeout: requestTimeout,
		// Strict stream limits make RoundTrip wait for a free stream instead
		// of reporting the connection as unable to take requests.
		transport: &http2.Transport{StrictMaxConcurrentStreams: true},
		logger:    logger,
	}
	m.dial = m.dialTLS(tlsConfig)
	m.ping = func(ctx context.Context, cc *http2.ClientConn) error {
		return cc.Ping(ctx)
	}
	return m
}

func (m *sessionManager) dialTLS(base *tls.Config) func(ctx context.Context) (net.Conn, error) {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	cfg.NextProtos = []string{http2.NextProtoTLS}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(m.authority); err == nil {
			cfg.ServerName = host
		}
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    cfg,
	}

	return func(ctx context.Context) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, "tcp", m.authority)
		if err != nil {
			return nil, err
		}
		if proto := conn.(*tls.Conn).ConnectionState().NegotiatedProtocol; proto != http2.NextProtoTLS {
			_ = conn.Close()
			return nil, fmt.Errorf("authority %s negotiated %q instead of h2", m.authority, proto)
		}
		return conn, nil
	}
}

// ensureConnected returns the live session, establishing a new one when none
// exists or the held one is closed or going away. Reconnection only ever
// happens here, on demand.
func (m *sessionManager) ensureConnected(ctx context.Context) (*http2.ClientConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		if usable(m.conn) {
			return m.conn, nil
		}
		m.logger.Info("APNs session is no longer usable, reconnecting", "authority", m.authority)
		m.stopKeepaliveLocked()
		go m.retire(m.conn)
		m.conn = nil
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", m.authority, err)
	}
	cc, err := m.transport.NewClientConn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("http2 handshake with %s: %w", m.authority, err)
	}

	m.conn = cc
	m.startKeepaliveLocked(cc)
	m.logger.Info("APNs session established", "authority", m.authority, "ping_interval", m.pingInterval)
	return cc, nil
}

// shutdown stops the keepalive and closes the session. Without a session it
// does nothing.
func (m *sessionManager) shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopKeepaliveLocked()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func (m *sessionManager) startKeepaliveLocked(cc *http2.ClientConn) {
	ctx, cancel := context.WithCancel(context.Background())
	k := &keepalive{cancel: cancel, done: make(chan struct{})}
	m.keepalive = k

	go func() {
		defer close(k.done)
		ticker := time.NewTicker(m.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if cc.State().Closed {
				return
			}
			pingCtx, pingCancel := context.WithTimeout(ctx, m.pingInterval)
			if err := m.ping(pingCtx, cc); err != nil {
				m.logger.Debug("APNs keepalive ping failed", "err", err)
			}
			pingCancel()
		}
	}()
}

func (m *sessionManager) stopKeepaliveLocked() {
	if m.keepalive == nil {
		return
	}
	m.keepalive.stop()
	m.keepalive = nil
}

// retire lets in-flight streams on a replaced session finish before closing it.
func (m *sessionManager) retire(cc *http2.ClientConn) {
	ctx, cancel := context.WithTimeout(context.Background(), m.requestTimeout)
	defer cancel()
	if err := cc.Shutdown(ctx); err != nil {
		_ = cc.Close()
	}
}

func usable(cc *http2.ClientConn) bool {
	st := cc.State()
	return !st.Closed && !st.Closing
}
