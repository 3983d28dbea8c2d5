package peer

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/logger"
	gekosync "github.com/julianstephens/geko/internal/sync"
)

// ErrNotConnected is returned by Send when no peer is attached.
var ErrNotConnected = errors.New("peer not connected")

// Handler receives each inbound text frame.
type Handler func(ctx context.Context, data []byte) error

// Link is a single websocket connection to the paired device. It can accept
// the connection (ServeHTTP) or dial it (Dial). A newer connection replaces
// the current one.
type Link struct {
	secret string

	// OnReceive handles inbound frames. Frames arriving while it is nil are
	// dropped.
	OnReceive Handler

	// OnReachabilityChange is called after the link attaches or detaches.
	OnReachabilityChange func(reachable bool)

	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex
}

var _ gekosync.PeerChannel = (*Link)(nil)

func NewLink(secret string) *Link {
	return &Link{
		secret: secret,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: constants.PeerHandshakeTimeout,
			// Only loopback clients holding the lockfile secret get this far.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Secret is the value inbound connections must present.
func (l *Link) Secret() string {
	return l.secret
}

// IsReachable reports whether a peer connection is attached.
func (l *Link) IsReachable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Send writes m as one text frame. The context deadline bounds the write.
func (l *Link) Send(ctx context.Context, m gekosync.Message) error {
	data, err := gekosync.EncodeMessage(m)
	if err != nil {
		return err
	}

	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.DefaultSendTimeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		l.detach(conn)
		return fmt.Errorf("failed to send %s: %w", m.Action(), err)
	}
	logger.Debug("Sent peer message", "action", m.Action(), "bytes", len(data))
	return nil
}

// ServeHTTP accepts a peer connection. The upgrade request must carry the
// shared secret header; anything else is rejected with 401.
func (l *Link) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(constants.PeerSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(l.secret)) != 1 {
		logger.Warn("Rejected peer connection", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade peer connection", "error", err)
		return
	}
	logger.Info("Peer connected", "remote", r.RemoteAddr)

	if !l.attach(conn) {
		return
	}
	l.readLoop(r.Context(), conn)
}

// Dial connects to a peer listening at url (ws://host:port/) and starts
// reading from it in the background. The link's own secret is presented.
func (l *Link) Dial(ctx context.Context, url string) error {
	return l.dial(ctx, url, l.secret)
}

// DialLockfile connects l to the peer advertised by the lockfile in dir,
// presenting the secret the lockfile carries.
func (l *Link) DialLockfile(ctx context.Context, dir string) error {
	lf, err := ReadLockfile(dir)
	if err != nil {
		return err
	}
	return l.dial(ctx, fmt.Sprintf("ws://127.0.0.1:%d/", lf.Port), lf.Secret)
}

func (l *Link) dial(ctx context.Context, url, secret string) error {
	dialer := websocket.Dialer{HandshakeTimeout: constants.PeerHandshakeTimeout}
	header := http.Header{}
	header.Set(constants.PeerSecretHeader, secret)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("peer rejected secret: %w", err)
		}
		return fmt.Errorf("failed to dial peer: %w", err)
	}
	logger.Info("Connected to peer", "url", url)

	if !l.attach(conn) {
		return errors.New("link is closed")
	}
	go l.readLoop(context.Background(), conn)
	return nil
}

// Close drops the current connection. The link cannot be reused.
func (l *Link) Close() error {
	l.mu.Lock()
	l.closed = true
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		l.detach(conn)
	}
	return nil
}

func (l *Link) attach(conn *websocket.Conn) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return false
	}
	prev := l.conn
	l.conn = conn
	l.mu.Unlock()

	if prev != nil {
		logger.Debug("Replacing previous peer connection")
		prev.Close()
	}
	l.notify(true)
	return true
}

// detach closes conn and clears it if it is still the current connection.
func (l *Link) detach(conn *websocket.Conn) {
	l.mu.Lock()
	current := l.conn == conn
	if current {
		l.conn = nil
	}
	l.mu.Unlock()

	conn.Close()
	if current {
		logger.Info("Peer disconnected")
		l.notify(false)
	}
}

func (l *Link) notify(reachable bool) {
	if l.OnReachabilityChange != nil {
		l.OnReachabilityChange(reachable)
	}
}

func (l *Link) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer l.detach(conn)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Peer read ended", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			logger.Debug("Ignoring non-text peer frame", "type", kind)
			continue
		}
		if l.OnReceive == nil {
			logger.Debug("No receiver, dropping peer frame")
			continue
		}
		if err := l.OnReceive(ctx, data); err != nil {
			logger.Debug("Peer frame not applied", "error", err)
		}
	}
}

// Serve runs an HTTP server for l on ln until ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, l *Link) error {
	srv := &http.Server{
		Handler:           l,
		ReadHeaderTimeout: constants.PeerHandshakeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultSendTimeout)
		defer cancel()
		l.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down peer server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
