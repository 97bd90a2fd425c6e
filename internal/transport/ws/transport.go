// Package ws is the WebSocket event transport of a session: one connection
// per document to the server's events endpoint.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/pkg/api"
)

const (
	// DefaultReadLimit максимальный размер входящего сообщения
	DefaultReadLimit = 1 << 20
	// ActorParam параметр запроса с ID участника
	ActorParam = "actor"

	inboundBuffer = 256
	writeTimeout  = 5 * time.Second
)

// ErrTransportClosed транспорт уже закрыт
var ErrTransportClosed = errors.New("transport closed")

// EventsURL строит адрес WebSocket событий документа из адреса HTTP API
func EventsURL(serverURL, documentID, actorID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path += api.EventsPath(documentID)
	u.RawPath = ""
	q := u.Query()
	q.Set(ActorParam, actorID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Transport WebSocket подключение к событиям документа. Реализует session.Transport.
type Transport struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	inbound chan []byte
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// Dial подключается к событиям документа documentID от имени actorID
func Dial(ctx context.Context, serverURL, documentID, actorID string, logger *slog.Logger) (*Transport, error) {
	target, err := EventsURL(serverURL, documentID, actorID)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return nil, &models.TransportError{Op: "dial events", Err: err}
	}
	conn.SetReadLimit(DefaultReadLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:    conn,
		logger:  logger.With("document_id", documentID),
		inbound: make(chan []byte, inboundBuffer),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go t.readLoop(readCtx)

	t.logger.Info("Events transport connected", "url", target)
	return t, nil
}

func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.done)
	defer close(t.inbound)

	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
				t.logger.Info("Events transport closed by server")
			default:
				t.logger.Warn("Events transport read failed", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			t.logger.Debug("Ignoring non-text message", "type", typ)
			continue
		}

		select {
		case t.inbound <- data:
		case <-ctx.Done():
			return
		}
	}
}

// Send отправляет событие на сервер
func (t *Transport) Send(ctx context.Context, ev models.Event) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, t.conn, ev); err != nil {
		return &models.TransportError{Op: "send " + string(ev.Kind), Err: err}
	}
	return nil
}

// Inbound поток сырых входящих событий; закрывается при обрыве соединения
func (t *Transport) Inbound() <-chan []byte {
	return t.inbound
}

// Close закрывает соединение. Повторный вызов ничего не делает.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		// рукопожатие закрытия дочитывает readLoop
		if err := t.conn.Close(websocket.StatusNormalClosure, "session closed"); err != nil {
			t.logger.Debug("Events transport close handshake failed", "error", err)
		}
		t.cancel()
		<-t.done
	})
	return nil
}
