// ABOUTME: Live websocket channel with auth handshake and request dispatch
// ABOUTME: Each connection runs one read loop and one writer goroutine

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/2389/amity-gateway/internal/apperr"
	"github.com/2389/amity-gateway/internal/auth"
	"github.com/2389/amity-gateway/internal/config"
	"github.com/2389/amity-gateway/internal/dedupe"
	"github.com/2389/amity-gateway/internal/registry"
	"github.com/2389/amity-gateway/internal/store"
)

// Envelope is the wire frame for every channel message in both directions.
// Requests carry a client-chosen ID that the matching ack echoes back.
type Envelope struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ackFrame acknowledges a request. Exactly one ack is sent per request,
// success or failure.
type ackFrame struct {
	ID    string    `json:"id,omitempty"`
	Event string    `json:"event"`
	OK    bool      `json:"ok"`
	Data  any       `json:"data,omitempty"`
	Error *ackError `json:"error,omitempty"`
}

type ackError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// pushFrame is a server-initiated event for the counterpart of a mutation.
type pushFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type authPayload struct {
	Token string `json:"token"`
}

// Channel is one authenticated live connection. It satisfies
// registry.Session so the notifier can deliver events to it.
type Channel struct {
	key    string
	userID string
	conn   *websocket.Conn

	outbound chan any
	closed   chan struct{}
	once     sync.Once

	logger *slog.Logger
}

// Key returns the unique id of this connection instance.
func (c *Channel) Key() string { return c.key }

// UserID returns the authenticated owner.
func (c *Channel) UserID() string { return c.userID }

// Deliver enqueues a push event without blocking. A full outbound queue
// drops the event; the client reconciles via the fallback API.
func (c *Channel) Deliver(event string, payload any) bool {
	select {
	case c.outbound <- pushFrame{Event: event, Data: payload}:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// send enqueues an ack, blocking until the writer takes it or the channel
// closes. Acks are never dropped while the connection lives.
func (c *Channel) send(frame any) {
	select {
	case c.outbound <- frame:
	case <-c.closed:
	}
}

// close marks the channel closed exactly once.
func (c *Channel) close() {
	c.once.Do(func() { close(c.closed) })
}

// ChannelServer upgrades HTTP requests to live channels and runs the
// per-channel state machine: Unauthenticated, then Authenticated, then
// Closed. The first frame must be an auth envelope; anything else drops
// the connection.
type ChannelServer struct {
	verifier auth.TokenVerifier
	users    store.UserStore
	registry *registry.Registry
	ops      *Ops
	dedupe   *dedupe.Cache
	cfg      config.ChannelConfig
	logger   *slog.Logger
}

// NewChannelServer creates the live-channel endpoint handler.
func NewChannelServer(verifier auth.TokenVerifier, users store.UserStore, reg *registry.Registry, ops *Ops, dedupeCache *dedupe.Cache, cfg config.ChannelConfig, logger *slog.Logger) *ChannelServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelServer{
		verifier: verifier,
		users:    users,
		registry: reg,
		ops:      ops,
		dedupe:   dedupeCache,
		cfg:      cfg,
		logger:   logger.With("component", "channel"),
	}
}

// ServeHTTP handles GET /channel websocket upgrades.
func (s *ChannelServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin checks are a deployment concern; identity is enforced
		// in-band by the auth frame
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	userID, err := s.authenticate(r.Context(), conn)
	if err != nil {
		s.logger.Info("channel auth failed", "error", err)
		_ = conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	ch := &Channel{
		key:      uuid.New().String(),
		userID:   userID,
		conn:     conn,
		outbound: make(chan any, s.cfg.SendBuffer),
		closed:   make(chan struct{}),
		logger:   s.logger.With("user_id", userID),
	}

	if previous := s.registry.Register(ch); previous != nil {
		if prev, ok := previous.(*Channel); ok {
			prev.close()
			_ = prev.conn.Close(websocket.StatusNormalClosure, "superseded by new connection")
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writeLoop(ctx, ch)

	s.readLoop(ctx, ch)

	// Disconnect teardown happens exactly once per connection; a stale
	// unregister after a reconnect is a no-op inside the registry
	s.registry.Unregister(ch)
	ch.close()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// authenticate reads the first frame, which must be an auth envelope with a
// valid bearer token for an existing user.
func (s *ChannelServer) authenticate(ctx context.Context, conn *websocket.Conn) (string, error) {
	authCtx, cancel := context.WithTimeout(ctx, s.cfg.AuthTimeout)
	defer cancel()

	var env Envelope
	if err := wsjson.Read(authCtx, conn, &env); err != nil {
		return "", err
	}

	if env.Event != EventAuth {
		return "", errors.New("first frame must be auth")
	}

	var payload authPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return "", errors.New("malformed auth payload")
	}

	userID, err := s.verifier.Verify(payload.Token)
	if err != nil {
		return "", err
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return "", errors.New("unknown user")
	}

	ack := ackFrame{ID: env.ID, Event: "ack", OK: true, Data: map[string]any{"user_id": userID}}
	writeCtx, cancelWrite := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancelWrite()
	if err := wsjson.Write(writeCtx, conn, ack); err != nil {
		return "", err
	}

	return userID, nil
}

// writeLoop owns all writes after the handshake: acks, pushes, and pings.
func (s *ChannelServer) writeLoop(ctx context.Context, ch *Channel) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-ch.outbound:
			writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := wsjson.Write(writeCtx, ch.conn, frame)
			cancel()
			if err != nil {
				ch.logger.Debug("write failed, closing channel", "error", err)
				ch.close()
				_ = ch.conn.CloseNow()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := ch.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				ch.close()
				_ = ch.conn.CloseNow()
				return
			}
		case <-ch.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop processes request frames to completion, one at a time, until the
// connection drops. Requests from other channels run concurrently; this
// channel only ever has one in flight.
func (s *ChannelServer) readLoop(ctx context.Context, ch *Channel) {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, ch.conn, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				ch.logger.Debug("channel closed by client")
			} else if ctx.Err() == nil {
				ch.logger.Debug("channel read failed", "error", err)
			}
			return
		}

		s.dispatch(ctx, ch, &env)
	}
}

// dispatch executes one request envelope and always answers with an ack.
// Domain failures never terminate the channel.
func (s *ChannelServer) dispatch(ctx context.Context, ch *Channel, env *Envelope) {
	if env.ID != "" && s.dedupe.CheckAndMark(channelDedupeKey(ch.userID, env.ID)) {
		ch.send(ackFrame{ID: env.ID, Event: "ack", OK: false, Error: &ackError{
			Code:    string(apperr.CodeAlreadyProcessed),
			Message: "request already processed",
		}})
		return
	}

	data, err := s.execute(ctx, ch.userID, env)
	if err != nil {
		ch.send(ackFrame{ID: env.ID, Event: "ack", OK: false, Error: &ackError{
			Code:    string(apperr.CodeOf(err)),
			Message: apperr.MessageOf(err),
		}})
		return
	}

	ch.send(ackFrame{ID: env.ID, Event: "ack", OK: true, Data: data})
}

// execute routes an envelope to the shared operation for its event.
func (s *ChannelServer) execute(ctx context.Context, actorID string, env *Envelope) (any, error) {
	switch env.Event {
	case EventFriendshipSendRequest:
		var p sendRequestPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.SendFriendRequest(ctx, actorID, p)

	case EventFriendshipAccept:
		var p friendshipActionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.AcceptFriendRequest(ctx, actorID, p)

	case EventFriendshipReject:
		var p friendshipActionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.RejectFriendRequest(ctx, actorID, p)

	case EventFriendshipCancel:
		var p friendshipActionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.CancelFriendRequest(ctx, actorID, p)

	case EventMessageSend:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.SendMessage(ctx, actorID, p)

	case EventMessageDelete:
		var p messageActionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.DeleteMessage(ctx, actorID, p)

	case EventMessageMarkRead:
		var p messageActionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.MarkMessageRead(ctx, actorID, p)

	case EventMessageMarkConversationRead:
		var p conversationReadPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, malformedPayload(err)
		}
		return s.ops.MarkConversationRead(ctx, actorID, p)

	default:
		return nil, apperr.New(apperr.CodeNotFound, "unknown event: "+env.Event)
	}
}

func malformedPayload(err error) error {
	return apperr.Wrap(apperr.CodeBadRequest, "malformed request payload", err)
}

// channelDedupeKey scopes request IDs per user so two users reusing the
// same client-side id never collide.
func channelDedupeKey(userID, envelopeID string) string {
	return userID + ":" + envelopeID
}
