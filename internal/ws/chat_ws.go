package ws

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"moment-chat/internal/observability"
	"moment-chat/internal/protocol"
	"moment-chat/internal/rabbitmq"
	"moment-chat/internal/registry"
	"moment-chat/internal/repositories"
)

// ChatWebSocketHandler accepts 1:1 chat channels and runs their delivery
// sessions.
type ChatWebSocketHandler struct {
	registry  *registry.Registry
	messages  repositories.DirectMessageRepository
	recents   repositories.RecentChatRepository
	users     repositories.UserRepository
	publisher rabbitmq.Publisher
	log       *zap.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(reg *registry.Registry, messages repositories.DirectMessageRepository, recents repositories.RecentChatRepository, users repositories.UserRepository, publisher rabbitmq.Publisher, log *zap.Logger) *ChatWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatWebSocketHandler{
		registry:  reg,
		messages:  messages,
		recents:   recents,
		users:     users,
		publisher: publisher,
		log:       log,
	}
}

// Handle upgrades the connection, registers the (user, target) pair and
// starts the receive loop.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	targetID, err := strconv.Atoi(c.Param("target_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	hctx, span := otel.Tracer("moment-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(hctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	s := &chatSession{
		h:        h,
		ownerID:  userID,
		peerID:   targetID,
		ownerKey: strconv.Itoa(userID),
		peerKey:  strconv.Itoa(targetID),
		conn:     conn,
		channel:  newChannel(conn),
		info:     info,
		state:    stateConnecting,
	}

	// Lifecycle of the ws connection outlives the HTTP handshake; store and
	// registry calls run on their own context.
	ctx := context.Background()
	h.registry.Register(ctx, s.ownerKey, s.peerKey, s.channel)
	s.state = stateOpen

	observability.IncWSActive("chat")
	publishWSEvent(ctx, h.publisher, "chat", s.peerKey, "ws_connect", "", info)
	h.log.Info("chat channel open",
		zap.Int("user_id", userID),
		zap.Int("target_id", targetID),
		zap.String("conn_id", info.ConnID))

	go s.run(ctx)
}

// chatSession is the per-channel delivery state machine:
// CONNECTING -> OPEN -> (CLOSED | FAILED).
type chatSession struct {
	h        *ChatWebSocketHandler
	ownerID  int
	peerID   int
	ownerKey string
	peerKey  string
	conn     *websocket.Conn
	channel  registry.Channel
	info     ConnInfo
	state    sessionState
	teardown sync.Once
}

func (s *chatSession) run(ctx context.Context) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			final := stateFailed
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				final = stateClosed
			}
			s.close(ctx, final, err.Error())
			return
		}
		if err := s.handleInbound(ctx, raw); err != nil {
			s.close(ctx, stateFailed, err.Error())
			return
		}
	}
}

// handleInbound processes one payload: normalize, live-push to the peer if a
// reverse channel exists, persist when worth storing, update both summaries.
// A returned error is a protocol violation and terminates the session.
func (s *chatSession) handleInbound(ctx context.Context, raw []byte) error {
	s.h.registry.Heartbeat(ctx, s.ownerKey)

	msg, err := protocol.NormalizeDirect(raw, s.ownerID, s.peerID)
	if err != nil {
		return err
	}

	delivered := false
	if peer, ok := s.h.registry.Lookup(s.peerKey, s.ownerKey); ok {
		env, sealErr := protocol.Seal(msg)
		if sealErr != nil {
			s.h.log.Error("seal failed", zap.Error(sealErr))
		} else if pushErr := peer.SendJSON(env); pushErr != nil {
			// Dead reverse channel; drop it so later senders see offline.
			s.h.log.Warn("live push failed",
				zap.Int("from", s.ownerID),
				zap.Int("to", s.peerID),
				zap.Error(pushErr))
			s.h.registry.Unregister(ctx, s.peerKey, s.ownerKey)
		} else {
			delivered = true
		}
	}
	if delivered {
		observability.IncDelivered("chat", observability.OutcomeLive)
	} else {
		observability.IncDelivered("chat", observability.OutcomeOffline)
	}

	if !protocol.ShouldPersist(msg.Text, msg.Media) {
		return nil
	}

	if _, err := s.h.messages.Insert(ctx, msg); err != nil {
		// Live push already happened; the loss is accepted, not retried.
		s.h.log.Error("persist message failed",
			zap.Int("from", s.ownerID),
			zap.Int("to", s.peerID),
			zap.Error(err))
		return nil
	}
	observability.IncPersisted("chat")

	now := time.Now().UTC()

	peerUser, err := s.h.users.GetByID(ctx, s.peerID)
	if err != nil {
		s.h.log.Warn("peer lookup failed", zap.Int("user_id", s.peerID), zap.Error(err))
	}
	if err := s.h.recents.UpsertDirect(ctx, s.ownerID, s.peerKey, peerUser.Username, peerUser.Photo, now, repositories.UnreadReset); err != nil {
		s.h.log.Warn("sender summary upsert failed", zap.Error(err))
	}

	senderName, senderPhoto := msg.FromUsername, msg.FromPhoto
	if senderName == "" {
		if sender, err := s.h.users.GetByID(ctx, s.ownerID); err == nil {
			senderName, senderPhoto = sender.Username, sender.Photo
		}
	}
	policy := repositories.UnreadKeep
	if !delivered {
		policy = repositories.UnreadIncrement
	}
	if err := s.h.recents.UpsertDirect(ctx, s.peerID, s.ownerKey, senderName, senderPhoto, now, policy); err != nil {
		s.h.log.Warn("receiver summary upsert failed", zap.Error(err))
	}
	return nil
}

// close runs the teardown path exactly once, no matter whether the trigger
// was a clean disconnect, a transport error or a protocol violation.
func (s *chatSession) close(ctx context.Context, final sessionState, reason string) {
	s.teardown.Do(func() {
		s.state = final
		s.h.registry.Unregister(ctx, s.ownerKey, s.peerKey)
		observability.DecWSActive("chat")
		if final == stateFailed {
			publishWSEvent(ctx, s.h.publisher, "chat", s.peerKey, "ws_error", reason, s.info)
		}
		publishWSEvent(ctx, s.h.publisher, "chat", s.peerKey, "ws_disconnect", reason, s.info)
		s.h.log.Info("chat channel closed",
			zap.Int("user_id", s.ownerID),
			zap.Int("target_id", s.peerID),
			zap.String("reason", reason))
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}
