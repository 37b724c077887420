package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"moment-chat/internal/models"
	"moment-chat/internal/observability"
	"moment-chat/internal/protocol"
	"moment-chat/internal/rabbitmq"
	"moment-chat/internal/registry"
	"moment-chat/internal/repositories"
)

var errNotMember = errors.New("not a group member")

// GroupWebSocketHandler accepts group chat channels and runs their fan-out
// sessions.
type GroupWebSocketHandler struct {
	registry  *registry.Registry
	groups    repositories.GroupRepository
	messages  repositories.GroupMessageRepository
	recents   repositories.RecentChatRepository
	users     repositories.UserRepository
	publisher rabbitmq.Publisher
	log       *zap.Logger
}

// NewGroupWebSocketHandler constructs a GroupWebSocketHandler.
func NewGroupWebSocketHandler(reg *registry.Registry, groups repositories.GroupRepository, messages repositories.GroupMessageRepository, recents repositories.RecentChatRepository, users repositories.UserRepository, publisher rabbitmq.Publisher, log *zap.Logger) *GroupWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GroupWebSocketHandler{
		registry:  reg,
		groups:    groups,
		messages:  messages,
		recents:   recents,
		users:     users,
		publisher: publisher,
		log:       log,
	}
}

// Handle upgrades the connection, verifies membership, registers the
// (user, group) pair and starts the receive loop. Non-members get an error
// frame and an immediate close instead of a registration.
func (h *GroupWebSocketHandler) Handle(c *gin.Context) {
	groupID := c.Param("group_id")
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	hctx, span := otel.Tracer("moment-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(hctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	channel := newChannel(conn)

	ctx := context.Background()
	group, err := h.groups.GetByGroupID(ctx, groupID)
	if err != nil {
		_ = channel.SendJSON(gin.H{"error": "group not found"})
		_ = conn.Close()
		return
	}
	if !group.HasMember(userID) {
		_ = channel.SendJSON(gin.H{"error": errNotMember.Error()})
		_ = conn.Close()
		return
	}

	sender, err := h.users.GetByID(ctx, userID)
	if err != nil {
		h.log.Warn("sender lookup failed", zap.Int("user_id", userID), zap.Error(err))
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

	s := &groupSession{
		h:           h,
		ownerID:     userID,
		ownerKey:    strconv.Itoa(userID),
		group:       group,
		senderName:  sender.Username,
		senderPhoto: sender.Photo,
		conn:        conn,
		channel:     channel,
		info:        info,
		state:       stateConnecting,
	}

	h.registry.Register(ctx, s.ownerKey, group.GroupID, s.channel)
	s.state = stateOpen

	observability.IncWSActive("group")
	publishWSEvent(ctx, h.publisher, "group", group.GroupID, "ws_connect", "", info)
	h.log.Info("group channel open",
		zap.Int("user_id", userID),
		zap.String("group_id", group.GroupID),
		zap.String("conn_id", info.ConnID))

	go s.run(ctx)
}

// groupSession is the per-channel fan-out state machine. Membership is fixed
// at creation, so the member list loaded at connect time stays valid for the
// session's whole life.
type groupSession struct {
	h           *GroupWebSocketHandler
	ownerID     int
	ownerKey    string
	group       models.Group
	senderName  string
	senderPhoto string
	conn        *websocket.Conn
	channel     registry.Channel
	info        ConnInfo
	state       sessionState
	teardown    sync.Once
}

func (s *groupSession) run(ctx context.Context) {
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
			if errors.Is(err, errNotMember) {
				_ = s.channel.SendJSON(gin.H{"error": errNotMember.Error()})
			}
			s.close(ctx, stateFailed, err.Error())
			return
		}
	}
}

// handleInbound fans one payload out to every other member with a live
// channel, persists it once, and upserts every member's summary: the sender
// resets to zero, live receivers keep their counter, offline members gain one.
func (s *groupSession) handleInbound(ctx context.Context, raw []byte) error {
	if !s.group.HasMember(s.ownerID) {
		return errNotMember
	}
	s.h.registry.Heartbeat(ctx, s.ownerKey)

	msg, err := protocol.NormalizeGroup(raw, s.ownerID, s.group.GroupID, s.group.Name, s.senderName, s.senderPhoto)
	if err != nil {
		return err
	}

	live := make(map[int]bool, len(s.group.Members))
	for _, member := range s.group.Members {
		if member == s.ownerID {
			continue
		}
		memberKey := strconv.Itoa(member)
		ch, ok := s.h.registry.Lookup(memberKey, s.group.GroupID)
		if !ok {
			observability.IncDelivered("group", observability.OutcomeOffline)
			continue
		}
		env, sealErr := protocol.Seal(msg)
		if sealErr != nil {
			s.h.log.Error("seal failed", zap.Error(sealErr))
			observability.IncDelivered("group", observability.OutcomeOffline)
			continue
		}
		if pushErr := ch.SendJSON(env); pushErr != nil {
			s.h.log.Warn("group push failed",
				zap.Int("member_id", member),
				zap.String("group_id", s.group.GroupID),
				zap.Error(pushErr))
			s.h.registry.Unregister(ctx, memberKey, s.group.GroupID)
			observability.IncDelivered("group", observability.OutcomeOffline)
			continue
		}
		live[member] = true
		observability.IncDelivered("group", observability.OutcomeLive)
	}

	if !protocol.ShouldPersist(msg.Text, msg.Media) {
		return nil
	}

	if _, err := s.h.messages.Insert(ctx, msg); err != nil {
		s.h.log.Error("persist group message failed",
			zap.String("group_id", s.group.GroupID),
			zap.Error(err))
		return nil
	}
	observability.IncPersisted("group")

	now := time.Now().UTC()
	for _, member := range s.group.Members {
		policy := repositories.UnreadIncrement
		switch {
		case member == s.ownerID:
			policy = repositories.UnreadReset
		case live[member]:
			policy = repositories.UnreadKeep
		}
		if err := s.h.recents.UpsertGroup(ctx, member, s.group, now, policy); err != nil {
			s.h.log.Warn("group summary upsert failed",
				zap.Int("member_id", member),
				zap.String("group_id", s.group.GroupID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *groupSession) close(ctx context.Context, final sessionState, reason string) {
	s.teardown.Do(func() {
		s.state = final
		s.h.registry.Unregister(ctx, s.ownerKey, s.group.GroupID)
		observability.DecWSActive("group")
		if final == stateFailed {
			publishWSEvent(ctx, s.h.publisher, "group", s.group.GroupID, "ws_error", reason, s.info)
		}
		publishWSEvent(ctx, s.h.publisher, "group", s.group.GroupID, "ws_disconnect", reason, s.info)
		s.h.log.Info("group channel closed",
			zap.Int("user_id", s.ownerID),
			zap.String("group_id", s.group.GroupID),
			zap.String("reason", reason))
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}
