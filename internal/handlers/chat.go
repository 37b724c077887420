package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moment-chat/internal/cache"
	"moment-chat/internal/models"
	"moment-chat/internal/protocol"
	"moment-chat/internal/registry"
	"moment-chat/internal/repositories"
)

const (
	historyDefaultLimit = 100
	historyMaxLimit     = 1000
	recentDefaultLimit  = 10
	recentMaxLimit      = 50
)

// ChatHandler serves the 1:1 message REST surface: history pages, conversation
// summaries, soft deletes, read receipts and presence checks.
type ChatHandler struct {
	messages repositories.DirectMessageRepository
	recents  repositories.RecentChatRepository
	registry *registry.Registry
	cache    *cache.Cache
	log      *zap.Logger
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(messages repositories.DirectMessageRepository, recents repositories.RecentChatRepository, reg *registry.Registry, kv *cache.Cache, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{
		messages: messages,
		recents:  recents,
		registry: reg,
		cache:    kv,
		log:      log,
	}
}

// History returns a page of the pair's messages in ascending time order,
// each entry sealed individually. Cursor paging via before_time.
func (h *ChatHandler) History(c *gin.Context) {
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
	before, err := parseBefore(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_time"})
		return
	}
	limit := parseLimit(c, historyDefaultLimit, historyMaxLimit)

	msgs, err := h.messages.History(c.Request.Context(), userID, targetID, limit, before)
	if err != nil {
		h.log.Error("history query failed", zap.Int("user_id", userID), zap.Int("target_id", targetID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	// Store order is newest first; clients render oldest first.
	envelopes := make([]protocol.SealedEnvelope, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		m.FromID = m.From
		t := m.Time
		m.CreatedAt = &t
		env, err := protocol.Seal(m)
		if err != nil {
			h.log.Error("seal history entry failed", zap.String("message_id", m.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to seal history"})
			return
		}
		envelopes = append(envelopes, env)
	}

	c.JSON(http.StatusOK, gin.H{"messages": envelopes, "count": len(envelopes)})
}

// RecentChats lists the user's conversation summaries, newest first.
func (h *ChatHandler) RecentChats(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	limit := parseLimit(c, recentDefaultLimit, recentMaxLimit)

	chats, err := h.recents.List(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error("recent chats query failed", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recent chats"})
		return
	}
	if chats == nil {
		chats = []models.RecentChat{}
	}
	c.JSON(http.StatusOK, gin.H{"recent_chats": chats, "count": len(chats)})
}

// UpsertRecentChat applies a caller-provided summary. One row per
// (user_id, target_id) pair regardless of how many writers race.
func (h *ChatHandler) UpsertRecentChat(c *gin.Context) {
	var rc models.RecentChat
	if err := c.ShouldBindJSON(&rc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if rc.UserID == 0 || rc.TargetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and target_id are required"})
		return
	}

	if err := h.recents.Upsert(c.Request.Context(), rc); err != nil {
		h.log.Error("recent chat upsert failed", zap.Int("user_id", rc.UserID), zap.String("target_id", rc.TargetID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save recent chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ClearUnread zeroes the unread counter for one of the user's conversations.
func (h *ChatHandler) ClearUnread(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	targetID := c.Param("target_id")

	if err := h.recents.ClearUnread(c.Request.Context(), userID, targetID); err != nil {
		h.log.Error("clear unread failed", zap.Int("user_id", userID), zap.String("target_id", targetID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear unread"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteMessage soft-deletes a 1:1 message; the document stays in the store.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("message_id")

	err := h.messages.SoftDelete(c.Request.Context(), messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.log.Error("delete message failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// MarkMessageRead records a read receipt for a message.
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	messageID := c.Param("message_id")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.cache.MarkMessageRead(c.Request.Context(), messageID); err != nil {
		h.log.Warn("mark read failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MessageReadState reports whether a read receipt exists.
func (h *ChatHandler) MessageReadState(c *gin.Context) {
	messageID := c.Param("message_id")

	read, err := h.cache.IsMessageRead(c.Request.Context(), messageID)
	if err != nil {
		h.log.Warn("read state check failed", zap.String("message_id", messageID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "read": read})
}

// Online reports the user's coarse presence from the shared registry.
func (h *ChatHandler) Online(c *gin.Context) {
	userID := c.Param("user_id")
	if _, err := strconv.Atoi(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "online": h.registry.IsOnline(c.Request.Context(), userID)})
}
