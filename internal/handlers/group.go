package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moment-chat/internal/cache"
	"moment-chat/internal/models"
	"moment-chat/internal/protocol"
	"moment-chat/internal/repositories"
	"moment-chat/internal/telemetry"
)

const avatarStripMax = 9

// GroupHandler serves the group REST surface: creation, listings, info with
// the avatar strip, and group history.
type GroupHandler struct {
	groups   repositories.GroupRepository
	messages repositories.GroupMessageRepository
	recents  repositories.RecentChatRepository
	users    repositories.UserRepository
	cache    *cache.Cache
	audit    *telemetry.AuditEmitter
	log      *zap.Logger
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups repositories.GroupRepository, messages repositories.GroupMessageRepository, recents repositories.RecentChatRepository, users repositories.UserRepository, kv *cache.Cache, audit *telemetry.AuditEmitter, log *zap.Logger) *GroupHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GroupHandler{
		groups:   groups,
		messages: messages,
		recents:  recents,
		users:    users,
		cache:    kv,
		audit:    audit,
		log:      log,
	}
}

type createGroupRequest struct {
	Name    string `json:"name" binding:"required"`
	UserID  int    `json:"user_id" binding:"required"`
	Members []int  `json:"members"`
}

// Create stores a new group and seeds every member's conversation summary so
// the group shows up in their chat list immediately.
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), req.Name, req.UserID, req.Members)
	if err != nil {
		h.log.Error("group create failed", zap.String("name", req.Name), zap.Int("creator_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	for _, member := range group.Members {
		policy := repositories.UnreadKeep
		if member == group.CreatorID {
			policy = repositories.UnreadReset
		}
		if err := h.recents.UpsertGroup(c.Request.Context(), member, group, group.CreatedAt, policy); err != nil {
			h.log.Warn("group summary seed failed", zap.Int("member_id", member), zap.String("group_id", group.GroupID), zap.Error(err))
		}
	}

	h.audit.Emit(c.Request.Context(), "info",
		fmt.Sprintf("group %s created with %d members", group.GroupID, group.MembersCount),
		requestIDFromContext(c), userIDPtr(group.CreatorID))

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// JoinedGroups lists the groups the user belongs to, newest first.
func (h *GroupHandler) JoinedGroups(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	groups, err := h.groups.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("joined groups query failed", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "count": len(groups)})
}

// Info returns the group's metadata plus the avatar strip.
func (h *GroupHandler) Info(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	info := models.GroupInfo{
		GroupID:       group.GroupID,
		GroupName:     group.Name,
		CreatorID:     group.CreatorID,
		GroupMembers:  group.Members,
		MembersCount:  group.MembersCount,
		AvatarMembers: h.avatarStrip(c.Request.Context(), group),
		CreateTime:    group.CreatedAt,
		Photo:         group.Photo,
	}
	c.JSON(http.StatusOK, info)
}

// Avatar returns just the avatar strip for list rendering.
func (h *GroupHandler) Avatar(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"group_id":       group.GroupID,
		"avatar_members": h.avatarStrip(c.Request.Context(), group),
	})
}

// History returns a page of the group's messages, ascending, sealed per entry.
func (h *GroupHandler) History(c *gin.Context) {
	groupID := c.Param("group_id")
	before, err := parseBefore(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_time"})
		return
	}
	limit := parseLimit(c, historyDefaultLimit, historyMaxLimit)

	msgs, err := h.messages.History(c.Request.Context(), groupID, limit, before)
	if err != nil {
		h.log.Error("group history query failed", zap.String("group_id", groupID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

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

// DeleteMessage soft-deletes a group message.
func (h *GroupHandler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("message_id")

	err := h.messages.SoftDelete(c.Request.Context(), messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.log.Error("delete group message failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *GroupHandler) loadGroup(c *gin.Context) (models.Group, bool) {
	groupID := c.Param("group_id")
	group, err := h.groups.GetByGroupID(c.Request.Context(), groupID)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return models.Group{}, false
	}
	if err != nil {
		h.log.Error("group lookup failed", zap.String("group_id", groupID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return models.Group{}, false
	}
	return group, true
}

// cachedUser is the user-info shape mirrored into the cache.
type cachedUser struct {
	Username string `json:"username"`
	Photo    string `json:"photo"`
}

// avatarStrip resolves up to nine member photos, creator first, preferring the
// cache and falling back to one bulk directory query for the misses.
func (h *GroupHandler) avatarStrip(ctx context.Context, group models.Group) []string {
	members := group.Members
	if len(members) > avatarStripMax {
		members = members[:avatarStripMax]
	}

	photos := make(map[int]string, len(members))
	var missing []int
	for _, id := range members {
		raw := h.cache.GetUserInfo(ctx, id)
		if raw == "" {
			missing = append(missing, id)
			continue
		}
		var cu cachedUser
		if err := json.Unmarshal([]byte(raw), &cu); err != nil {
			missing = append(missing, id)
			continue
		}
		photos[id] = cu.Photo
	}

	if len(missing) > 0 {
		users, err := h.users.BulkByIDs(ctx, missing)
		if err != nil {
			h.log.Warn("avatar directory query failed", zap.String("group_id", group.GroupID), zap.Error(err))
		}
		for _, u := range users {
			photos[u.ID] = u.Photo
			if raw, err := json.Marshal(cachedUser{Username: u.Username, Photo: u.Photo}); err == nil {
				if err := h.cache.SetUserInfo(ctx, u.ID, string(raw)); err != nil {
					h.log.Warn("user info cache write failed", zap.Int("user_id", u.ID), zap.Error(err))
				}
			}
		}
	}

	strip := make([]string, 0, len(members))
	for _, id := range members {
		if photo, ok := photos[id]; ok {
			strip = append(strip, photo)
		}
	}
	return strip
}
