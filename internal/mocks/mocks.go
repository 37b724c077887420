// Package mocks holds hand-written testify mocks for the repository and
// publisher interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"moment-chat/internal/models"
	"moment-chat/internal/rabbitmq"
	"moment-chat/internal/repositories"
)

type DirectMessageRepositoryMock struct {
	mock.Mock
}

func (m *DirectMessageRepositoryMock) Insert(ctx context.Context, msg models.DirectMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *DirectMessageRepositoryMock) History(ctx context.Context, userID, targetID, limit int, before *time.Time) ([]models.DirectMessage, error) {
	args := m.Called(ctx, userID, targetID, limit, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DirectMessage), args.Error(1)
}

func (m *DirectMessageRepositoryMock) SoftDelete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) Insert(ctx context.Context, msg models.GroupMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) History(ctx context.Context, groupID string, limit int, before *time.Time) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID, limit, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GroupMessage), args.Error(1)
}

func (m *GroupMessageRepositoryMock) SoftDelete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) Create(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Group, error) {
	args := m.Called(ctx, name, creatorID, memberIDs)
	return args.Get(0).(models.Group), args.Error(1)
}

func (m *GroupRepositoryMock) GetByGroupID(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(models.Group), args.Error(1)
}

func (m *GroupRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Group), args.Error(1)
}

type RecentChatRepositoryMock struct {
	mock.Mock
}

func (m *RecentChatRepositoryMock) UpsertDirect(ctx context.Context, ownerID int, targetID, name, photo string, last time.Time, policy repositories.UnreadPolicy) error {
	args := m.Called(ctx, ownerID, targetID, name, photo, last, policy)
	return args.Error(0)
}

func (m *RecentChatRepositoryMock) UpsertGroup(ctx context.Context, ownerID int, group models.Group, last time.Time, policy repositories.UnreadPolicy) error {
	args := m.Called(ctx, ownerID, group, last, policy)
	return args.Error(0)
}

func (m *RecentChatRepositoryMock) Upsert(ctx context.Context, rc models.RecentChat) error {
	args := m.Called(ctx, rc)
	return args.Error(0)
}

func (m *RecentChatRepositoryMock) ClearUnread(ctx context.Context, ownerID int, targetID string) error {
	args := m.Called(ctx, ownerID, targetID)
	return args.Error(0)
}

func (m *RecentChatRepositoryMock) List(ctx context.Context, ownerID, limit int) ([]models.RecentChat, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RecentChat), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepositoryMock) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepositoryMock) BulkByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ repositories.DirectMessageRepository = (*DirectMessageRepositoryMock)(nil)
	_ repositories.GroupMessageRepository  = (*GroupMessageRepositoryMock)(nil)
	_ repositories.GroupRepository         = (*GroupRepositoryMock)(nil)
	_ repositories.RecentChatRepository    = (*RecentChatRepositoryMock)(nil)
	_ repositories.UserRepository          = (*UserRepositoryMock)(nil)
	_ rabbitmq.Publisher                   = (*PublisherMock)(nil)
)
