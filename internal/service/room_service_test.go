package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/internal/models"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
)

type mockRoomStore struct {
	rooms        map[string]*models.Room
	participants map[string][]string
	messages     []models.RoomMessage
}

func newMockRoomStore() *mockRoomStore {
	return &mockRoomStore{
		rooms:        make(map[string]*models.Room),
		participants: make(map[string][]string),
	}
}

func (m *mockRoomStore) List(ctx context.Context, status models.RoomStatus) ([]models.RoomDetail, error) {
	out := make([]models.RoomDetail, 0, len(m.rooms))
	for _, r := range m.rooms {
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, models.RoomDetail{Room: *r, ParticipantCount: len(m.participants[r.ID])})
	}
	return out, nil
}

func (m *mockRoomStore) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if r, ok := m.rooms[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoomStore) Create(ctx context.Context, room *models.Room, ownerID string) error {
	if room.ID == "" {
		room.ID = fmt.Sprintf("room-%d", len(m.rooms)+1)
	}
	cp := *room
	m.rooms[room.ID] = &cp
	m.participants[room.ID] = []string{ownerID}
	return nil
}

func (m *mockRoomStore) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	for _, id := range m.participants[roomID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRoomStore) AddParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	room := m.rooms[roomID]
	if len(m.participants[roomID]) >= room.MaxParticipants {
		return false, nil
	}
	m.participants[roomID] = append(m.participants[roomID], userID)
	return true, nil
}

func (m *mockRoomStore) InsertMessage(ctx context.Context, msg *models.RoomMessage) error {
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg-%d", len(m.messages)+1)
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockRoomStore) ListMessages(ctx context.Context, roomID string, limit int) ([]models.RoomMessage, error) {
	var out []models.RoomMessage
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type mockRoomBroker struct {
	published []models.RoomMessage
}

func (m *mockRoomBroker) Publish(ctx context.Context, msg *models.RoomMessage) error {
	m.published = append(m.published, *msg)
	return nil
}

func (m *mockRoomBroker) Subscribe(ctx context.Context, roomID string) (<-chan *models.RoomMessage, error) {
	ch := make(chan *models.RoomMessage)
	close(ch)
	return ch, nil
}

func TestCreateRoomDefaultsCapacity(t *testing.T) {
	store := newMockRoomStore()
	svc := NewRoomService(store, &mockRoomBroker{}, 6, 50, nil, zap.NewNop())

	room, err := svc.CreateRoom(context.Background(), "owner-1", CreateRoomRequest{Name: "Study Group"})
	require.NoError(t, err)
	assert.Equal(t, 6, room.MaxParticipants)
	assert.Equal(t, models.RoomOpen, room.Status)
	assert.Equal(t, []string{"owner-1"}, store.participants[room.ID])
}

func TestJoinRoomFullAndRejoin(t *testing.T) {
	store := newMockRoomStore()
	svc := NewRoomService(store, &mockRoomBroker{}, 6, 50, nil, zap.NewNop())

	room, err := svc.CreateRoom(context.Background(), "owner-1", CreateRoomRequest{Name: "Pair Room", MaxParticipants: 2})
	require.NoError(t, err)

	require.NoError(t, svc.JoinRoom(context.Background(), room.ID, "user-2"))
	// Rejoining is a no-op.
	require.NoError(t, svc.JoinRoom(context.Background(), room.ID, "user-2"))
	assert.Len(t, store.participants[room.ID], 2)

	err = svc.JoinRoom(context.Background(), room.ID, "user-3")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrRoomFull.Code, appErr.Code)
}

func TestJoinRoomNotOpen(t *testing.T) {
	store := newMockRoomStore()
	store.rooms["room-1"] = &models.Room{ID: "room-1", Name: "Closed", Status: models.RoomCompleted, MaxParticipants: 6}
	svc := NewRoomService(store, &mockRoomBroker{}, 6, 50, nil, zap.NewNop())

	err := svc.JoinRoom(context.Background(), "room-1", "user-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPostMessageRequiresMembership(t *testing.T) {
	store := newMockRoomStore()
	broker := &mockRoomBroker{}
	svc := NewRoomService(store, broker, 6, 50, nil, zap.NewNop())

	room, err := svc.CreateRoom(context.Background(), "owner-1", CreateRoomRequest{Name: "Study Group"})
	require.NoError(t, err)

	_, err = svc.PostMessage(context.Background(), room.ID, "outsider", PostMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	msg, err := svc.PostMessage(context.Background(), room.ID, "owner-1", PostMessageRequest{Content: "standup time"})
	require.NoError(t, err)
	assert.Equal(t, models.MessageChat, msg.MessageType)
	require.Len(t, broker.published, 1)
	assert.Equal(t, "standup time", broker.published[0].Content)
}

func TestMessagesAndStreamMembershipChecks(t *testing.T) {
	store := newMockRoomStore()
	svc := NewRoomService(store, &mockRoomBroker{}, 6, 50, nil, zap.NewNop())

	room, err := svc.CreateRoom(context.Background(), "owner-1", CreateRoomRequest{Name: "Study Group"})
	require.NoError(t, err)

	_, err = svc.Messages(context.Background(), room.ID, "outsider")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Stream(context.Background(), room.ID, "outsider")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	ch, err := svc.Stream(context.Background(), room.ID, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, ch)
}
