package service

import (
	"strings"
	"testing"

	"github.com/louisboswell/loungr/internal/db"
	"github.com/louisboswell/loungr/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRoomService(t *testing.T) (*RoomService, *UserService, *gorm.DB) {
	t.Helper()
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	return NewRoomService(gdb), NewUserService(gdb, testConfig()), gdb
}

func TestCreateRoom_Scenario(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")

	room, err := svc.Create(a.ID, "Chess Club", "weekly matches")
	require.NoError(t, err)
	assert.Len(t, room.Code, 8)
	assert.Equal(t, a.ID, room.AdminID)

	rooms, err := svc.All()
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Chess Club", rooms[0].Name)

	// Creator is the sole initial member
	members, err := svc.Members(room.Code)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, a.ID, members[0].ID)
}

func TestCreateRoom_DuplicateName(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")
	b := mustRegister(t, userSvc, "conor", "conor@example.com")

	_, err := svc.Create(a.ID, "Chess Club", "weekly matches")
	require.NoError(t, err)

	_, err = svc.Create(b.ID, "Chess Club", "another one")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateRoom_InvalidInput(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")

	_, err := svc.Create(a.ID, "", "desc")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(a.ID, strings.Repeat("x", 41), "desc")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(a.ID, "ok", strings.Repeat("x", 251))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateRoom_UniqueCodes(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		room, err := svc.Create(a.ID, "room-"+strings.Repeat("x", i%5)+string(rune('a'+i)), "")
		require.NoError(t, err)
		_, dup := seen[room.Code]
		assert.False(t, dup, "room code %q generated twice", room.Code)
		seen[room.Code] = struct{}{}
	}
}

func TestDeleteRoom_AdminOnly(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")
	b := mustRegister(t, userSvc, "conor", "conor@example.com")

	room, err := svc.Create(a.ID, "Chess Club", "weekly matches")
	require.NoError(t, err)
	require.NoError(t, svc.Join(b.ID, room.Code))

	// Non-admin delete fails and leaves room and membership intact
	err = svc.Delete(b.ID, room.Code)
	assert.ErrorIs(t, err, ErrForbidden)

	members, err := svc.Members(room.Code)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// Admin delete removes the room from the listing
	require.NoError(t, svc.Delete(a.ID, room.Code))

	rooms, err := svc.All()
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestDeleteRoom_CleansMemberships(t *testing.T) {
	svc, userSvc, gdb := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")
	b := mustRegister(t, userSvc, "conor", "conor@example.com")

	room, err := svc.Create(a.ID, "Chess Club", "")
	require.NoError(t, err)
	require.NoError(t, svc.Join(b.ID, room.Code))

	require.NoError(t, svc.Delete(a.ID, room.Code))

	// No orphaned membership rows survive the delete
	var count int64
	require.NoError(t, gdb.Model(&models.Membership{}).Where("room_code = ?", room.Code).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteRoom_Missing(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")

	err := svc.Delete(a.ID, "nope1234")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinRoom_Idempotent(t *testing.T) {
	svc, userSvc, gdb := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")
	b := mustRegister(t, userSvc, "conor", "conor@example.com")

	room, err := svc.Create(a.ID, "Chess Club", "")
	require.NoError(t, err)

	require.NoError(t, svc.Join(b.ID, room.Code))
	require.NoError(t, svc.Join(b.ID, room.Code))

	var count int64
	require.NoError(t, gdb.Model(&models.Membership{}).
		Where("user_id = ? AND room_code = ?", b.ID, room.Code).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestJoinRoom_Missing(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")

	err := svc.Join(a.ID, "nope1234")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaveRoom(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")
	b := mustRegister(t, userSvc, "conor", "conor@example.com")

	room, err := svc.Create(a.ID, "Chess Club", "")
	require.NoError(t, err)

	// Leaving without membership is a no-op
	require.NoError(t, svc.Leave(b.ID, room.Code))

	require.NoError(t, svc.Join(b.ID, room.Code))
	require.NoError(t, svc.Leave(b.ID, room.Code))

	members, err := svc.Members(room.Code)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, a.ID, members[0].ID)
}

func TestRoomsOf(t *testing.T) {
	svc, userSvc, _ := newRoomService(t)
	a := mustRegister(t, userSvc, "louis", "louis@example.com")
	b := mustRegister(t, userSvc, "conor", "conor@example.com")

	chess, err := svc.Create(a.ID, "Chess Club", "")
	require.NoError(t, err)
	_, err = svc.Create(b.ID, "Book Club", "")
	require.NoError(t, err)

	rooms, err := svc.RoomsOf(a.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, chess.Code, rooms[0].Code)
}

func TestMembers_Missing(t *testing.T) {
	svc, _, _ := newRoomService(t)

	_, err := svc.Members("nope1234")
	assert.ErrorIs(t, err, ErrNotFound)
}
