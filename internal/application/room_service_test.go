package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/campus-rooms/internal/persistence"
	"github.com/example/campus-rooms/internal/scheduler"
)

type roomRepoStub struct {
	rooms     map[int64]Room
	nextID    int64
	createErr error
	busy      bool
	deleteErr error
	deleted   []int64
	statuses  map[int64]RoomStatus
	lastList  persistence.RoomFilter
}

func newRoomRepoStub(rooms ...Room) *roomRepoStub {
	r := &roomRepoStub{rooms: make(map[int64]Room), statuses: make(map[int64]RoomStatus)}
	for _, room := range rooms {
		r.rooms[room.ID] = room
		if room.ID > r.nextID {
			r.nextID = room.ID
		}
	}
	return r
}

func (r *roomRepoStub) CreateRoom(_ context.Context, room Room) (Room, error) {
	if r.createErr != nil {
		return Room{}, r.createErr
	}
	r.nextID++
	room.ID = r.nextID
	r.rooms[room.ID] = room
	return room, nil
}

func (r *roomRepoStub) GetRoom(_ context.Context, id int64) (Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *roomRepoStub) UpdateRoom(_ context.Context, room Room) (Room, error) {
	r.rooms[room.ID] = room
	return room, nil
}

func (r *roomRepoStub) DeleteRoom(_ context.Context, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, id)
	delete(r.rooms, id)
	return nil
}

func (r *roomRepoStub) ListRooms(_ context.Context, filter persistence.RoomFilter) ([]Room, error) {
	r.lastList = filter
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out, nil
}

func (r *roomRepoStub) ListAvailableRooms(_ context.Context, _ scheduler.Interval) ([]Room, error) {
	return nil, nil
}

func (r *roomRepoStub) SetRoomStatus(_ context.Context, id int64, status RoomStatus, _ time.Time) error {
	room, ok := r.rooms[id]
	if !ok {
		return persistence.ErrNotFound
	}
	room.Status = status
	r.rooms[id] = room
	r.statuses[id] = status
	return nil
}

func (r *roomRepoStub) HasUpcomingBookings(_ context.Context, _ int64, _ time.Time) (bool, error) {
	return r.busy, nil
}

func validRoomInput() RoomInput {
	return RoomInput{
		Name:      " Lecture Hall A ",
		Capacity:  120,
		Building:  "Main",
		Floor:     1,
		Resources: []string{"Projector", " projector ", "", "Whiteboard"},
	}
}

func TestRoomService_CreateRoom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requires administrator privileges", func(t *testing.T) {
		t.Parallel()
		svc := NewRoomService(newRoomRepoStub(), nil)
		_, err := svc.CreateRoom(ctx, CreateRoomParams{Principal: lecturer, Input: validRoomInput()})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("normalizes input and defaults status", func(t *testing.T) {
		t.Parallel()
		svc := NewRoomService(newRoomRepoStub(), func() time.Time { return day })
		room, err := svc.CreateRoom(ctx, CreateRoomParams{Principal: admin, Input: validRoomInput()})
		require.NoError(t, err)
		assert.Equal(t, "Lecture Hall A", room.Name)
		assert.Equal(t, RoomAvailable, room.Status)
		assert.Equal(t, []string{"Projector", "Whiteboard"}, room.Resources)
		assert.Equal(t, day, room.CreatedAt)
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		t.Parallel()
		svc := NewRoomService(newRoomRepoStub(), nil)
		_, err := svc.CreateRoom(ctx, CreateRoomParams{Principal: admin, Input: RoomInput{Status: "closed"}})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		for _, field := range []string{"name", "building", "capacity", "status"} {
			assert.Contains(t, vErr.FieldErrors, field)
		}
	})

	t.Run("maps missing department to validation error", func(t *testing.T) {
		t.Parallel()
		repo := newRoomRepoStub()
		repo.createErr = persistence.ErrForeignKeyViolation
		svc := NewRoomService(repo, nil)
		_, err := svc.CreateRoom(ctx, CreateRoomParams{Principal: admin, Input: validRoomInput()})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "departmentId")
	})
}

func TestRoomService_DeleteRoom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("refuses while confirmed bookings are upcoming", func(t *testing.T) {
		t.Parallel()
		repo := newRoomRepoStub(Room{ID: 5, Name: "Lab"})
		repo.busy = true
		err := NewRoomService(repo, nil).DeleteRoom(ctx, admin, 5)
		assert.ErrorIs(t, err, ErrInUse)
		assert.Empty(t, repo.deleted)
	})

	t.Run("deletes idle rooms", func(t *testing.T) {
		t.Parallel()
		repo := newRoomRepoStub(Room{ID: 5, Name: "Lab"})
		require.NoError(t, NewRoomService(repo, nil).DeleteRoom(ctx, admin, 5))
		assert.Equal(t, []int64{5}, repo.deleted)
	})

	t.Run("rooms with booking history are in use", func(t *testing.T) {
		t.Parallel()
		repo := newRoomRepoStub(Room{ID: 5, Name: "Lab"})
		repo.deleteErr = persistence.ErrForeignKeyViolation
		err := NewRoomService(repo, nil).DeleteRoom(ctx, admin, 5)
		assert.ErrorIs(t, err, ErrInUse)
		var vErr *ValidationError
		assert.False(t, errors.As(err, &vErr))
	})

	t.Run("missing room is not found", func(t *testing.T) {
		t.Parallel()
		err := NewRoomService(newRoomRepoStub(), nil).DeleteRoom(ctx, admin, 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("lecturers cannot delete", func(t *testing.T) {
		t.Parallel()
		err := NewRoomService(newRoomRepoStub(Room{ID: 5}), nil).DeleteRoom(ctx, lecturer, 5)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestRoomService_StatusAndListing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newRoomRepoStub(Room{ID: 1, Name: "Lab", Status: RoomAvailable})
	svc := NewRoomService(repo, nil)

	room, err := svc.SetRoomStatus(ctx, admin, 1, "Inactive")
	require.NoError(t, err)
	assert.Equal(t, RoomInactive, room.Status)

	_, err = svc.SetRoomStatus(ctx, admin, 1, "closed")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.ListRooms(ctx, lecturer, persistence.RoomFilter{Status: "nope"})
	assert.ErrorAs(t, err, &vErr)

	rooms, err := svc.ListRooms(ctx, lecturer, persistence.RoomFilter{Building: "Main"})
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.Equal(t, "Main", repo.lastList.Building)

	_, err = svc.AvailableRooms(ctx, hour(11, 0), hour(10, 0))
	assert.True(t, errors.As(err, &vErr))
}
