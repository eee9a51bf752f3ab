package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/campus-rooms/internal/application"
)

func TestServicesWireRealStore(t *testing.T) {
	svc := NewServices(t)

	owner := NewUserFixture()
	user := svc.SeedUser(t, owner)
	room := svc.SeedRoom(t, NewRoomFixture())
	booking := svc.SeedBooking(t, user, NewBookingFixture(room.ID))

	if booking.ID == 0 || booking.RoomID != room.ID || booking.UserID != user.ID {
		t.Fatalf("unexpected booking: %+v", booking)
	}

	token := svc.Token(t, owner)
	principal, err := svc.Auth.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if principal.UserID != user.ID || principal.Role != application.RoleLecturer {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	entries, err := svc.Audit.ListEntries(context.Background(), application.Principal{Role: application.RoleAdmin}, 10)
	if err != nil {
		t.Fatalf("ListEntries returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "booking.created" {
		t.Fatalf("expected one booking.created audit entry, got %+v", entries)
	}
}

func TestServicesUseFixtureClock(t *testing.T) {
	clock := NewClock(time.Date(2026, time.May, 4, 12, 0, 0, 0, time.UTC))
	svc := NewServices(t, WithClock(clock), WithTokenIDs(NewTokenIDs("tok")))

	user := svc.SeedUser(t, NewUserFixture())
	if !user.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("expected CreatedAt %v, got %v", clock.Now(), user.CreatedAt)
	}

	result, err := svc.Auth.Login(context.Background(), application.LoginParams{
		Email: user.Email, Password: DefaultPassword,
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Token.ID != "tok-0001" || svc.TokenIDs.Last() != result.Token.ID {
		t.Fatalf("expected token id tok-0001, got %q", result.Token.ID)
	}
}
