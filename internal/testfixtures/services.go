package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/auth"
	"github.com/example/campus-rooms/internal/persistence/sqlstore"
)

// TokenSecret signs every token issued by fixture services.
const TokenSecret = "fixture-signing-secret"

// fastArgon2id keeps password hashing cheap in tests. Hashes stay verifiable
// because the parameters are encoded in the hash.
var fastArgon2id = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword hashes with the cheap fixture parameters.
func HashPassword(password string) (string, error) {
	return application.CreatePasswordHash(password, fastArgon2id)
}

// Services is the full application service graph over a real store, wired
// the same way the serve command wires it.
type Services struct {
	Store       *sqlstore.Store
	Clock       *Clock
	TokenIDs    *TokenIDs
	Events      *application.EventBus
	Issuer      *auth.Issuer
	Revocations *auth.MemoryRevocations

	Auth        *application.AuthService
	Users       *application.UserService
	Rooms       *application.RoomService
	Departments *application.DepartmentService
	Bookings    *application.BookingService
	Maintenance *application.MaintenanceService
	Reports     *application.ReportService
	Audit       *application.AuditService
}

// ServiceOption configures NewServices.
type ServiceOption func(*Services)

// WithClock overrides the clock used by the services.
func WithClock(clock *Clock) ServiceOption {
	return func(s *Services) {
		s.Clock = clock
	}
}

// WithTokenIDs overrides the generator for issued token ids.
func WithTokenIDs(ids *TokenIDs) ServiceOption {
	return func(s *Services) {
		s.TokenIDs = ids
	}
}

// NewServices wires every service over a fresh in-memory store.
func NewServices(tb testing.TB, opts ...ServiceOption) *Services {
	tb.Helper()

	s := &Services{
		Store: NewStore(tb),
		Clock:    NewClock(time.Time{}),
		TokenIDs: NewTokenIDs(""),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := DiscardLogger()
	now := s.Clock.NowFunc()

	issuer, err := auth.NewIssuer(TokenSecret, "roombook-test", 8*time.Hour)
	if err != nil {
		tb.Fatalf("failed to build issuer: %v", err)
	}
	s.Issuer = issuer.WithClock(now).WithIDs(s.TokenIDs.NextFunc())
	s.Revocations = auth.NewMemoryRevocations(now)

	s.Events = application.NewEventBus(logger)
	s.Audit = application.NewAuditService(s.Store, now, logger)
	s.Events.Subscribe(application.NewRoomStatusHandler(s.Store, now, logger))
	s.Events.Subscribe(s.Audit)

	s.Auth = application.NewAuthServiceWithLogger(s.Store, s.Issuer, s.Revocations, nil, HashPassword, now, logger)
	s.Users = application.NewUserService(s.Store, HashPassword, now)
	s.Rooms = application.NewRoomServiceWithLogger(s.Store, now, logger)
	s.Departments = application.NewDepartmentService(s.Store, now, logger)
	s.Bookings = application.NewBookingServiceWithLogger(s.Store, s.Store, s.Events, now, logger)
	s.Maintenance = application.NewMaintenanceService(s.Store, s.Store, s.Events, now, logger)
	s.Reports = application.NewReportService(s.Store, logger)
	return s
}

// SeedUser creates the account described by fixture and returns it.
func (s *Services) SeedUser(tb testing.TB, fixture UserFixture) application.User {
	tb.Helper()
	user, err := s.Users.CreateUser(context.Background(), application.CreateUserParams{
		Principal: application.Principal{Role: application.RoleAdmin},
		Input:     fixture.Input(),
	})
	if err != nil {
		tb.Fatalf("failed to seed user %s: %v", fixture.Email, err)
	}
	return user
}

// SeedRoom creates the room described by fixture and returns it.
func (s *Services) SeedRoom(tb testing.TB, fixture RoomFixture) application.Room {
	tb.Helper()
	room, err := s.Rooms.CreateRoom(context.Background(), application.CreateRoomParams{
		Principal: application.Principal{Role: application.RoleAdmin},
		Input:     fixture.Input(),
	})
	if err != nil {
		tb.Fatalf("failed to seed room %s: %v", fixture.Name, err)
	}
	return room
}

// SeedBooking books fixture on behalf of owner.
func (s *Services) SeedBooking(tb testing.TB, owner application.User, fixture BookingFixture) application.Booking {
	tb.Helper()
	booking, err := s.Bookings.CreateBooking(context.Background(), application.CreateBookingParams{
		Principal: application.Principal{UserID: owner.ID, Role: owner.Role},
		Input:     fixture.Input(),
	})
	if err != nil {
		tb.Fatalf("failed to seed booking %s: %v", fixture.Title, err)
	}
	return booking
}

// Token signs in as fixture's account and returns the bearer token.
func (s *Services) Token(tb testing.TB, fixture UserFixture) string {
	tb.Helper()
	result, err := s.Auth.Login(context.Background(), application.LoginParams{
		Email:    fixture.Email,
		Password: fixture.Password,
	})
	if err != nil {
		tb.Fatalf("failed to sign in as %s: %v", fixture.Email, err)
	}
	return result.Token.Value
}
