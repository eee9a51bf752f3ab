package application

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/campus-rooms/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, at time.Time) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]User, error)
}

// UserInput captures caller provided user fields. Password is optional on update.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Status   string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update an existing user.
type UpdateUserParams struct {
	Principal Principal
	UserID    int64
	Input     UserInput
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users UserRepository
	hash  PasswordHasher
	now   func() time.Time
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hash PasswordHasher, now func() time.Time) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, hash: hash, now: now}
}

// CreateUser validates input and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if !params.Principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}
	return s.createUser(ctx, params.Input)
}

// Bootstrap creates an administrator without a calling principal. It is
// used by the command line to seed the first account.
func (s *UserService) Bootstrap(ctx context.Context, input UserInput) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	input.Role = string(RoleAdmin)
	input.Status = string(UserActive)
	return s.createUser(ctx, input)
}

func (s *UserService) createUser(ctx context.Context, input UserInput) (User, error) {
	normalized := normalizeUserInput(input)
	vErr := validateUserInput(normalized)
	vErr.merge(validatePassword("password", normalized.Password))
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(normalized.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		Name:      normalized.Name,
		Email:     normalized.Email,
		Role:      Role(normalized.Role),
		Status:    UserStatus(normalized.Status),
		CreatedAt: now,
		UpdatedAt: now,
	}

	persisted, err := s.users.CreateUser(ctx, user, hash)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return persisted, nil
}

// UpdateUser validates input and updates an existing user for administrators.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if !params.Principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized)
	if normalized.Password != "" {
		vErr.merge(validatePassword("password", normalized.Password))
	}
	if params.Principal.UserID == existing.ID {
		if Role(normalized.Role) != existing.Role {
			vErr.add("role", "you cannot change your own role")
		}
		if UserStatus(normalized.Status) != UserActive {
			vErr.add("status", "you cannot deactivate your own account")
		}
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	updated := existing
	updated.Name = normalized.Name
	updated.Email = normalized.Email
	updated.Role = Role(normalized.Role)
	updated.Status = UserStatus(normalized.Status)
	updated.UpdatedAt = s.now()

	persisted, err := s.users.UpdateUser(ctx, updated)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	if normalized.Password != "" {
		hash, err := s.hash(normalized.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.UpdatePassword(ctx, existing.ID, hash, updated.UpdatedAt); err != nil {
			return User{}, mapUserRepoError(err)
		}
	}

	return persisted, nil
}

// SetUserStatus activates or deactivates an account. Administrators cannot deactivate themselves.
func (s *UserService) SetUserStatus(ctx context.Context, principal Principal, userID int64, raw string) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if !principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}

	status := UserStatus(strings.ToLower(strings.TrimSpace(raw)))
	if status != UserActive && status != UserInactive {
		return User{}, NewValidationError("status", "must be active or inactive")
	}
	if principal.UserID == userID && status != UserActive {
		return User{}, NewValidationError("status", "you cannot deactivate your own account")
	}

	existing, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	existing.Status = status
	existing.UpdatedAt = s.now()

	persisted, err := s.users.UpdateUser(ctx, existing)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return persisted, nil
}

// DeleteUser removes a user when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID int64) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if principal.UserID == userID {
		return NewValidationError("id", "you cannot delete your own account")
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return mapUserRepoError(err)
	}
	return nil
}

// GetUser returns a user to an administrator or to the user themself.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID int64) (User, error) {
	if s == nil || s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		return User{}, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// ListUsers returns all users sorted by name for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user repository not configured")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		if strings.EqualFold(users[i].Name, users[j].Name) {
			return users[i].ID < users[j].ID
		}
		return strings.ToLower(users[i].Name) < strings.ToLower(users[j].Name)
	})
	return users, nil
}

func normalizeUserInput(input UserInput) UserInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Role = strings.ToLower(strings.TrimSpace(input.Role))
	input.Status = strings.ToLower(strings.TrimSpace(input.Status))
	if input.Role == "" {
		input.Role = string(RoleLecturer)
	}
	if input.Status == "" {
		input.Status = string(UserActive)
	}
	return input
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		vErr.add("email", "must be a valid email address")
	}
	if _, ok := ParseRole(input.Role); !ok {
		vErr.add("role", "must be one of admin, lecturer, maintenance")
	}
	switch UserStatus(input.Status) {
	case UserActive, UserInactive:
	default:
		vErr.add("status", "must be active or inactive")
	}

	return vErr
}

func mapUserRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("user: %w", ErrNotFound)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("email: %w", ErrAlreadyExists)
	}
	return err
}
