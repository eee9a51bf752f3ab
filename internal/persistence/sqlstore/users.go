package sqlstore

import (
	"context"
	"time"

	"github.com/example/campus-rooms/internal/application"
)

type userRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	Status       string `db:"status"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r userRow) user() application.User {
	return application.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      application.Role(r.Role),
		Status:    application.UserStatus(r.Status),
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

const userColumns = `id, name, email, password_hash, role, status, created_at, updated_at`

// CreateUser inserts a user with its password hash.
func (s *Store) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	query := s.db.Rebind(`INSERT INTO users (name, email, password_hash, role, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.GetContext(ctx, &user.ID, query,
		user.Name, user.Email, passwordHash, string(user.Role), string(user.Status),
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt))
	if err != nil {
		return application.User{}, mapError(err)
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (application.User, error) {
	creds, err := s.GetUserCredentials(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return creds.User, nil
}

// GetUserCredentials loads a user with its password hash.
func (s *Store) GetUserCredentials(ctx context.Context, id int64) (application.UserCredentials, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return application.UserCredentials{}, mapError(err)
	}
	return application.UserCredentials{User: row.user(), PasswordHash: row.PasswordHash}, nil
}

// GetUserCredentialsByEmail loads a user by its (lower-cased) email.
func (s *Store) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		return application.UserCredentials{}, mapError(err)
	}
	return application.UserCredentials{User: row.user(), PasswordHash: row.PasswordHash}, nil
}

// UpdateUser stores profile, role and status changes.
func (s *Store) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	query := s.db.Rebind(`UPDATE users SET name = ?, email = ?, role = ?, status = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		user.Name, user.Email, string(user.Role), string(user.Status), toMillis(user.UpdatedAt), user.ID)
	if err := expectAffected(res, err); err != nil {
		return application.User{}, err
	}
	return s.GetUser(ctx, user.ID)
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		passwordHash, toMillis(at), id)
	return expectAffected(res, err)
}

// DeleteUser removes a user together with their bookings.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	return expectAffected(res, err)
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]application.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY name, id`); err != nil {
		return nil, mapError(err)
	}
	users := make([]application.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

// CountUsers reports how many accounts exist.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
