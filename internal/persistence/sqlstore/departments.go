package sqlstore

import (
	"context"

	"github.com/example/campus-rooms/internal/application"
)

type departmentRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Code         string `db:"code"`
	Description  string `db:"description"`
	ContactEmail string `db:"contact_email"`
	ContactPhone string `db:"contact_phone"`
	Status       string `db:"status"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r departmentRow) department() application.Department {
	return application.Department{
		ID:           r.ID,
		Name:         r.Name,
		Code:         r.Code,
		Description:  r.Description,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		Status:       application.DepartmentStatus(r.Status),
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

const departmentColumns = `id, name, code, description, contact_email, contact_phone, status, created_at, updated_at`

// CreateDepartment inserts a department.
func (s *Store) CreateDepartment(ctx context.Context, d application.Department) (application.Department, error) {
	query := s.db.Rebind(`INSERT INTO departments (name, code, description, contact_email, contact_phone, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.GetContext(ctx, &d.ID, query,
		d.Name, d.Code, d.Description, d.ContactEmail, d.ContactPhone, string(d.Status),
		toMillis(d.CreatedAt), toMillis(d.UpdatedAt))
	if err != nil {
		return application.Department{}, mapError(err)
	}
	return d, nil
}

// GetDepartment loads a department by id.
func (s *Store) GetDepartment(ctx context.Context, id int64) (application.Department, error) {
	var row departmentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+departmentColumns+` FROM departments WHERE id = ?`), id)
	if err != nil {
		return application.Department{}, mapError(err)
	}
	return row.department(), nil
}

// UpdateDepartment stores every editable department field.
func (s *Store) UpdateDepartment(ctx context.Context, d application.Department) (application.Department, error) {
	query := s.db.Rebind(`UPDATE departments SET name = ?, code = ?, description = ?, contact_email = ?,
		contact_phone = ?, status = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		d.Name, d.Code, d.Description, d.ContactEmail, d.ContactPhone, string(d.Status), toMillis(d.UpdatedAt), d.ID)
	if err := expectAffected(res, err); err != nil {
		return application.Department{}, err
	}
	return s.GetDepartment(ctx, d.ID)
}

// DeleteDepartment removes a department. Rooms still referencing it make this fail.
func (s *Store) DeleteDepartment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM departments WHERE id = ?`), id)
	return expectAffected(res, err)
}

// ListDepartments returns every department ordered by name.
func (s *Store) ListDepartments(ctx context.Context) ([]application.Department, error) {
	var rows []departmentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+departmentColumns+` FROM departments ORDER BY name, id`); err != nil {
		return nil, mapError(err)
	}
	out := make([]application.Department, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.department())
	}
	return out, nil
}

// CountRoomsInDepartment counts rooms assigned to a department.
func (s *Store) CountRoomsInDepartment(ctx context.Context, id int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM rooms WHERE department_id = ?`), id); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
