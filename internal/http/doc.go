// Package http exposes the room booking API over chi.
//
// Every response uses the envelope {"success","message","data","errors"}.
// Validation failures answer 400 with per-field errors and booking conflicts
// answer 400 with the message "Room is not available during the selected time".
//
// Routes:
//   - POST /auth/login (rate limited per client), POST /auth/logout,
//     GET /auth/me, PUT /auth/password
//   - /bookings: create, update, cancel (DELETE /{id}), my-bookings; listing,
//     status changes and permanent deletion are admin only
//   - /rooms: list, get, availability and the available search for everyone;
//     mutations are admin only
//   - /departments, /users, /maintenance: CRUD with role checks
//   - /reports: room-utilization, booking-summary, maintenance-summary and the
//     admin-only department-usage
//   - GET /audit-logs (admin), GET /health, GET /metrics
//
// Request and response DTOs live next to their handlers.
package http
