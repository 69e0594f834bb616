package services

import "doin-challenge/models"

// Actor is the caller of a service operation as seen by the HTTP layer.
// A zero UserID means an anonymous caller.
type Actor struct {
	UserID    string
	Role      models.UserRole
	RequestID string
	IPAddress string
	UserAgent string
}

func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) requireUser() error {
	if a.UserID == "" {
		return ErrUnauthenticated
	}
	return nil
}
