// Package authz holds the role and college scope rules shared by every handler.
package authz

import (
	"errors"

	"github.com/campusconnect/backend/internal/models"
)

var ErrForbidden = errors.New("forbidden")

// Caller is the authenticated principal as loaded from the user record.
type Caller struct {
	ID      string
	Role    models.Role
	College string
}

func CallerFromUser(u *models.User) Caller {
	return Caller{ID: u.ID, Role: u.Role, College: u.College}
}

// Authorize requires c.Role to be one of roles. When scope is non-empty a
// college_admin must additionally belong to that college; system_admin is never scoped.
func Authorize(c Caller, roles []models.Role, scope ...string) error {
	if !hasRole(c.Role, roles) {
		return ErrForbidden
	}
	if c.Role != models.RoleCollegeAdmin {
		return nil
	}
	for _, college := range scope {
		if college == "" {
			continue
		}
		if college != c.College {
			return ErrForbidden
		}
	}
	return nil
}

// CanModify is the ownership rule for mutating a resource: its creator, a college_admin
// of one of its colleges, or any system_admin.
func CanModify(c Caller, createdBy string, colleges []string) bool {
	switch {
	case c.ID != "" && c.ID == createdBy:
		return true
	case c.Role == models.RoleSystemAdmin:
		return true
	case c.Role == models.RoleCollegeAdmin && c.College != "":
		for _, college := range colleges {
			if college == c.College {
				return true
			}
		}
	}
	return false
}

func hasRole(role models.Role, roles []models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
