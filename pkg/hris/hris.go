// Package hris integrates with the HR system. The device side correlates
// users with employees through the employee identification number, which
// terminals store as the user id.
package hris

import "context"

// Employee is one HRIS employee as seen by the sync path.
type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Directory lists the employees eligible for terminal enrollment.
type Directory interface {
	Employees(ctx context.Context) ([]Employee, error)
}
