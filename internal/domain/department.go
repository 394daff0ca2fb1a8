package domain

import "time"

// Department is a routing target for tickets.
type Department struct {
	ID          string
	Name        string
	Description string
	Color       string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
