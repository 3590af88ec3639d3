package console

import (
	"context"
	"fmt"
	"slices"
)

// Directory is the list of service names fetched once per page load. It is
// never modified after LoadDirectory returns.
type Directory struct {
	names []string
}

// NewDirectory builds a Directory from names in backend order.
func NewDirectory(names []string) *Directory {
	return &Directory{names: slices.Clone(names)}
}

// LoadDirectory fetches the service names from the backend.
func LoadDirectory(ctx context.Context, b Backend) (*Directory, error) {
	names, err := b.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return NewDirectory(names), nil
}

// Names returns the service names in backend order.
func (d *Directory) Names() []string {
	return slices.Clone(d.names)
}

// Len returns the number of services.
func (d *Directory) Len() int {
	return len(d.names)
}

// Contains reports whether name is a known service.
func (d *Directory) Contains(name string) bool {
	return slices.Contains(d.names, name)
}
