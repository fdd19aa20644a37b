package certificate

import "context"

// Repository defines persistence operations for CSID credentials
type Repository interface {
	Create(ctx context.Context, cert *Certificate) error
	FindByID(ctx context.Context, id string) (*Certificate, error)
	FindActive(ctx context.Context) (*Certificate, error)
	List(ctx context.Context, limit, offset int) ([]*Certificate, error)
	Update(ctx context.Context, cert *Certificate) error
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}
