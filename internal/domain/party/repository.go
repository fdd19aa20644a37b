package party

import "context"

// Repository defines persistence operations for parties
type Repository interface {
	Create(ctx context.Context, p *Party) error
	FindByID(ctx context.Context, id string) (*Party, error)
	FindByVATNumber(ctx context.Context, vatNumber string) (*Party, error)
	List(ctx context.Context, limit, offset int) ([]*Party, error)
	Update(ctx context.Context, p *Party) error
}
