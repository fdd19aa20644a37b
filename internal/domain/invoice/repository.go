package invoice

import "context"

// Repository defines persistence operations for invoices
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id string) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Invoice, error)
	Count(ctx context.Context, status Status) (int, error)
	Update(ctx context.Context, inv *Invoice) error
	UpdateStatus(ctx context.Context, id string, status Status) error

	// NextCounter returns the next ZATCA invoice counter value (ICV) and the
	// hash of the most recently certified invoice (PIH).
	NextCounter(ctx context.Context) (int64, string, error)

	// SaveCertification persists the certified artifacts under an optimistic
	// status check: the write succeeds only if the stored status still allows
	// the transition, which serializes concurrent certification attempts on
	// the same invoice.
	SaveCertification(ctx context.Context, inv *Invoice) error
}
