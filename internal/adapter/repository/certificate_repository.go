package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sahlsoft/erp-fatoora/internal/domain/certificate"
)

// Repository specific errors
var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrNoActiveCertificate = errors.New("no active signing certificate")
)

// CertificateRepository implements the certificate.Repository interface
type CertificateRepository struct {
	db *pgxpool.Pool
}

// NewCertificateRepository creates a new CertificateRepository instance
func NewCertificateRepository(db *pgxpool.Pool) certificate.Repository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, name, pem_data, password, expiration_date,
	is_active, created_at, updated_at`

// Create implements certificate.Repository.Create
func (r *CertificateRepository) Create(ctx context.Context, cert *certificate.Certificate) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO certificates (`+certificateColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`,
		cert.ID, cert.Name, cert.PEMData, cert.Password, cert.ExpirationDate,
		cert.IsActive, cert.CreatedAt, cert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// FindByID implements certificate.Repository.FindByID
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*certificate.Certificate, error) {
	cert, err := r.findOne(ctx, "id = $1", id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCertificateNotFound
	}
	return cert, err
}

// FindActive implements certificate.Repository.FindActive. At most one
// credential is active at a time; activation deactivates the others.
func (r *CertificateRepository) FindActive(ctx context.Context) (*certificate.Certificate, error) {
	cert, err := r.findOne(ctx, "is_active = true", nil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveCertificate
	}
	return cert, err
}

func (r *CertificateRepository) findOne(ctx context.Context, where string, arg any) (*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE ` + where +
		` ORDER BY created_at DESC LIMIT 1`
	var row pgx.Row
	if arg != nil {
		row = r.db.QueryRow(ctx, query, arg)
	} else {
		row = r.db.QueryRow(ctx, query)
	}

	var cert certificate.Certificate
	err := row.Scan(
		&cert.ID, &cert.Name, &cert.PEMData, &cert.Password,
		&cert.ExpirationDate, &cert.IsActive, &cert.CreatedAt, &cert.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &cert, nil
}

// List implements certificate.Repository.List
func (r *CertificateRepository) List(ctx context.Context, limit, offset int) ([]*certificate.Certificate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+certificateColumns+` FROM certificates
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var certs []*certificate.Certificate
	for rows.Next() {
		var cert certificate.Certificate
		if err := rows.Scan(
			&cert.ID, &cert.Name, &cert.PEMData, &cert.Password,
			&cert.ExpirationDate, &cert.IsActive, &cert.CreatedAt,
			&cert.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		certs = append(certs, &cert)
	}
	return certs, rows.Err()
}

// Update implements certificate.Repository.Update
func (r *CertificateRepository) Update(ctx context.Context, cert *certificate.Certificate) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE certificates SET
			name = $2, pem_data = $3, password = $4, expiration_date = $5,
			is_active = $6, updated_at = $7
		WHERE id = $1`,
		cert.ID, cert.Name, cert.PEMData, cert.Password, cert.ExpirationDate,
		cert.IsActive, time.Now())
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

// Activate implements certificate.Repository.Activate. The swap happens in
// one transaction so there is never a window with two active credentials.
func (r *CertificateRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE certificates SET is_active = false, updated_at = $1 WHERE is_active = true`,
		time.Now()); err != nil {
		return fmt.Errorf("deactivate certificates: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE certificates SET is_active = true, updated_at = $2 WHERE id = $1`,
		id, time.Now())
	if err != nil {
		return fmt.Errorf("activate certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCertificateNotFound
	}
	return tx.Commit(ctx)
}

// Deactivate implements certificate.Repository.Deactivate
func (r *CertificateRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE certificates SET is_active = false, updated_at = $2 WHERE id = $1`,
		id, time.Now())
	if err != nil {
		return fmt.Errorf("deactivate certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCertificateNotFound
	}
	return nil
}
