package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sahlsoft/erp-fatoora/internal/domain/party"
)

// Repository specific errors
var (
	ErrPartyNotFound     = errors.New("party not found")
	ErrPartyDuplicateKey = errors.New("party with the same VAT number already exists")
)

// PartyRepository implements the party.Repository interface
type PartyRepository struct {
	db *pgxpool.Pool
}

// NewPartyRepository creates a new PartyRepository instance
func NewPartyRepository(db *pgxpool.Pool) party.Repository {
	return &PartyRepository{db: db}
}

const partyColumns = `id, name, type, vat_number, cr_number, street, district,
	city, postal_code, phone, email, created_at, updated_at`

// Create implements party.Repository.Create
func (r *PartyRepository) Create(ctx context.Context, p *party.Party) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO parties (`+partyColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`,
		p.ID, p.Name, p.Type, p.VATNumber, p.CRNumber, p.Street, p.District,
		p.City, p.PostalCode, p.Phone, p.Email, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrPartyDuplicateKey
		}
		return fmt.Errorf("create party: %w", err)
	}
	return nil
}

// FindByID implements party.Repository.FindByID
func (r *PartyRepository) FindByID(ctx context.Context, id string) (*party.Party, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByVATNumber implements party.Repository.FindByVATNumber
func (r *PartyRepository) FindByVATNumber(ctx context.Context, vatNumber string) (*party.Party, error) {
	return r.findOne(ctx, "vat_number = $1", vatNumber)
}

func (r *PartyRepository) findOne(ctx context.Context, where string, arg any) (*party.Party, error) {
	var p party.Party
	err := r.db.QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE `+where, arg).Scan(
		&p.ID, &p.Name, &p.Type, &p.VATNumber, &p.CRNumber, &p.Street,
		&p.District, &p.City, &p.PostalCode, &p.Phone, &p.Email,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPartyNotFound
		}
		return nil, fmt.Errorf("find party: %w", err)
	}
	return &p, nil
}

// List implements party.Repository.List
func (r *PartyRepository) List(ctx context.Context, limit, offset int) ([]*party.Party, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+partyColumns+` FROM parties ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var parties []*party.Party
	for rows.Next() {
		var p party.Party
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Type, &p.VATNumber, &p.CRNumber, &p.Street,
			&p.District, &p.City, &p.PostalCode, &p.Phone, &p.Email,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		parties = append(parties, &p)
	}
	return parties, rows.Err()
}

// Update implements party.Repository.Update
func (r *PartyRepository) Update(ctx context.Context, p *party.Party) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE parties SET
			name = $2, type = $3, vat_number = $4, cr_number = $5,
			street = $6, district = $7, city = $8, postal_code = $9,
			phone = $10, email = $11, updated_at = $12
		WHERE id = $1`,
		p.ID, p.Name, p.Type, p.VATNumber, p.CRNumber, p.Street, p.District,
		p.City, p.PostalCode, p.Phone, p.Email, time.Now())
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPartyNotFound
	}
	return nil
}
