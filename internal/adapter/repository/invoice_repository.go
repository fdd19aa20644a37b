package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sahlsoft/erp-fatoora/internal/domain/invoice"
)

// Repository specific errors
var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInvoiceDuplicateKey = errors.New("invoice with the same number already exists")
	// ErrInvoiceConflict is returned when the optimistic status check fails:
	// another writer certified or closed the invoice first.
	ErrInvoiceConflict = errors.New("invoice status changed concurrently")
)

// firstPreviousHash is the PIH of the very first invoice in the chain, as
// the authority defines it: Base64 over the hex SHA-256 of "0".
const firstPreviousHash = "NWZlY2ViNjZmZmM4NmYzOGQ5NTI3ODZjNmQ2OTZjNzljMmRiYzIzOWRkNGU5MWI0NjcyOWQ3M2EyN2ZiNTdlOQ=="

// InvoiceRepository implements the invoice.Repository interface
type InvoiceRepository struct {
	db *pgxpool.Pool
}

// NewInvoiceRepository creates a new InvoiceRepository instance
func NewInvoiceRepository(db *pgxpool.Pool) invoice.Repository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, number, uuid, status, type_code, subtype_code, currency,
	issue_date, supply_date, due_date, seller_id, buyer_id, counter,
	previous_hash, subtotal, vat_total, total, notes, terms,
	qr_code, invoice_hash, signed_xml, certified_at, created_at, updated_at`

// Create implements invoice.Repository.Create
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO invoices (`+invoiceColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)`,
		inv.ID, inv.Number, inv.UUID, inv.Status, inv.TypeCode, inv.SubtypeCode,
		inv.Currency, inv.IssueDate, inv.SupplyDate, inv.DueDate, inv.SellerID,
		inv.BuyerID, inv.Counter, inv.PreviousHash, inv.Subtotal, inv.VATTotal,
		inv.Total, inv.Notes, inv.Terms, inv.QRCode, inv.InvoiceHash,
		inv.SignedXML, inv.CertifiedAt, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrInvoiceDuplicateKey
		}
		return fmt.Errorf("create invoice: %w", err)
	}

	if err := r.insertLines(ctx, tx, inv); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByID implements invoice.Repository.FindByID
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByNumber implements invoice.Repository.FindByNumber
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return r.findOne(ctx, "number = $1", number)
}

func (r *InvoiceRepository) findOne(ctx context.Context, where string, arg any) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE `+where, arg).Scan(
		&inv.ID, &inv.Number, &inv.UUID, &inv.Status, &inv.TypeCode,
		&inv.SubtypeCode, &inv.Currency, &inv.IssueDate, &inv.SupplyDate,
		&inv.DueDate, &inv.SellerID, &inv.BuyerID, &inv.Counter,
		&inv.PreviousHash, &inv.Subtotal, &inv.VATTotal, &inv.Total,
		&inv.Notes, &inv.Terms, &inv.QRCode, &inv.InvoiceHash,
		&inv.SignedXML, &inv.CertifiedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}

	if err := r.loadLines(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// List implements invoice.Repository.List. An empty status lists all invoices.
func (r *InvoiceRepository) List(ctx context.Context, status invoice.Status, limit, offset int) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		var inv invoice.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.Number, &inv.UUID, &inv.Status, &inv.TypeCode,
			&inv.SubtypeCode, &inv.Currency, &inv.IssueDate, &inv.SupplyDate,
			&inv.DueDate, &inv.SellerID, &inv.BuyerID, &inv.Counter,
			&inv.PreviousHash, &inv.Subtotal, &inv.VATTotal, &inv.Total,
			&inv.Notes, &inv.Terms, &inv.QRCode, &inv.InvoiceHash,
			&inv.SignedXML, &inv.CertifiedAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	for _, inv := range invoices {
		if err := r.loadLines(ctx, inv); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

// Count implements invoice.Repository.Count
func (r *InvoiceRepository) Count(ctx context.Context, status invoice.Status) (int, error) {
	query := `SELECT COUNT(*) FROM invoices`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return count, nil
}

// Update implements invoice.Repository.Update. Certified invoices are
// rejected at the database level too, not only by the domain entity.
func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE invoices SET
			number = $2, status = $3, type_code = $4, subtype_code = $5,
			currency = $6, issue_date = $7, supply_date = $8, due_date = $9,
			seller_id = $10, buyer_id = $11, subtotal = $12, vat_total = $13,
			total = $14, notes = $15, terms = $16, updated_at = $17
		WHERE id = $1 AND status NOT IN ('certified')`,
		inv.ID, inv.Number, inv.Status, inv.TypeCode, inv.SubtypeCode,
		inv.Currency, inv.IssueDate, inv.SupplyDate, inv.DueDate,
		inv.SellerID, inv.BuyerID, inv.Subtotal, inv.VATTotal, inv.Total,
		inv.Notes, inv.Terms, time.Now())
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("delete invoice lines: %w", err)
	}
	if err := r.insertLines(ctx, tx, inv); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateStatus implements invoice.Repository.UpdateStatus
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status invoice.Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now())
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// NextCounter implements invoice.Repository.NextCounter. The counter only
// advances over certified invoices; a partial unique index on counter keeps
// two concurrent certifications from claiming the same value, the loser
// retries.
func (r *InvoiceRepository) NextCounter(ctx context.Context) (int64, string, error) {
	var counter int64
	var previousHash string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(counter), 0) + 1,
			COALESCE((SELECT invoice_hash FROM invoices
				WHERE invoice_hash <> ''
				ORDER BY counter DESC LIMIT 1), $1)
		FROM invoices WHERE invoice_hash <> ''`,
		firstPreviousHash).Scan(&counter, &previousHash)
	if err != nil {
		return 0, "", fmt.Errorf("next invoice counter: %w", err)
	}
	return counter, previousHash, nil
}

// SaveCertification implements invoice.Repository.SaveCertification. The
// WHERE clause is the single-winner guard: only an invoice still in a
// certifiable status accepts the artifacts.
func (r *InvoiceRepository) SaveCertification(ctx context.Context, inv *invoice.Invoice) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET
			status = 'certified', counter = $2, previous_hash = $3,
			qr_code = $4, invoice_hash = $5, signed_xml = $6,
			certified_at = $7, updated_at = $8
		WHERE id = $1 AND status IN ('draft', 'issued')`,
		inv.ID, inv.Counter, inv.PreviousHash, inv.QRCode, inv.InvoiceHash,
		inv.SignedXML, inv.CertifiedAt, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrInvoiceConflict
		}
		return fmt.Errorf("save certification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceConflict
	}
	return nil
}

func (r *InvoiceRepository) insertLines(ctx context.Context, tx pgx.Tx, inv *invoice.Invoice) error {
	for idx, line := range inv.Lines {
		_, err := tx.Exec(ctx,
			`INSERT INTO invoice_lines (
				invoice_id, position, description, quantity, unit_price,
				discount_rate, margin_rate, vat_rate, net_unit_price,
				vat_amount, line_total, total_with_vat
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			inv.ID, idx+1, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountRate, line.MarginRate, line.VATRate,
			line.NetUnitPrice, line.VATAmount, line.LineTotal, line.TotalWithVAT)
		if err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return nil
}

func (r *InvoiceRepository) loadLines(ctx context.Context, inv *invoice.Invoice) error {
	rows, err := r.db.Query(ctx,
		`SELECT description, quantity, unit_price, discount_rate, margin_rate,
			vat_rate, net_unit_price, vat_amount, line_total, total_with_vat
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`,
		inv.ID)
	if err != nil {
		return fmt.Errorf("load invoice lines: %w", err)
	}
	defer rows.Close()

	inv.Lines = nil
	for rows.Next() {
		var line invoice.LineItem
		if err := rows.Scan(
			&line.Description, &line.Quantity, &line.UnitPrice,
			&line.DiscountRate, &line.MarginRate, &line.VATRate,
			&line.NetUnitPrice, &line.VATAmount, &line.LineTotal,
			&line.TotalWithVAT); err != nil {
			return fmt.Errorf("scan invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, line)
	}
	return rows.Err()
}
