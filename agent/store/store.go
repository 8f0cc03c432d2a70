// Package store persists customers, conversation turns, and bookings to a
// local SQLite database through bun. Each exported operation is one implicit
// transaction; nothing in here requires cross-table atomicity.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	contractx "github.com/pinnaclehs/intake-agent/agent/contract"
)

var (
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrDuplicateConfirmation   = errors.New("confirmation number already exists")
	ErrInvalidPhone            = errors.New("customer phone is empty")
	errUniqueConfirmationConst = "bookings.confirmation_number"
)

// Store owns the durable records. It is safe for sequential use from one
// session; there is no shared mutable state beyond the database handle.
type Store struct {
	db *bun.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite handles one writer at a time; keeping a single connection avoids
	// SQLITE_BUSY on interleaved writes.
	sqldb.SetMaxOpenConns(1)
	return New(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema if it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	models := []any{
		(*Customer)(nil),
		(*conversationRow)(nil),
		(*Booking)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

/* ------------------------------- customers ------------------------------- */

// UpsertCustomer inserts or updates the record for the customer's phone.
// The name always wins; an absent address preserves the stored one.
func (s *Store) UpsertCustomer(ctx context.Context, name, phone string, address *string) error {
	if strings.TrimSpace(phone) == "" {
		return ErrInvalidPhone
	}
	customer := &Customer{
		Name:    name,
		Phone:   phone,
		Address: address,
	}
	_, err := s.db.NewInsert().
		Model(customer).
		On("CONFLICT (phone) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("address = COALESCE(EXCLUDED.address, address)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert customer phone=%s: %w", phone, err)
	}
	return nil
}

// GetCustomer returns ErrCustomerNotFound when no record exists for phone.
func (s *Store) GetCustomer(ctx context.Context, phone string) (*Customer, error) {
	customer := new(Customer)
	err := s.db.NewSelect().
		Model(customer).
		Where("phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select customer phone=%s: %w", phone, err)
	}
	return customer, nil
}

/* ----------------------------- conversations ----------------------------- */

// SaveTurn appends one turn to the customer's conversation log.
func (s *Store) SaveTurn(ctx context.Context, phone string, turn contractx.Turn) error {
	if strings.TrimSpace(phone) == "" {
		return ErrInvalidPhone
	}

	row := &conversationRow{
		CustomerPhone: phone,
		Role:          string(turn.Role),
	}
	if turn.Content != "" {
		row.Content = sql.NullString{String: turn.Content, Valid: true}
	}
	if len(turn.ToolCalls) > 0 {
		encoded, err := json.Marshal(turn.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		row.ToolCalls = sql.NullString{String: string(encoded), Valid: true}
	}
	if turn.ToolCallID != "" {
		row.ToolCallID = sql.NullString{String: turn.ToolCallID, Valid: true}
	}

	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert turn role=%s: %v", contractx.ErrStoreWrite, turn.Role, err)
	}
	return nil
}

// History returns at most limit of the customer's most recent turns in
// chronological (oldest-first) order.
func (s *Store) History(ctx context.Context, phone string, limit int) ([]contractx.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []conversationRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("customer_phone = ?", phone).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select history phone=%s: %w", phone, err)
	}

	// Rows come newest-first; reverse into insertion order.
	turns := make([]contractx.Turn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		turn, err := rows[i].toTurn()
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *conversationRow) toTurn() (contractx.Turn, error) {
	turn := contractx.Turn{
		Role:    contractx.Role(r.Role),
		Content: r.Content.String,
	}
	if r.ToolCalls.Valid {
		if err := json.Unmarshal([]byte(r.ToolCalls.String), &turn.ToolCalls); err != nil {
			return contractx.Turn{}, fmt.Errorf("unmarshal tool calls for row id=%d: %w", r.ID, err)
		}
	}
	if r.ToolCallID.Valid {
		turn.ToolCallID = r.ToolCallID.String
	}
	return turn, nil
}

/* -------------------------------- bookings ------------------------------- */

// SaveBooking inserts a new booking. A confirmation-number collision is
// reported as ErrDuplicateConfirmation so the caller can regenerate.
func (s *Store) SaveBooking(ctx context.Context, booking *Booking) error {
	if booking == nil {
		return errors.New("booking is nil")
	}
	if _, err := s.db.NewInsert().Model(booking).Exec(ctx); err != nil {
		if isUniqueViolation(err, errUniqueConfirmationConst) {
			return fmt.Errorf("%w: %s", ErrDuplicateConfirmation, booking.ConfirmationNumber)
		}
		return fmt.Errorf("insert booking %s: %w", booking.ConfirmationNumber, err)
	}
	return nil
}

// BookingsByPhone returns all of a customer's bookings newest-first.
func (s *Store) BookingsByPhone(ctx context.Context, phone string) ([]Booking, error) {
	var bookings []Booking
	err := s.db.NewSelect().
		Model(&bookings).
		Where("customer_phone = ?", phone).
		Order("created_at DESC").
		Order("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select bookings phone=%s: %w", phone, err)
	}
	return bookings, nil
}

// isUniqueViolation matches the SQLite unique-constraint message for the
// given column. modernc.org/sqlite does not export a typed error for this.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
