package store

import (
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// Customer is keyed by phone number. Re-saving the same phone overwrites the
// name and keeps the previous address when the new one is absent.
type Customer struct {
	bun.BaseModel `bun:"table:customers" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     string    `bun:"phone,notnull,unique" json:"phone"`
	Address   *string   `bun:"address" json:"address"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Booking is created exactly once per successful booking tool call and never
// mutated afterward.
type Booking struct {
	bun.BaseModel `bun:"table:bookings" json:"-"`

	ID                 int64     `bun:"id,pk,autoincrement" json:"-"`
	ConfirmationNumber string    `bun:"confirmation_number,notnull,unique" json:"confirmation_number"`
	CustomerName       string    `bun:"customer_name,notnull" json:"customer_name"`
	Phone              string    `bun:"customer_phone,notnull" json:"phone"`
	Address            string    `bun:"address,notnull" json:"address"`
	ServiceCategory    string    `bun:"service_category,notnull" json:"service_category"`
	IssueDescription   string    `bun:"issue_description,notnull" json:"issue_description"`
	PreferredDate      string    `bun:"preferred_date,notnull" json:"preferred_date"`
	PreferredTime      string    `bun:"preferred_time,notnull" json:"preferred_time"`
	Urgency            string    `bun:"urgency,notnull" json:"urgency"`
	Status             string    `bun:"status,notnull,default:'confirmed'" json:"status"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// conversationRow is the append-only persisted form of a contract.Turn.
// Tool calls are stored as a JSON array in a text column.
type conversationRow struct {
	bun.BaseModel `bun:"table:conversations"`

	ID            int64          `bun:"id,pk,autoincrement"`
	CustomerPhone string         `bun:"customer_phone,notnull"`
	Role          string         `bun:"role,notnull"`
	Content       sql.NullString `bun:"content"`
	ToolCalls     sql.NullString `bun:"tool_calls"`
	ToolCallID    sql.NullString `bun:"tool_call_id"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
