package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"

	storex "github.com/pinnaclehs/intake-agent/agent/store"
)

type LookupCustomerArgs struct {
	Phone string `json:"phone"`
}

func (a LookupCustomerArgs) validate() error {
	if strings.TrimSpace(a.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	return nil
}

type LookupCustomerResult struct {
	Found            bool             `json:"found"`
	Customer         *storex.Customer `json:"customer,omitempty"`
	PreviousBookings []storex.Booking `json:"previous_bookings"`
	Message          string           `json:"message"`
}

// lookupCustomer distinguishes "unknown phone" from "known customer with no
// bookings": the latter is found=true with an empty bookings list.
func (c *Catalog) lookupCustomer(ctx context.Context, args LookupCustomerArgs) any {
	customer, err := c.store.GetCustomer(ctx, args.Phone)
	if errors.Is(err, storex.ErrCustomerNotFound) {
		return LookupCustomerResult{
			Found:   false,
			Message: "No existing customer found with this phone number.",
		}
	}
	if err != nil {
		return errorResult{Error: fmt.Sprintf("customer lookup failed: %v", err)}
	}

	bookings, err := c.store.BookingsByPhone(ctx, args.Phone)
	if err != nil {
		return errorResult{Error: fmt.Sprintf("booking history lookup failed: %v", err)}
	}
	if bookings == nil {
		bookings = []storex.Booking{}
	}

	return LookupCustomerResult{
		Found:            true,
		Customer:         customer,
		PreviousBookings: bookings,
		Message: fmt.Sprintf("Returning customer: %s. They have %d previous booking(s).",
			customer.Name, len(bookings)),
	}
}

func lookupCustomerDefinition() openai.FunctionDefinitionParam {
	return openai.FunctionDefinitionParam{
		Name: NameLookupCustomer,
		Description: openai.String(
			"Look up a customer by phone number to check if they are a returning customer. " +
				"Call this when a customer provides their phone number to see if they have previous bookings."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"phone": map[string]any{
					"type":        "string",
					"description": "The customer's phone number",
				},
			},
			"required": []string{"phone"},
		},
	}
}
