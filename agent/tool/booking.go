package tool

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/openai/openai-go/v2"

	storex "github.com/pinnaclehs/intake-agent/agent/store"
)

const (
	confirmationPrefix   = "PHS-"
	confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	confirmationLength   = 6

	// How many fresh confirmation numbers to try when the store reports a
	// collision before giving up on the booking.
	confirmationAttempts = 5
)

var validUrgencies = map[string]struct{}{
	"routine":   {},
	"soon":      {},
	"emergency": {},
}

var validCategories = map[string]struct{}{
	"plumbing":   {},
	"electrical": {},
	"hvac":       {},
}

type BookAppointmentArgs struct {
	CustomerName     string `json:"customer_name"`
	Address          string `json:"address"`
	Phone            string `json:"phone"`
	ServiceCategory  string `json:"service_category"`
	IssueDescription string `json:"issue_description"`
	PreferredDate    string `json:"preferred_date"`
	PreferredTime    string `json:"preferred_time"`
	Urgency          string `json:"urgency"`
}

func (a BookAppointmentArgs) validate() error {
	required := []struct {
		field string
		value string
	}{
		{"customer_name", a.CustomerName},
		{"address", a.Address},
		{"phone", a.Phone},
		{"service_category", a.ServiceCategory},
		{"issue_description", a.IssueDescription},
		{"preferred_date", a.PreferredDate},
		{"preferred_time", a.PreferredTime},
		{"urgency", a.Urgency},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.field)
		}
	}
	if _, ok := validCategories[strings.ToLower(a.ServiceCategory)]; !ok {
		return fmt.Errorf("service_category must be one of plumbing, electrical, hvac")
	}
	if _, ok := validUrgencies[strings.ToLower(a.Urgency)]; !ok {
		return fmt.Errorf("urgency must be one of routine, soon, emergency")
	}
	return nil
}

// BookingResult is the booking record plus the customer-facing confirmation
// message.
type BookingResult struct {
	storex.Booking
	Message string `json:"message"`
}

// bookAppointment persists exactly one booking and upserts the customer.
// The side effects happen here, once per call; the orchestrator never
// retries a tool call.
func (c *Catalog) bookAppointment(ctx context.Context, args BookAppointmentArgs) any {
	booking := storex.Booking{
		CustomerName:     args.CustomerName,
		Phone:            args.Phone,
		Address:          args.Address,
		ServiceCategory:  args.ServiceCategory,
		IssueDescription: args.IssueDescription,
		PreferredDate:    args.PreferredDate,
		PreferredTime:    args.PreferredTime,
		Urgency:          args.Urgency,
		Status:           "confirmed",
		CreatedAt:        c.now().UTC(),
	}

	saved := false
	for attempt := 0; attempt < confirmationAttempts; attempt++ {
		booking.ConfirmationNumber = confirmationPrefix + c.newConfirmation()
		err := c.store.SaveBooking(ctx, &booking)
		if err == nil {
			saved = true
			break
		}
		if !errors.Is(err, storex.ErrDuplicateConfirmation) {
			return errorResult{Error: fmt.Sprintf("failed to save booking: %v", err)}
		}
	}
	if !saved {
		return errorResult{Error: "failed to generate a unique confirmation number"}
	}

	address := args.Address
	if err := c.store.UpsertCustomer(ctx, args.CustomerName, args.Phone, &address); err != nil {
		// The booking row exists; report the partial failure rather than
		// pretending the whole call failed.
		return errorResult{Error: fmt.Sprintf("booking %s saved but customer record update failed: %v",
			booking.ConfirmationNumber, err)}
	}

	return BookingResult{
		Booking: booking,
		Message: fmt.Sprintf(
			"Appointment booked successfully! Confirmation number: %s. "+
				"A team member will call %s within 1 business hour to confirm the details.",
			booking.ConfirmationNumber, args.Phone,
		),
	}
}

func newConfirmationNumber() string {
	buf := make([]byte, confirmationLength)
	for i := range buf {
		buf[i] = confirmationAlphabet[rand.IntN(len(confirmationAlphabet))]
	}
	return string(buf)
}

func bookAppointmentDefinition() openai.FunctionDefinitionParam {
	return openai.FunctionDefinitionParam{
		Name: NameBookAppointment,
		Description: openai.String(
			"Book a service appointment once all customer details have been collected. " +
				"Only call this when you have the customer's name, address, phone, service needed, " +
				"and preferred date/time."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"customer_name": map[string]any{
					"type":        "string",
					"description": "Full name of the customer",
				},
				"address": map[string]any{
					"type":        "string",
					"description": "Full service address",
				},
				"phone": map[string]any{
					"type":        "string",
					"description": "Customer phone number",
				},
				"service_category": map[string]any{
					"type":        "string",
					"enum":        []string{"plumbing", "electrical", "hvac"},
					"description": "The category of service",
				},
				"issue_description": map[string]any{
					"type":        "string",
					"description": "Description of the issue",
				},
				"preferred_date": map[string]any{
					"type":        "string",
					"description": "Preferred date for service, e.g. '2025-10-15'",
				},
				"preferred_time": map[string]any{
					"type":        "string",
					"description": "Preferred time window, e.g. 'morning', 'afternoon', '10am-12pm'",
				},
				"urgency": map[string]any{
					"type":        "string",
					"enum":        []string{"routine", "soon", "emergency"},
					"description": "How urgent the service is",
				},
			},
			"required": []string{
				"customer_name", "address", "phone", "service_category",
				"issue_description", "preferred_date", "preferred_time", "urgency",
			},
		},
	}
}
