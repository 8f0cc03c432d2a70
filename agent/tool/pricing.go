package tool

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
)

type priceRange struct {
	Low  int
	High int
}

type priceEntry struct {
	key string
	rng priceRange
}

// Price tables are ordered slices, not maps: matching is a linear scan and
// the first containment hit in declaration order wins.
var pricingTables = map[string][]priceEntry{
	"plumbing": {
		{"leaky faucet", priceRange{100, 200}},
		{"faucet repair", priceRange{100, 200}},
		{"toilet repair", priceRange{150, 300}},
		{"toilet", priceRange{150, 300}},
		{"drain cleaning", priceRange{150, 300}},
		{"clogged drain", priceRange{150, 300}},
		{"water heater repair", priceRange{200, 500}},
		{"water heater replacement", priceRange{1200, 3000}},
		{"pipe repair", priceRange{200, 600}},
		{"burst pipe", priceRange{200, 600}},
		{"sewer line", priceRange{1000, 5000}},
	},
	"electrical": {
		{"outlet repair", priceRange{100, 200}},
		{"switch repair", priceRange{100, 200}},
		{"light fixture", priceRange{150, 350}},
		{"light installation", priceRange{150, 350}},
		{"circuit breaker", priceRange{200, 400}},
		{"panel upgrade", priceRange{1500, 3000}},
		{"rewiring", priceRange{8000, 15000}},
	},
	"hvac": {
		{"ac tune-up", priceRange{100, 200}},
		{"ac tuneup", priceRange{100, 200}},
		{"ac repair", priceRange{200, 600}},
		{"ac not cooling", priceRange{200, 600}},
		{"furnace repair", priceRange{200, 500}},
		{"no heat", priceRange{200, 500}},
		{"ac replacement", priceRange{3500, 7000}},
		{"hvac replacement", priceRange{7000, 15000}},
	},
}

type PriceEstimateArgs struct {
	ServiceCategory string `json:"service_category"`
	JobType         string `json:"job_type"`
}

func (a PriceEstimateArgs) validate() error {
	if strings.TrimSpace(a.ServiceCategory) == "" {
		return fmt.Errorf("service_category is required")
	}
	if strings.TrimSpace(a.JobType) == "" {
		return fmt.Errorf("job_type is required")
	}
	return nil
}

type PriceEstimateResult struct {
	Found           bool   `json:"found"`
	ServiceCategory string `json:"service_category"`
	JobType         string `json:"job_type"`
	EstimateLow     int    `json:"estimate_low,omitempty"`
	EstimateHigh    int    `json:"estimate_high,omitempty"`
	Message         string `json:"message,omitempty"`
	Note            string `json:"note"`
}

// getPriceEstimate matches the job description against the category's table
// by bidirectional case-insensitive substring containment. An unknown
// category behaves like an empty table.
func getPriceEstimate(args PriceEstimateArgs) PriceEstimateResult {
	table := pricingTables[strings.ToLower(strings.TrimSpace(args.ServiceCategory))]
	jobLower := strings.ToLower(args.JobType)

	for _, entry := range table {
		if strings.Contains(jobLower, entry.key) || strings.Contains(entry.key, jobLower) {
			return PriceEstimateResult{
				Found:           true,
				ServiceCategory: args.ServiceCategory,
				JobType:         args.JobType,
				EstimateLow:     entry.rng.Low,
				EstimateHigh:    entry.rng.High,
				Note:            "This is a rough estimate. Exact pricing will be determined after an on-site assessment.",
			}
		}
	}

	return PriceEstimateResult{
		Found:           false,
		ServiceCategory: args.ServiceCategory,
		JobType:         args.JobType,
		Message: fmt.Sprintf(
			"We don't have standard pricing for '%s'. A technician will provide a quote during the on-site assessment.",
			args.JobType,
		),
		Note: "We can still book an appointment for an assessment.",
	}
}

func priceEstimateDefinition() openai.FunctionDefinitionParam {
	return openai.FunctionDefinitionParam{
		Name: NameGetPriceEstimate,
		Description: openai.String(
			"Get a rough price estimate for a specific service. Call this when the customer " +
				"describes their issue and you need to provide pricing."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"service_category": map[string]any{
					"type":        "string",
					"enum":        []string{"plumbing", "electrical", "hvac"},
					"description": "The category of service needed",
				},
				"job_type": map[string]any{
					"type":        "string",
					"description": "Brief description of the job, e.g. 'leaky faucet', 'outlet repair', 'AC not cooling'",
				},
			},
			"required": []string{"service_category", "job_type"},
		},
	}
}
