package tool

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
)

// Zip codes covered by Pinnacle Home Services: Austin proper plus the
// surrounding towns within roughly 30 miles.
var serviceAreaZips = map[string]struct{}{
	"78701": {}, "78702": {}, "78703": {}, "78704": {}, "78705": {},
	"78712": {}, "78717": {}, "78719": {}, "78721": {}, "78722": {},
	"78723": {}, "78724": {}, "78725": {}, "78726": {}, "78727": {},
	"78728": {}, "78729": {}, "78730": {}, "78731": {}, "78732": {},
	"78733": {}, "78734": {}, "78735": {}, "78736": {}, "78737": {},
	"78738": {}, "78739": {}, "78741": {}, "78742": {}, "78744": {},
	"78745": {}, "78746": {}, "78747": {}, "78748": {}, "78749": {},
	"78750": {}, "78751": {}, "78752": {}, "78753": {}, "78754": {},
	"78756": {}, "78757": {}, "78758": {}, "78759": {},
	"78660": {}, // Pflugerville
	"78664": {}, "78665": {}, // Round Rock
	"78613": {}, // Cedar Park
	"78626": {}, "78628": {}, "78633": {}, // Georgetown
	"78666": {}, // San Marcos
	"78640": {}, // Kyle
	"78610": {}, // Buda
	"78620": {}, // Dripping Springs
}

var serviceAreaCities = map[string]struct{}{
	"austin": {}, "round rock": {}, "cedar park": {}, "pflugerville": {},
	"georgetown": {}, "san marcos": {}, "kyle": {}, "buda": {},
	"lakeway": {}, "bee cave": {}, "dripping springs": {},
}

type ServiceAreaArgs struct {
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
}

type ServiceAreaResult struct {
	InServiceArea bool   `json:"in_service_area"`
	Message       string `json:"message"`
}

// checkServiceArea is pure: zip membership wins over city membership, and an
// unmatched location is named in the rejection message.
func checkServiceArea(args ServiceAreaArgs) ServiceAreaResult {
	if args.ZipCode != "" {
		if _, ok := serviceAreaZips[args.ZipCode]; ok {
			return ServiceAreaResult{
				InServiceArea: true,
				Message:       fmt.Sprintf("Zip code %s is within our service area.", args.ZipCode),
			}
		}
	}

	if city := strings.ToLower(strings.TrimSpace(args.City)); city != "" {
		if _, ok := serviceAreaCities[city]; ok {
			return ServiceAreaResult{
				InServiceArea: true,
				Message:       fmt.Sprintf("%s is within our service area.", args.City),
			}
		}
	}

	location := args.ZipCode
	if location == "" {
		location = args.City
	}
	if location == "" {
		location = "Unknown"
	}
	return ServiceAreaResult{
		InServiceArea: false,
		Message: fmt.Sprintf(
			"Sorry, %s is outside our service area. We serve Austin, TX and surrounding areas within 30 miles.",
			location,
		),
	}
}

func serviceAreaDefinition() openai.FunctionDefinitionParam {
	return openai.FunctionDefinitionParam{
		Name: NameCheckServiceArea,
		Description: openai.String(
			"Check if a given city or zip code is within Pinnacle Home Services' service area. " +
				"Call this whenever a customer provides their address or location."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{
					"type":        "string",
					"description": "The city name, e.g. 'Round Rock'",
				},
				"zip_code": map[string]any{
					"type":        "string",
					"description": "The zip code, e.g. '78701'",
				},
			},
			"required": []string{},
		},
	}
}
