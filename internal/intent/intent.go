// Package intent classifies user messages into intents with extracted entities.
package intent

// Intent is an enumerated category describing what the user wants.
type Intent string

const (
	Greeting        Intent = "greeting"
	OutletSearch    Intent = "outlet_search"
	HoursInquiry    Intent = "hours_inquiry"
	LocationInquiry Intent = "location_inquiry"
	PhoneInquiry    Intent = "phone_inquiry"
	Calculation     Intent = "calculation"
	GeneralQuestion Intent = "general_question"
	Goodbye         Intent = "goodbye"
	Unclear         Intent = "unclear"
	ProductSearch   Intent = "product_search"
	OutletSearchNL  Intent = "outlet_search_nl"
)

// Entity keys extracted from messages.
const (
	EntityLocation         = "location"
	EntityArea             = "area"
	EntitySpecificLocation = "specific_location"
	EntityOperand1         = "operand1"
	EntityOperator         = "operator"
	EntityOperand2         = "operand2"
	EntityProductQuery     = "product_query"
	EntityOutletQuery      = "outlet_query"
)

// Missing-information flags.
const (
	MissingMessage    = "message"
	MissingLocation   = "location"
	MissingExpression = "expression"
)

// Classification is the result of classifying one message.
type Classification struct {
	Intent     Intent            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Missing    []string          `json:"missing_info"`
	Confidence float64           `json:"confidence"`
}

// HasMissing reports whether the named gap was flagged.
func (c Classification) HasMissing(name string) bool {
	for _, m := range c.Missing {
		if m == name {
			return true
		}
	}
	return false
}
