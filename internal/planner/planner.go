// Package planner maps a classified message to the next action. Planning is a
// pure function of the classification and session context; tool execution
// happens elsewhere.
package planner

import (
	"github.com/kopihq/kopi/internal/intent"
)

// Kind enumerates the planner's possible actions.
type Kind string

const (
	ProvideInfo      Kind = "provide_info"
	AskClarification Kind = "ask_clarification"
	Calculate        Kind = "calculate"
	SearchOutlets    Kind = "search_outlets"
	SearchOutletsNL  Kind = "search_outlets_nl"
	SearchProducts   Kind = "search_products"
	FallbackLLM      Kind = "fallback_llm"
)

// Lookup selects which static outlet attribute a provide_info action reads.
type Lookup string

const (
	LookupNone    Lookup = ""
	LookupHours   Lookup = "hours"
	LookupAddress Lookup = "address"
	LookupPhone   Lookup = "phone"
)

// Action is a planned next step with everything the executor needs resolved.
type Action struct {
	Kind       Kind    `json:"kind"`
	Message    string  `json:"message,omitempty"`  // canned reply for provide_info
	Question   string  `json:"question,omitempty"` // clarification to ask
	Lookup     Lookup  `json:"lookup,omitempty"`
	Location   string  `json:"location,omitempty"` // canonical location key
	Area       string  `json:"area,omitempty"`
	Operand1   string  `json:"operand1,omitempty"`
	Operator   string  `json:"operator,omitempty"`
	Operand2   string  `json:"operand2,omitempty"`
	Query      string  `json:"query,omitempty"`
	Tools      []string `json:"tools,omitempty"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

const (
	welcomeMessage  = "Hello! I'm here to help you find information about our outlets. How can I assist you today?"
	farewellMessage = "Thank you for using our outlet assistant! Have a great day!"

	calcClarification = "I'd be happy to help with calculations! Could you please provide a clear math expression? For example: '5 + 3' or '10 * 2'"
	areaClarification = "Which area are you interested in? We have outlets in Petaling Jaya (SS 2, SS 15, Damansara Utama) and Kuala Lumpur (KLCC, Bukit Bintang)."
	spotClarification = "Which outlet would you like that for? Please specify the location."
	unclearQuestion   = "I'm not sure I understand. Are you looking for outlet locations, opening hours, contact information, or something else? I can also help with simple calculations!"
)

// Plan decides the next action. Rules apply first-match, in order; a location
// already known from the session context satisfies a missing location and is
// never re-asked.
func Plan(c intent.Classification, ctx map[string]string) Action {
	switch c.Intent {
	case intent.Greeting:
		return Action{Kind: ProvideInfo, Message: welcomeMessage, Reasoning: "welcome", Confidence: c.Confidence}

	case intent.Goodbye:
		return Action{Kind: ProvideInfo, Message: farewellMessage, Reasoning: "farewell", Confidence: c.Confidence}

	case intent.Calculation:
		if c.HasMissing(intent.MissingExpression) {
			return Action{
				Kind:       AskClarification,
				Question:   calcClarification,
				Reasoning:  "calculation requested without a usable expression",
				Confidence: c.Confidence,
			}
		}
		return Action{
			Kind:       Calculate,
			Operand1:   c.Entities[intent.EntityOperand1],
			Operator:   c.Entities[intent.EntityOperator],
			Operand2:   c.Entities[intent.EntityOperand2],
			Tools:      []string{"calculator"},
			Reasoning:  "calculation with all operands available",
			Confidence: c.Confidence,
		}

	case intent.OutletSearch:
		loc, area, ok := resolveLocation(c, ctx)
		if !ok {
			return Action{
				Kind:       AskClarification,
				Question:   areaClarification,
				Reasoning:  "outlet search without a known location",
				Confidence: c.Confidence,
			}
		}
		return Action{
			Kind:       SearchOutlets,
			Location:   loc,
			Area:       area,
			Tools:      []string{"outlet_search"},
			Reasoning:  "outlet search with location resolved",
			Confidence: c.Confidence,
		}

	case intent.OutletSearchNL:
		query := c.Entities[intent.EntityOutletQuery]
		if query == "" && c.HasMissing(intent.MissingLocation) && !hasContextLocation(ctx) {
			return Action{
				Kind:       AskClarification,
				Question:   areaClarification,
				Reasoning:  "outlet query with nothing to search by",
				Confidence: c.Confidence,
			}
		}
		return Action{
			Kind:       SearchOutletsNL,
			Query:      query,
			Tools:      []string{"outlet_text2sql"},
			Reasoning:  "open-ended outlet query routed to text-to-sql",
			Confidence: c.Confidence,
		}

	case intent.ProductSearch:
		return Action{
			Kind:       SearchProducts,
			Query:      c.Entities[intent.EntityProductQuery],
			Tools:      []string{"product_rag"},
			Reasoning:  "drinkware query routed to the product knowledge base",
			Confidence: c.Confidence,
		}

	case intent.HoursInquiry:
		return planLookup(c, ctx, LookupHours, "hours inquiry")

	case intent.LocationInquiry:
		return planLookup(c, ctx, LookupAddress, "address inquiry")

	case intent.PhoneInquiry:
		return planLookup(c, ctx, LookupPhone, "phone inquiry")

	case intent.Unclear:
		return Action{
			Kind:       AskClarification,
			Question:   unclearQuestion,
			Reasoning:  "ambiguous input",
			Confidence: c.Confidence,
		}

	default:
		return Action{
			Kind:       FallbackLLM,
			Tools:      []string{"llm"},
			Reasoning:  "no structured handler for this intent",
			Confidence: c.Confidence,
		}
	}
}

// planLookup handles hours/address/phone questions against the static dataset.
func planLookup(c intent.Classification, ctx map[string]string, lookup Lookup, what string) Action {
	loc, area, ok := resolveLocation(c, ctx)
	if !ok {
		return Action{
			Kind:       AskClarification,
			Question:   spotClarification,
			Reasoning:  what + " without a known location",
			Confidence: c.Confidence,
		}
	}
	return Action{
		Kind:       ProvideInfo,
		Lookup:     lookup,
		Location:   loc,
		Area:       area,
		Tools:      []string{"outlet_search"},
		Reasoning:  what + " with location resolved",
		Confidence: c.Confidence,
	}
}

// resolveLocation prefers entities from the current message, then the session
// context. Returned location is the most specific key available.
func resolveLocation(c intent.Classification, ctx map[string]string) (location, area string, ok bool) {
	if loc := c.Entities[intent.EntityLocation]; loc != "" {
		return loc, c.Entities[intent.EntityArea], true
	}
	if loc := ctx[intent.EntitySpecificLocation]; loc != "" {
		return loc, ctx[intent.EntityArea], true
	}
	if area := ctx[intent.EntityArea]; area != "" {
		return "", area, true
	}
	return "", "", false
}

func hasContextLocation(ctx map[string]string) bool {
	return ctx[intent.EntitySpecificLocation] != "" || ctx[intent.EntityArea] != ""
}
