package intent

import (
	"regexp"
	"strings"
)

// ConfidenceFloor is the minimum matcher confidence; anything below it
// classifies as Unclear with confidence 0.
const ConfidenceFloor = 0.3

var (
	greetingRe = regexp.MustCompile(`\b(hi|hello|hey|good morning|good afternoon|good evening)\b`)
	goodbyeRe  = regexp.MustCompile(`\b(bye|goodbye|thank you|thanks|see you)\b`)

	mathExprRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([+\-*/])\s*(\d+(?:\.\d+)?)`)
	calcKeywordRe = regexp.MustCompile(`\b(calculate|calculation|compute|computation|math|plus|minus|times|divided|sum|total)\b`)

	productRe = regexp.MustCompile(`\b(product|products|drinkware|mug|mugs|cup|cups|tumbler|tumblers|bottle|bottles|travel mug|coffee mug|espresso cup|french press|cold brew|thermal|carafe|ceramic|stainless steel|bamboo|eco-friendly|buy|purchase|merchandise)\b`)

	outletVerbRe    = regexp.MustCompile(`\b(find|search|locate|discover)\b.*\b(outlet|outlets|store|stores|branch|branches|location|locations)\b`)
	outletFeatureRe = regexp.MustCompile(`\b(drive.?thru|drive.?through|24.?hour|24.?hours|overnight|late night|parking|wifi|meeting|family.?friendly|student.?friendly)\b`)
	outletNearRe    = regexp.MustCompile(`\b(near|nearby|close to|around)\b`)
	outletNounRe    = regexp.MustCompile(`\b(outlet|outlets|store|stores|shop|shops|mall)\b`)

	hoursRe     = regexp.MustCompile(`\b(hour|hours|time|open|opening|close|closing|when)\b`)
	addressRe   = regexp.MustCompile(`\b(address|where|located)\b`)
	phoneRe     = regexp.MustCompile(`\b(phone|number|contact|call)\b`)
	questionRe  = regexp.MustCompile(`^(what|how|why|who|which|can|could|do|does|is|are|will|would)\b`)
	vagueCalc   = map[string]bool{"calculate": true, "calculation": true, "computation": true, "math": true}
	vagueOutlet = map[string]bool{
		"outlet": true, "outlets": true, "store": true, "stores": true,
		"shop": true, "shops": true, "show outlets": true, "find outlets": true,
	}
)

// message is the pre-analyzed view shared by all matchers.
type message struct {
	text     string // lowercased, trimmed
	place    Place
	hasPlace bool
}

// matchResult is one matcher's verdict for a message.
type matchResult struct {
	confidence float64
	entities   map[string]string
	missing    []string
}

// matcher pairs an intent with its scoring predicate. Matchers are evaluated
// in declaration order; the highest confidence wins and earlier declaration
// wins exact ties.
type matcher struct {
	intent Intent
	match  func(m *message, ctx map[string]string) matchResult
}

var matchers = []matcher{
	{Greeting, matchGreeting},
	{Goodbye, matchGoodbye},
	{Calculation, matchCalculation},
	{ProductSearch, matchProduct},
	{OutletSearchNL, matchOutletNL},
	{OutletSearch, matchOutlet},
	{HoursInquiry, matchHours},
	{LocationInquiry, matchAddress},
	{PhoneInquiry, matchPhone},
	{GeneralQuestion, matchGeneralQuestion},
}

// Classify maps a raw message plus session context to an intent, extracted
// entities, and a confidence score. It is deterministic and side-effect-free.
func Classify(rawMessage string, ctx map[string]string) Classification {
	text := strings.ToLower(strings.TrimSpace(rawMessage))
	if text == "" {
		return Classification{
			Intent:   Unclear,
			Entities: map[string]string{},
			Missing:  []string{MissingMessage},
		}
	}
	if ctx == nil {
		ctx = map[string]string{}
	}

	m := &message{text: text}
	m.place, m.hasPlace = MatchLocation(text)

	best := matchResult{}
	bestIntent := Unclear
	for _, mt := range matchers {
		res := mt.match(m, ctx)
		if res.confidence > best.confidence {
			best = res
			bestIntent = mt.intent
		}
	}

	if best.confidence < ConfidenceFloor {
		return Classification{
			Intent:   Unclear,
			Entities: map[string]string{},
		}
	}

	if best.entities == nil {
		best.entities = map[string]string{}
	}
	return Classification{
		Intent:     bestIntent,
		Entities:   best.entities,
		Missing:    best.missing,
		Confidence: best.confidence,
	}
}

// locationEntities returns the entity set for a matched place.
func locationEntities(p Place) map[string]string {
	e := map[string]string{
		EntityLocation: p.Canonical(),
		EntityArea:     p.Area,
	}
	if p.Specific != "" {
		e[EntitySpecificLocation] = p.Specific
	}
	return e
}

func matchGreeting(m *message, _ map[string]string) matchResult {
	if greetingRe.MatchString(m.text) {
		return matchResult{confidence: 0.9}
	}
	return matchResult{}
}

func matchGoodbye(m *message, _ map[string]string) matchResult {
	if goodbyeRe.MatchString(m.text) {
		return matchResult{confidence: 0.9}
	}
	return matchResult{}
}

func matchCalculation(m *message, _ map[string]string) matchResult {
	expr := mathExprRe.FindStringSubmatch(m.text)
	keyword := calcKeywordRe.MatchString(m.text)
	if expr == nil && !keyword {
		return matchResult{}
	}

	if expr != nil {
		return matchResult{
			confidence: 0.8,
			entities: map[string]string{
				EntityOperand1: expr[1],
				EntityOperator: expr[2],
				EntityOperand2: expr[3],
			},
		}
	}

	// Keyword with no usable expression: clarification-worthy, not a misroute.
	conf := 0.6
	if vagueCalc[m.text] {
		conf = 0.5
	}
	return matchResult{confidence: conf, missing: []string{MissingExpression}}
}

func matchProduct(m *message, _ map[string]string) matchResult {
	if !productRe.MatchString(m.text) {
		return matchResult{}
	}
	// Absence of specific attributes degrades to a broader query; it never
	// blocks execution, so nothing is ever flagged missing here.
	return matchResult{
		confidence: 0.8,
		entities:   map[string]string{EntityProductQuery: m.text},
	}
}

func matchOutletNL(m *message, _ map[string]string) matchResult {
	if vagueOutlet[m.text] {
		return matchResult{}
	}
	verb := outletVerbRe.MatchString(m.text)
	feature := outletFeatureRe.MatchString(m.text)
	near := outletNearRe.MatchString(m.text) && outletNounRe.MatchString(m.text)
	if !verb && !feature && !near {
		return matchResult{}
	}
	return matchResult{
		confidence: 0.8,
		entities:   map[string]string{EntityOutletQuery: m.text},
	}
}

func matchOutlet(m *message, _ map[string]string) matchResult {
	if !outletNounRe.MatchString(m.text) {
		return matchResult{}
	}

	if m.hasPlace {
		return matchResult{confidence: 0.8, entities: locationEntities(m.place)}
	}

	conf := 0.8
	if vagueOutlet[m.text] {
		conf = 0.6
	}
	return matchResult{confidence: conf, missing: []string{MissingLocation}}
}

// matchInquiry is shared by hours/address/phone lookups: location from the
// raw message wins; session context is only a fallback before flagging missing.
func matchInquiry(m *message, ctx map[string]string) matchResult {
	if m.hasPlace {
		return matchResult{confidence: 0.8, entities: locationEntities(m.place)}
	}
	if ctx[EntitySpecificLocation] != "" || ctx[EntityArea] != "" {
		return matchResult{confidence: 0.8}
	}
	return matchResult{confidence: 0.8, missing: []string{MissingLocation}}
}

func matchHours(m *message, ctx map[string]string) matchResult {
	if !hoursRe.MatchString(m.text) {
		return matchResult{}
	}
	return matchInquiry(m, ctx)
}

func matchAddress(m *message, ctx map[string]string) matchResult {
	if !addressRe.MatchString(m.text) {
		return matchResult{}
	}
	return matchInquiry(m, ctx)
}

func matchPhone(m *message, ctx map[string]string) matchResult {
	if !phoneRe.MatchString(m.text) {
		return matchResult{}
	}
	return matchInquiry(m, ctx)
}

func matchGeneralQuestion(m *message, _ map[string]string) matchResult {
	if questionRe.MatchString(m.text) || strings.HasSuffix(m.text, "?") {
		return matchResult{confidence: 0.4}
	}
	return matchResult{}
}
