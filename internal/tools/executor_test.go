package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kopihq/kopi/internal/outlets"
	"github.com/kopihq/kopi/internal/planner"
	"github.com/kopihq/kopi/internal/products"
)

type stubQuerier struct {
	result outlets.QueryResult
	err    error
}

func (s *stubQuerier) Query(ctx context.Context, q string) (outlets.QueryResult, error) {
	return s.result, s.err
}

type stubAnswerer struct {
	answer products.Answer
	err    error
	calls  int
}

func (s *stubAnswerer) Query(ctx context.Context, q string) (products.Answer, error) {
	s.calls++
	return s.answer, s.err
}

type stubChat struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (s *stubChat) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.seen = in
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubChat) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func newTestExecutor(t *testing.T, text2sql OutletQuerier, kb ProductAnswerer, chat model.BaseChatModel) *Executor {
	t.Helper()
	svc, err := outlets.NewService()
	if err != nil {
		t.Fatalf("load outlets: %v", err)
	}
	return NewExecutor(nil, svc, text2sql, kb, chat, DefaultTimeouts())
}

func TestExecuteCalculate(t *testing.T) {
	e := newTestExecutor(t, nil, nil, nil)

	res := e.Execute(context.Background(), planner.Action{
		Kind: planner.Calculate, Operand1: "5", Operator: "+", Operand2: "3",
	}, Input{})
	if !res.OK {
		t.Fatalf("result not ok: %+v", res)
	}
	if res.Value != 8 {
		t.Errorf("value = %v, want 8", res.Value)
	}
	if res.Message != "5 + 3 = 8" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecuteCalculateDivideByZero(t *testing.T) {
	e := newTestExecutor(t, nil, nil, nil)

	res := e.Execute(context.Background(), planner.Action{
		Kind: planner.Calculate, Operand1: "10", Operator: "/", Operand2: "0",
	}, Input{})
	if res.OK {
		t.Fatal("division by zero must not succeed")
	}
	if !strings.Contains(res.Message, "divide by zero") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecuteCalculateOperators(t *testing.T) {
	e := newTestExecutor(t, nil, nil, nil)

	cases := []struct {
		op   string
		want float64
	}{
		{"+", 9}, {"-", 3}, {"*", 18}, {"/", 2},
	}
	for _, tc := range cases {
		res := e.Execute(context.Background(), planner.Action{
			Kind: planner.Calculate, Operand1: "6", Operator: tc.op, Operand2: "3",
		}, Input{})
		if !res.OK || res.Value != tc.want {
			t.Errorf("6 %s 3 = %v (ok=%v), want %v", tc.op, res.Value, res.OK, tc.want)
		}
	}
}

func TestExecuteSearchOutletsByArea(t *testing.T) {
	e := newTestExecutor(t, nil, nil, nil)

	res := e.Execute(context.Background(), planner.Action{
		Kind: planner.SearchOutlets, Location: "petaling_jaya", Area: "petaling_jaya",
	}, Input{})
	if !res.OK {
		t.Fatalf("result not ok: %+v", res)
	}
	if len(res.Outlets) != 3 {
		t.Fatalf("outlets = %d, want 3", len(res.Outlets))
	}
	if !strings.Contains(res.Message, "Found 3 outlet(s)") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecuteSearchOutletsNoMatchIsOK(t *testing.T) {
	e := newTestExecutor(t, nil, nil, nil)

	res := e.Execute(context.Background(), planner.Action{
		Kind: planner.SearchOutlets, Location: "penang",
	}, Input{})
	if !res.OK {
		t.Fatal("empty match set must still be a successful result")
	}
	if len(res.Outlets) != 0 {
		t.Errorf("outlets = %v", res.Outlets)
	}
}

func TestExecuteHoursLookup(t *testing.T) {
	e := newTestExecutor(t, nil, nil, nil)

	res := e.Execute(context.Background(), planner.Action{
		Kind: planner.ProvideInfo, Lookup: planner.LookupHours,
		Location: "ss_2", Area: "petaling_jaya",
	}, Input{})
	if !res.OK {
		t.Fatalf("result not ok: %+v", res)
	}
	if !strings.Contains(res.Message, "9:00 AM") || !strings.Contains(res.Message, "10:00 PM") {
		t.Errorf("hours missing from %q", res.Message)
	}
}

func TestExecuteUnsafeSQLRejected(t *testing.T) {
	q := &stubQuerier{
		result: outlets.QueryResult{SQL: "DROP TABLE outlets"},
		err:    outlets.ErrUnsafeSQL,
	}
	e := newTestExecutor(t, q, nil, nil)

	res := e.Execute(context.Background(), planner.Action{
		Kind: planner.SearchOutletsNL, Query: "drop everything",
	}, Input{})
	if res.OK {
		t.Fatal("unsafe sql must fail the tool")
	}
	if res.Message != "I couldn't process that request." {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecuteOutletsNLFormatsRows(t *testing.T) {
	q := &stubQuerier{result: outlets.QueryResult{
		SQL:   "SELECT * FROM outlets WHERE has_drive_thru = 1",
		Count: 1,
		Rows: []map[string]any{{
			"name": "Kopi SS15 Subang", "address": "47-G, Jalan SS 15/4D",
			"phone": "+603-5634-5555", "opening_time": "07:00", "closing_time": "21:00",
			"has_drive_thru": int64(1), "has_wifi": int64(1), "is_24_hours": int64(0),
		}},
	}}
	e := newTestExecutor(t, q, nil, nil)

	res := e.Execute(context.Background(), planner.Action{Kind: planner.SearchOutletsNL, Query: "drive-thru"}, Input{})
	if !res.OK {
		t.Fatalf("result not ok: %+v", res)
	}
	for _, want := range []string{"Kopi SS15 Subang", "07:00 - 21:00", "Drive-thru", "WiFi"} {
		if !strings.Contains(res.Message, want) {
			t.Errorf("message missing %q:\n%s", want, res.Message)
		}
	}
	if strings.Contains(res.Message, "24-hours") {
		t.Error("24-hours flag should not be shown for a non-24h outlet")
	}
}

func TestExecuteProductsUninitialized(t *testing.T) {
	kb := &stubAnswerer{err: products.ErrNotInitialized}
	e := newTestExecutor(t, nil, kb, nil)

	res := e.Execute(context.Background(), planner.Action{Kind: planner.SearchProducts, Query: "mugs"}, Input{})
	if res.OK {
		t.Fatal("uninitialized store must fail the tool")
	}
	if res.Err != "Vector store not initialized" {
		t.Errorf("err = %q", res.Err)
	}
	if len(res.Products) != 0 || len(res.Sources) != 0 {
		t.Errorf("expected empty products/sources, got %+v", res)
	}
}

func TestExecuteProductsSuccess(t *testing.T) {
	kb := &stubAnswerer{answer: products.Answer{
		Text:    "The ceramic mug fits.",
		Sources: []string{"Kopi Mug - Ceramic White"},
		Products: []products.Product{
			{ID: "mug-ceramic-white", Name: "Kopi Mug - Ceramic White"},
		},
	}}
	e := newTestExecutor(t, nil, kb, nil)

	res := e.Execute(context.Background(), planner.Action{Kind: planner.SearchProducts, Query: "mugs"}, Input{})
	if !res.OK {
		t.Fatalf("result not ok: %+v", res)
	}
	if res.Message != "The ceramic mug fits." || len(res.Sources) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteFallbackLLM(t *testing.T) {
	e := newTestExecutor(t, nil, nil, &stubChat{reply: "Coffee is roasted seeds."})

	res := e.Execute(context.Background(), planner.Action{Kind: planner.FallbackLLM}, Input{
		Message: "why is coffee bitter?",
		History: "User: hi\nAssistant: Hello!",
	})
	if !res.OK || res.Message != "Coffee is roasted seeds." {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteFallbackForwardsGrounding(t *testing.T) {
	chat := &stubChat{reply: "It opens at 9."}
	e := newTestExecutor(t, nil, nil, chat)

	res := e.Execute(context.Background(), planner.Action{Kind: planner.FallbackLLM}, Input{
		Message: "and on weekends?",
		History: "User: outlets in PJ\nAssistant: Found 3 outlet(s)",
		Context: map[string]string{
			"area":              "petaling_jaya",
			"specific_location": "ss_2",
			"last_intent":       "hours_inquiry",
		},
	})
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	if len(chat.seen) != 2 {
		t.Fatalf("messages sent = %d, want system + user", len(chat.seen))
	}
	prompt := chat.seen[1].Content
	for _, want := range []string{
		"area: petaling_jaya",
		"specific_location: ss_2",
		"last_intent: hours_inquiry",
		"outlets in PJ",
		"and on weekends?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestExecuteFallbackDegradesToStaticHelp(t *testing.T) {
	e := newTestExecutor(t, nil, nil, &stubChat{err: errors.New("backend down")})

	res := e.Execute(context.Background(), planner.Action{Kind: planner.FallbackLLM}, Input{Message: "tell me about your outlets"})
	if !res.OK {
		t.Fatal("fallback must degrade, not fail")
	}
	if !strings.Contains(res.Message, "outlet information") {
		t.Errorf("expected outlet-keyed help, got %q", res.Message)
	}

	// No model configured at all behaves the same way.
	e = newTestExecutor(t, nil, nil, nil)
	res = e.Execute(context.Background(), planner.Action{Kind: planner.FallbackLLM}, Input{Message: "random question"})
	if !res.OK || res.Message == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteClarificationAndCanned(t *testing.T) {
	e := newTestExecutor(t, nil, nil, nil)

	res := e.Execute(context.Background(), planner.Action{Kind: planner.AskClarification, Question: "Which area?"}, Input{})
	if !res.OK || res.Message != "Which area?" {
		t.Errorf("result = %+v", res)
	}

	res = e.Execute(context.Background(), planner.Action{Kind: planner.ProvideInfo, Message: "Hello!"}, Input{})
	if !res.OK || res.Message != "Hello!" {
		t.Errorf("result = %+v", res)
	}
}
