package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kopihq/kopi/internal/events"
	"github.com/kopihq/kopi/internal/orchestrator"
	"github.com/kopihq/kopi/internal/outlets"
	"github.com/kopihq/kopi/internal/products"
	"github.com/kopihq/kopi/internal/sessions"
	"github.com/kopihq/kopi/internal/tools"
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
}

func (s *stubAnswerer) Query(ctx context.Context, q string) (products.Answer, error) {
	return s.answer, s.err
}

func newTestServer(t *testing.T, text2sql tools.OutletQuerier, kb tools.ProductAnswerer) *httptest.Server {
	t.Helper()
	svc, err := outlets.NewService()
	if err != nil {
		t.Fatalf("load outlets: %v", err)
	}
	store := sessions.NewStore(0, 0)
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	exec := tools.NewExecutor(nil, svc, text2sql, kb, nil, tools.DefaultTimeouts())
	orch := orchestrator.New(nil, store, exec, bus)

	srv := NewServer(Options{
		Orch:     orch,
		Store:    store,
		Service:  svc,
		Text2SQL: text2sql,
		KB:       kb,
		Bus:      bus,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func postChat(t *testing.T, ts *httptest.Server, message, sessionID string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"message": message, "session_id": sessionID})
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post chat: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestChatRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp := postChat(t, ts, "hello", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var reply orchestrator.Reply
	decodeBody(t, resp, &reply)
	if reply.Intent != "greeting" || reply.SessionID == "" || reply.Turn != 1 {
		t.Errorf("reply = %+v", reply)
	}

	resp = postChat(t, ts, "What is 7 - 2?", reply.SessionID)
	var second orchestrator.Reply
	decodeBody(t, resp, &second)
	if second.Response != "7 - 2 = 5" || second.Turn != 2 {
		t.Errorf("second reply = %+v", second)
	}
}

func TestChatRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp := postChat(t, ts, "   ", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty message status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	r, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("bad body status = %d", r.StatusCode)
	}
	r.Body.Close()
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp := postChat(t, ts, "hello", "")
	var reply orchestrator.Reply
	decodeBody(t, resp, &reply)
	id := reply.SessionID

	r, err := http.Get(ts.URL + "/api/sessions/" + id + "/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	var hist struct {
		SessionID string          `json:"session_id"`
		Turns     []sessions.Turn `json:"turns"`
	}
	decodeBody(t, r, &hist)
	if len(hist.Turns) != 1 || hist.Turns[0].UserMessage != "hello" {
		t.Errorf("history = %+v", hist)
	}

	r, err = http.Get(ts.URL + "/api/sessions/" + id + "/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	var stats sessions.Stats
	decodeBody(t, r, &stats)
	if stats.TotalTurns != 1 || stats.LastTurn != 1 {
		t.Errorf("stats = %+v", stats)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	r, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if r.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", r.StatusCode)
	}
	r.Body.Close()

	r, _ = http.DefaultClient.Do(req)
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d", r.StatusCode)
	}
	r.Body.Close()

	r, err = http.Get(ts.URL + "/api/sessions/unknown/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session status = %d", r.StatusCode)
	}
	r.Body.Close()
}

func TestOutletEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	r, err := http.Get(ts.URL + "/api/outlets")
	if err != nil {
		t.Fatalf("get outlets: %v", err)
	}
	var all struct {
		Areas   []string                  `json:"areas"`
		Outlets map[string][]outlets.Info `json:"outlets"`
	}
	decodeBody(t, r, &all)
	if len(all.Areas) != 2 {
		t.Errorf("areas = %v", all.Areas)
	}
	if len(all.Outlets["petaling_jaya"]) != 3 || len(all.Outlets["kuala_lumpur"]) != 2 {
		t.Errorf("outlets = %+v", all.Outlets)
	}

	r, err = http.Get(ts.URL + "/api/outlets/petaling_jaya")
	if err != nil {
		t.Fatalf("get area: %v", err)
	}
	var area struct {
		Outlets []outlets.Info `json:"outlets"`
	}
	decodeBody(t, r, &area)
	if len(area.Outlets) != 3 {
		t.Errorf("area outlets = %d", len(area.Outlets))
	}

	r, err = http.Get(ts.URL + "/api/outlets/penang")
	if err != nil {
		t.Fatalf("get area: %v", err)
	}
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("unknown area status = %d", r.StatusCode)
	}
	r.Body.Close()
}

func TestOutletSearchUnconfigured(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	r, err := http.Get(ts.URL + "/api/outlets/search?query=drive-thru")
	if err != nil {
		t.Fatalf("get search: %v", err)
	}
	if r.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", r.StatusCode)
	}
	r.Body.Close()
}

func TestOutletSearchConfigured(t *testing.T) {
	q := &stubQuerier{result: outlets.QueryResult{
		SQL:   "SELECT * FROM outlets WHERE has_drive_thru = 1",
		Count: 1,
		Rows:  []map[string]any{{"name": "Kopi SS15 Subang"}},
	}}
	ts := newTestServer(t, q, nil)

	r, err := http.Get(ts.URL + "/api/outlets/search?query=which+outlets+have+drive-thru")
	if err != nil {
		t.Fatalf("get search: %v", err)
	}
	var res outlets.QueryResult
	decodeBody(t, r, &res)
	if res.Count != 1 || res.SQL == "" {
		t.Errorf("result = %+v", res)
	}

	r, err = http.Get(ts.URL + "/api/outlets/search")
	if err != nil {
		t.Fatalf("get search: %v", err)
	}
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("missing query status = %d", r.StatusCode)
	}
	r.Body.Close()
}

func TestOutletSearchRejectsUnsafeSQL(t *testing.T) {
	q := &stubQuerier{
		result: outlets.QueryResult{SQL: "DROP TABLE outlets"},
		err:    outlets.ErrUnsafeSQL,
	}
	ts := newTestServer(t, q, nil)

	r, err := http.Get(ts.URL + "/api/outlets/search?query=drop+everything")
	if err != nil {
		t.Fatalf("get search: %v", err)
	}
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", r.StatusCode)
	}
	var body map[string]string
	decodeBody(t, r, &body)
	if strings.Contains(body["error"], "DROP") {
		t.Errorf("generated sql leaked to client: %q", body["error"])
	}
}

func TestProductEndpoint(t *testing.T) {
	kb := &stubAnswerer{answer: products.Answer{
		Text:    "Two good options.",
		Sources: []string{"Kopi Mug - Ceramic White", "Kopi Tumbler - Black"},
		Products: []products.Product{
			{ID: "mug-ceramic-white", Name: "Kopi Mug - Ceramic White"},
			{ID: "tumbler-black", Name: "Kopi Tumbler - Black"},
		},
	}}
	ts := newTestServer(t, nil, kb)

	r, err := http.Get(ts.URL + "/api/products?query=mugs&max_results=1")
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	var ans products.Answer
	decodeBody(t, r, &ans)
	if ans.Text != "Two good options." {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.Products) != 1 || len(ans.Sources) != 1 {
		t.Errorf("max_results not applied: %+v", ans)
	}

	r, err = http.Get(ts.URL + "/api/products?query=mugs")
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	var full products.Answer
	decodeBody(t, r, &full)
	if len(full.Products) != 2 {
		t.Errorf("products = %d", len(full.Products))
	}
}

func TestProductEndpointUnconfigured(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	r, err := http.Get(ts.URL + "/api/products?query=mugs")
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	if r.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", r.StatusCode)
	}
	r.Body.Close()
}

func TestEventsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp := postChat(t, ts, "hello", "")
	resp.Body.Close()

	r, err := http.Get(ts.URL + "/api/events?limit=10")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	var evs []events.Event
	decodeBody(t, r, &evs)
	// Dispatch is asynchronous; the endpoint only promises valid JSON here.
	for _, ev := range evs {
		if ev.Type == "" {
			t.Errorf("event missing type: %+v", ev)
		}
	}
}
