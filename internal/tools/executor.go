// Package tools executes planned actions. Every collaborator failure becomes
// a Result with OK=false and a user-readable message; nothing here aborts a
// turn.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kopihq/kopi/internal/models"
	"github.com/kopihq/kopi/internal/outlets"
	"github.com/kopihq/kopi/internal/planner"
	"github.com/kopihq/kopi/internal/products"
)

// Result is the outcome of one tool execution.
type Result struct {
	OK       bool               `json:"ok"`
	Message  string             `json:"message"`
	Value    float64            `json:"value,omitempty"`
	Outlets  []outlets.Info     `json:"outlets,omitempty"`
	Products []products.Product `json:"products,omitempty"`
	Sources  []string           `json:"sources,omitempty"`
	SQL      string             `json:"sql,omitempty"`
	Rows     []map[string]any   `json:"rows,omitempty"`
	Err      string             `json:"error,omitempty"`
}

// Input carries the per-message data tools need beyond the planned action.
type Input struct {
	Message string // raw user message
	History string // rendered recent turns for LLM grounding
	Context map[string]string
}

// OutletQuerier runs natural-language outlet queries (text-to-SQL).
type OutletQuerier interface {
	Query(ctx context.Context, question string) (outlets.QueryResult, error)
}

// ProductAnswerer answers product questions (RAG).
type ProductAnswerer interface {
	Query(ctx context.Context, question string) (products.Answer, error)
}

// Timeouts bounds each collaborator class.
type Timeouts struct {
	LLM       time.Duration
	Embedding time.Duration
	Database  time.Duration
}

// DefaultTimeouts returns the standard collaborator bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{LLM: 30 * time.Second, Embedding: 15 * time.Second, Database: 5 * time.Second}
}

// Executor runs planned actions against its collaborators. Any collaborator
// may be nil; the corresponding tool then degrades instead of failing.
type Executor struct {
	log      *slog.Logger
	service  *outlets.Service
	text2sql OutletQuerier
	kb       ProductAnswerer
	chat     model.BaseChatModel
	timeouts Timeouts
}

// NewExecutor wires an executor. service must be non-nil; the rest are
// optional collaborators.
func NewExecutor(log *slog.Logger, service *outlets.Service, text2sql OutletQuerier, kb ProductAnswerer, chat model.BaseChatModel, timeouts Timeouts) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if timeouts.LLM == 0 {
		timeouts.LLM = 30 * time.Second
	}
	if timeouts.Embedding == 0 {
		timeouts.Embedding = 15 * time.Second
	}
	if timeouts.Database == 0 {
		timeouts.Database = 5 * time.Second
	}
	return &Executor{log: log, service: service, text2sql: text2sql, kb: kb, chat: chat, timeouts: timeouts}
}

// Execute runs the planned action and always returns a usable Result.
func (e *Executor) Execute(ctx context.Context, a planner.Action, in Input) Result {
	switch a.Kind {
	case planner.ProvideInfo:
		if a.Lookup != planner.LookupNone {
			return e.lookupInfo(a)
		}
		return Result{OK: true, Message: a.Message}

	case planner.AskClarification:
		return Result{OK: true, Message: a.Question}

	case planner.Calculate:
		return calculate(a.Operand1, a.Operator, a.Operand2)

	case planner.SearchOutlets:
		return e.searchOutlets(a)

	case planner.SearchOutletsNL:
		return e.searchOutletsNL(ctx, a)

	case planner.SearchProducts:
		return e.searchProducts(ctx, a)

	case planner.FallbackLLM:
		return e.fallbackLLM(ctx, in)

	default:
		return Result{Message: "I'm not sure how to help with that.", Err: "unknown action kind: " + string(a.Kind)}
	}
}

// searchOutlets queries the static dataset. Zero matches is a successful
// empty result, not an error.
func (e *Executor) searchOutlets(a planner.Action) Result {
	var found []outlets.Info
	switch {
	case a.Location != "":
		if byArea := e.service.ByArea(a.Location); len(byArea) > 0 {
			found = byArea
		} else if o, ok := e.service.ByLocation(a.Area, a.Location); ok {
			found = []outlets.Info{o}
		}
	case a.Area != "":
		found = e.service.ByArea(a.Area)
	}

	if len(found) == 0 {
		return Result{OK: true, Message: "No outlets found matching your criteria."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d outlet(s):\n", len(found))
	for _, o := range found {
		fmt.Fprintf(&b, "- %s - %s\n", o.Name, o.Location)
	}
	return Result{OK: true, Message: strings.TrimRight(b.String(), "\n"), Outlets: found}
}

// lookupInfo answers hours/address/phone questions from the static dataset.
func (e *Executor) lookupInfo(a planner.Action) Result {
	var found []outlets.Info
	if a.Location != "" {
		if o, ok := e.service.ByLocation(a.Area, a.Location); ok {
			found = []outlets.Info{o}
		} else if byArea := e.service.ByArea(a.Location); len(byArea) > 0 {
			found = byArea
		}
	} else if a.Area != "" {
		found = e.service.ByArea(a.Area)
	}

	if len(found) == 0 {
		return Result{OK: true, Message: "No outlets found matching your criteria."}
	}

	var b strings.Builder
	switch a.Lookup {
	case planner.LookupHours:
		b.WriteString("Opening hours:\n")
		for _, o := range found {
			fmt.Fprintf(&b, "- %s: %s - %s\n", o.Name, o.OpeningTime, o.ClosingTime)
		}
	case planner.LookupAddress:
		b.WriteString("Address:\n")
		for _, o := range found {
			fmt.Fprintf(&b, "- %s: %s\n", o.Name, o.Address)
		}
	case planner.LookupPhone:
		b.WriteString("Contact:\n")
		for _, o := range found {
			fmt.Fprintf(&b, "- %s: %s\n", o.Name, o.Phone)
		}
	}
	return Result{OK: true, Message: strings.TrimRight(b.String(), "\n"), Outlets: found}
}

func (e *Executor) searchOutletsNL(ctx context.Context, a planner.Action) Result {
	if e.text2sql == nil {
		return Result{Message: "I'm unable to search outlets at the moment. Please try again later.", Err: "text2sql not configured"}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeouts.LLM)
	defer cancel()

	res, err := e.text2sql.Query(callCtx, a.Query)
	if err != nil {
		if errors.Is(err, outlets.ErrUnsafeSQL) {
			e.log.Warn("rejected generated sql", "sql", res.SQL, "error", err)
			return Result{Message: "I couldn't process that request.", SQL: res.SQL, Err: err.Error()}
		}
		e.log.Error("outlet nl search failed", "error", err)
		return Result{Message: "I'm unable to search outlets at the moment. Please try again later.", Err: err.Error()}
	}

	if res.Count == 0 {
		return Result{OK: true, Message: "No outlets found matching your criteria.", SQL: res.SQL}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d outlet(s):\n\n", res.Count)
	shown := res.Rows
	if len(shown) > 5 {
		shown = shown[:5]
	}
	for _, row := range shown {
		fmt.Fprintf(&b, "%s\n", stringField(row, "name", "Unknown"))
		if addr := stringField(row, "address", ""); addr != "" {
			fmt.Fprintf(&b, "  %s\n", addr)
		}
		if phone := stringField(row, "phone", ""); phone != "" {
			fmt.Fprintf(&b, "  %s\n", phone)
		}
		opens, closes := stringField(row, "opening_time", ""), stringField(row, "closing_time", "")
		if opens != "" && closes != "" {
			fmt.Fprintf(&b, "  %s - %s\n", opens, closes)
		}
		var feats []string
		if boolField(row, "has_drive_thru") {
			feats = append(feats, "Drive-thru")
		}
		if boolField(row, "is_24_hours") {
			feats = append(feats, "24-hours")
		}
		if boolField(row, "has_wifi") {
			feats = append(feats, "WiFi")
		}
		if len(feats) > 0 {
			fmt.Fprintf(&b, "  %s\n", strings.Join(feats, ", "))
		}
		b.WriteString("\n")
	}
	return Result{OK: true, Message: strings.TrimRight(b.String(), "\n"), SQL: res.SQL, Rows: res.Rows}
}

func (e *Executor) searchProducts(ctx context.Context, a planner.Action) Result {
	if e.kb == nil {
		return Result{Message: "Product search is currently unavailable.", Err: "product knowledge base not configured"}
	}

	ans, err := e.queryProducts(ctx, a.Query)
	if err != nil {
		if errors.Is(err, products.ErrNotInitialized) {
			return Result{Message: "Product search is currently unavailable.", Err: "Vector store not initialized"}
		}
		e.log.Error("product search failed", "error", err)
		return Result{Message: "Product search is currently unavailable.", Err: err.Error()}
	}

	return Result{OK: true, Message: ans.Text, Products: ans.Products, Sources: ans.Sources}
}

// queryProducts retries once on timeout; retrieval is idempotent.
func (e *Executor) queryProducts(ctx context.Context, query string) (products.Answer, error) {
	call := func() (products.Answer, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeouts.Embedding)
		defer cancel()
		return e.kb.Query(callCtx, query)
	}

	ans, err := call()
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		ans, err = call()
	}
	return ans, err
}

const fallbackSystem = "You are a helpful assistant for a Malaysian coffee chain. You can discuss " +
	"outlets in Petaling Jaya (SS 2, SS 15, Damansara Utama) and Kuala Lumpur (KLCC, Bukit Bintang), " +
	"drinkware products, and simple calculations. Keep responses concise and friendly. If the question " +
	"falls outside these topics, answer briefly and steer back to what you can help with."

func (e *Executor) fallbackLLM(ctx context.Context, in Input) Result {
	if e.chat == nil {
		return Result{OK: true, Message: staticHelp(in.Message)}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeouts.LLM)
	defer cancel()

	var prompt strings.Builder
	if len(in.Context) > 0 {
		prompt.WriteString("Session context:\n")
		keys := make([]string, 0, len(in.Context))
		for k := range in.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&prompt, "- %s: %s\n", k, in.Context[k])
		}
		prompt.WriteString("\n")
	}
	if in.History != "" {
		prompt.WriteString("Conversation so far:\n")
		prompt.WriteString(in.History)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("User: ")
	prompt.WriteString(in.Message)

	resp, err := e.chat.Generate(callCtx, []*schema.Message{
		schema.SystemMessage(fallbackSystem),
		schema.UserMessage(prompt.String()),
	})
	if err != nil {
		e.log.Warn("llm fallback failed, serving static help", "error", models.HandleError(err))
		return Result{OK: true, Message: staticHelp(in.Message)}
	}
	return Result{OK: true, Message: strings.TrimSpace(resp.Content)}
}

// staticHelp is the keyword-keyed response used when no model is reachable.
func staticHelp(message string) string {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "outlet", "shop", "store", "mall"):
		return "I can help you find outlet information. Could you specify which area you're interested in? For example, Kuala Lumpur or Petaling Jaya."
	case containsAny(lower, "calculate", "math", "compute", "number"):
		return "I can help with calculations. Could you provide the specific calculation you need?"
	case containsAny(lower, "hello", "hi", "hey"):
		return "Hello! I'm here to help you find outlets, explore our drinkware, or perform calculations. What would you like to know?"
	default:
		return "I'm here to help with outlet information, drinkware products, and calculations. Could you please rephrase your question?"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func stringField(row map[string]any, key, fallback string) string {
	if v, ok := row[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolField(row map[string]any, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}
