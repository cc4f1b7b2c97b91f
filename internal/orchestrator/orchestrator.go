// Package orchestrator drives the per-message pipeline: classify, plan,
// execute, commit the turn, respond. A turn that reaches the pipeline always
// produces a response; panics and collaborator failures degrade to an apology.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/kopihq/kopi/internal/events"
	"github.com/kopihq/kopi/internal/intent"
	"github.com/kopihq/kopi/internal/planner"
	"github.com/kopihq/kopi/internal/sessions"
	"github.com/kopihq/kopi/internal/tools"
)

// ErrInvalidInput marks messages rejected at the boundary, before any
// pipeline stage runs. Nothing is recorded for a rejected message.
var ErrInvalidInput = errors.New("invalid input")

const (
	maxMessageBytes = 10 * 1024
	maxSessionIDLen = 100

	// ContextLastIntent records the previous turn's intent in session context.
	ContextLastIntent = "last_intent"

	apologyMessage = "I'm sorry, something went wrong while processing your message. Please try again."
)

// Reply is the structured outcome of one processed message.
type Reply struct {
	Response   string   `json:"response"`
	SessionID  string   `json:"session_id"`
	Turn       int      `json:"turn_number"`
	Intent     string   `json:"intent"`
	Action     string   `json:"action"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	Tools      []string `json:"tools_used,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	SQL        string   `json:"sql,omitempty"`
}

// Orchestrator wires the session store, the tool executor, and the event bus.
type Orchestrator struct {
	log   *slog.Logger
	store *sessions.Store
	exec  *tools.Executor
	bus   *events.Bus
}

// New creates an orchestrator. store and exec must be non-nil; bus may be nil,
// in which case events are not published.
func New(log *slog.Logger, store *sessions.Store, exec *tools.Executor, bus *events.Bus) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{log: log, store: store, exec: exec, bus: bus}
}

// Process runs the full pipeline for one message. The only error it returns
// is ErrInvalidInput for boundary rejections; everything past validation
// resolves to a Reply.
func (o *Orchestrator) Process(ctx context.Context, sessionID, message string) (*Reply, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if len(message) > maxMessageBytes {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", ErrInvalidInput, maxMessageBytes)
	}
	if len(sessionID) > maxSessionIDLen {
		return nil, fmt.Errorf("%w: session id exceeds %d characters", ErrInvalidInput, maxSessionIDLen)
	}

	// Neutralize markup before the text touches storage or prompts.
	text := html.EscapeString(trimmed)

	id, created := o.store.GetOrCreate(sessionID)
	if created {
		o.publish(events.EventSessionCreated, id, nil)
	}
	o.publish(events.EventTurnReceived, id, map[string]any{"length": len(text)})

	snapshot := o.store.Context(id)
	c, action, res := o.runPipeline(ctx, id, text, snapshot)

	turn, ok := o.store.AppendTurn(id, text, res.Message)
	if !ok {
		// The session was evicted mid-turn; the reply still goes out.
		o.log.Warn("turn not recorded, session gone", "session", id)
	}
	o.commitContext(id, c)

	if len(action.Tools) > 0 {
		o.publish(events.EventToolInvoked, id, map[string]any{
			"tools":  action.Tools,
			"action": string(action.Kind),
			"ok":     res.OK,
		})
	}
	if action.Kind == planner.SearchOutletsNL && !res.OK && res.SQL != "" {
		o.publish(events.EventQueryRejected, id, map[string]any{"sql": res.SQL})
	}
	o.publish(events.EventTurnResponded, id, map[string]any{
		"turn":   turn.Number,
		"intent": string(c.Intent),
		"ok":     res.OK,
	})

	return &Reply{
		Response:   res.Message,
		SessionID:  id,
		Turn:       turn.Number,
		Intent:     string(c.Intent),
		Action:     string(action.Kind),
		Reasoning:  action.Reasoning,
		Confidence: action.Confidence,
		Tools:      action.Tools,
		Sources:    res.Sources,
		SQL:        res.SQL,
	}, nil
}

// runPipeline executes the classify/plan/execute stages. A panic anywhere in
// the stages converts to an apologetic result so the turn still completes.
func (o *Orchestrator) runPipeline(ctx context.Context, id, text string, snapshot map[string]string) (c intent.Classification, a planner.Action, res tools.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("pipeline panic", "session", id, "panic", r)
			res = tools.Result{Message: apologyMessage, Err: fmt.Sprintf("panic: %v", r)}
		}
	}()

	c = intent.Classify(text, snapshot)
	a = planner.Plan(c, snapshot)

	history := sessions.RenderHistory(o.store.Turns(id))
	res = o.exec.Execute(ctx, a, tools.Input{Message: text, History: history, Context: snapshot})
	if res.Message == "" {
		res.Message = apologyMessage
	}
	return c, a, res
}

// commitContext merges resolved entities into the session context so later
// turns can omit them. Last write wins.
func (o *Orchestrator) commitContext(id string, c intent.Classification) {
	if area := c.Entities[intent.EntityArea]; area != "" {
		o.store.UpdateContext(id, intent.EntityArea, area)
	}
	if loc := c.Entities[intent.EntitySpecificLocation]; loc != "" {
		o.store.UpdateContext(id, intent.EntitySpecificLocation, loc)
	}
	o.store.UpdateContext(id, ContextLastIntent, string(c.Intent))
}

func (o *Orchestrator) publish(t events.EventType, sessionID string, payload map[string]any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.NewEvent(t, events.SourceOrchestrator, payload, sessionID))
}
