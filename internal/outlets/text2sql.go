package outlets

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kopihq/kopi/internal/models"
)

// QueryResult is the outcome of one natural-language outlet query.
type QueryResult struct {
	SQL   string           `json:"sql_query"`
	Rows  []map[string]any `json:"results"`
	Count int              `json:"count"`
}

// Text2SQL turns natural-language outlet questions into guarded SELECT
// statements and runs them against the outlets database.
type Text2SQL struct {
	chat model.BaseChatModel
	db   *DB
}

// NewText2SQL wires a chat model to the outlets database.
func NewText2SQL(chat model.BaseChatModel, db *DB) *Text2SQL {
	return &Text2SQL{chat: chat, db: db}
}

const text2sqlSystem = "You are a SQL expert. Generate only valid SQLite SELECT queries. " +
	"Return only the SQL query with no explanation and no code fences."

// Translate converts a natural-language question into a SQL statement.
// The result is not yet validated; Query runs it through the guard.
func (t *Text2SQL) Translate(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`Database schema for a coffee outlet chain:

%s

Convert this question to a single SQLite SELECT statement:
%q

Rules:
1. Only generate SELECT statements.
2. For time comparisons use string comparison (e.g. opening_time <= '10:00').
3. For the services column use LIKE (e.g. services LIKE '%%drive-thru%%').
4. Use LIMIT for "first few" or "top" questions.
5. Use LOWER() for case-insensitive text matching.

Examples:
- "outlets in Kuala Lumpur" -> SELECT * FROM outlets WHERE LOWER(city) = 'kuala lumpur'
- "outlets with drive thru" -> SELECT * FROM outlets WHERE has_drive_thru = 1
- "24 hour outlets" -> SELECT * FROM outlets WHERE is_24_hours = 1`, SchemaInfo(), question)

	resp, err := t.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(text2sqlSystem),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", models.HandleError(err))
	}

	return stripCodeFences(resp.Content), nil
}

// Query translates, validates and executes a natural-language question.
func (t *Text2SQL) Query(ctx context.Context, question string) (QueryResult, error) {
	sqlQuery, err := t.Translate(ctx, question)
	if err != nil {
		return QueryResult{}, err
	}

	rows, err := t.db.Query(ctx, sqlQuery)
	if err != nil {
		return QueryResult{SQL: sqlQuery}, err
	}

	return QueryResult{SQL: sqlQuery, Rows: rows, Count: len(rows)}, nil
}

// stripCodeFences removes markdown fencing the model may wrap around SQL.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
