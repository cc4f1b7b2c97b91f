package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kopihq/kopi/internal/models"
)

// ErrNotInitialized is returned when a query arrives before the vector
// store has been built.
var ErrNotInitialized = errors.New("vector store not initialized")

// Answer is the outcome of one product knowledge base query.
type Answer struct {
	Text       string    `json:"answer"`
	Products   []Product `json:"products"`
	Sources    []string  `json:"sources"`
	TotalFound int       `json:"total_found"`
}

// KnowledgeBase retrieves catalog candidates by vector similarity and asks a
// chat model for an answer grounded in them.
type KnowledgeBase struct {
	store      *VectorStore
	chat       model.BaseChatModel
	maxResults int
	floor      float32
}

// NewKnowledgeBase wires the vector store and chat model together.
// maxResults bounds retrieval; matches below floor are discarded.
func NewKnowledgeBase(store *VectorStore, chat model.BaseChatModel, maxResults int, floor float64) *KnowledgeBase {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &KnowledgeBase{store: store, chat: chat, maxResults: maxResults, floor: float32(floor)}
}

const ragSystem = "You are a knowledgeable coffee chain product specialist helping customers " +
	"find the right drinkware. Answer only from the provided product information."

// Query searches the catalog and generates a grounded answer.
func (kb *KnowledgeBase) Query(ctx context.Context, question string) (Answer, error) {
	if kb.store == nil || kb.store.Count() == 0 {
		return Answer{}, ErrNotInitialized
	}

	matches, err := kb.store.Search(ctx, question, kb.maxResults)
	if err != nil {
		return Answer{}, fmt.Errorf("search products: %w", err)
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Similarity >= kb.floor {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return Answer{Text: "I couldn't find any relevant products for your query."}, nil
	}

	text, err := kb.generateAnswer(ctx, question, kept)
	if err != nil {
		// Retrieval worked; degrade to a plain listing rather than failing.
		text = listingFallback(kept)
	}

	top := kept
	if len(top) > 3 {
		top = top[:3]
	}
	ans := Answer{Text: text, TotalFound: len(kept)}
	for _, m := range top {
		ans.Products = append(ans.Products, m.Product)
		ans.Sources = append(ans.Sources, m.Product.Name)
	}
	return ans, nil
}

func (kb *KnowledgeBase) generateAnswer(ctx context.Context, question string, matches []Match) (string, error) {
	if kb.chat == nil {
		return "", errors.New("no chat model configured")
	}

	var b strings.Builder
	b.WriteString("Relevant drinkware products:\n\n")
	for i, m := range matches {
		if i == 3 {
			break
		}
		p := m.Product
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, p.Name, p.Price)
		fmt.Fprintf(&b, "   Description: %s\n", p.Description)
		if len(p.Features) > 0 {
			fmt.Fprintf(&b, "   Features: %s\n", strings.Join(p.Features, ", "))
		}
		if p.Material != "" {
			fmt.Fprintf(&b, "   Material: %s\n", p.Material)
		}
		if p.Capacity != "" {
			fmt.Fprintf(&b, "   Capacity: %s\n", p.Capacity)
		}
		b.WriteString("\n")
	}

	prompt := fmt.Sprintf(`Product Information:
%s
Customer Question: %s

Answer based on the product information above. If recommending products,
explain why they match the customer's needs. Be friendly and concise.`, b.String(), question)

	resp, err := kb.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(ragSystem),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", models.HandleError(err)
	}
	return strings.TrimSpace(resp.Content), nil
}

func listingFallback(matches []Match) string {
	var names []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		names = append(names, fmt.Sprintf("%s (%s)", m.Product.Name, m.Product.Price))
	}
	return "Here are some products that may match: " + strings.Join(names, ", ") + "."
}
