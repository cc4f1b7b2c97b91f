// Package products answers drinkware questions with retrieval-augmented
// generation: a vector store over the product catalog supplies candidates,
// and a chat model writes an answer grounded in them.
package products

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Product is one drinkware catalog entry.
type Product struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Price       string   `yaml:"price" json:"price"`
	Description string   `yaml:"description" json:"description"`
	Category    string   `yaml:"category" json:"category"`
	Material    string   `yaml:"material" json:"material"`
	Capacity    string   `yaml:"capacity" json:"capacity"`
	Features    []string `yaml:"features" json:"features"`
}

// SearchText renders the product as one flat string for embedding.
func (p Product) SearchText() string {
	parts := []string{
		"Product: " + p.Name,
		"Price: " + p.Price,
		"Category: " + p.Category,
		"Material: " + p.Material,
		"Capacity: " + p.Capacity,
		"Description: " + p.Description,
	}
	if len(p.Features) > 0 {
		parts = append(parts, "Features: "+strings.Join(p.Features, ", "))
	}
	return strings.Join(parts, " | ")
}

// LoadCatalog parses the embedded drinkware catalog.
func LoadCatalog() ([]Product, error) {
	var doc struct {
		Products []Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("load product catalog: %w", err)
	}
	return doc.Products, nil
}
