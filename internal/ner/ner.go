// Package ner provides the entity-extraction port and its adapters: a local
// lexicon built from the rule catalogs and an HTTP client for a remote model.
package ner

import (
	"context"

	"github.com/ppiankov/chartrisk/internal/model"
)

// Extractor finds clinical entities in a chunk of text.
// Only Entity.Text takes part in rule retrieval.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]model.Entity, error)
}

// Texts returns the entity texts in order
func Texts(entities []model.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Text)
	}
	return out
}
