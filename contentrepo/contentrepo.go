// Package contentrepo defines the contract with the external feed store: list
// the content items in a scope, and mark an item's moderation state (held,
// tagged, noted). The engine never reads item bodies from here; text arrives
// with the evaluation request.
package contentrepo

import (
	"context"

	"github.com/commons-social/warden/mods"
)

type Item struct {
	ID       string `json:"id"`
	ScopeID  string `json:"scopeId"`
	Type     string `json:"type"`
	AuthorID string `json:"authorId"`
	// moderation state, if any has been applied
	ModState mods.ActionKind `json:"modState,omitempty"`
	ModNote  string          `json:"modNote,omitempty"`
}

type ContentRepo interface {
	ListItems(ctx context.Context, scopeID string) ([]Item, error)
	MarkModerationState(ctx context.Context, scopeID, itemID string, action mods.ActionKind, note string) error
}
