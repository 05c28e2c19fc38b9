package contentrepo

import (
	"context"
	"fmt"
	"sync"

	"github.com/commons-social/warden/mods"
)

// MemContentRepo is the in-process implementation, for tests and local
// development.
type MemContentRepo struct {
	mu    sync.Mutex
	items map[string][]Item // scopeID -> items
}

var _ ContentRepo = (*MemContentRepo)(nil)

func NewMemContentRepo() *MemContentRepo {
	return &MemContentRepo{
		items: make(map[string][]Item),
	}
}

func (r *MemContentRepo) AddItem(item Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ScopeID] = append(r.items[item.ScopeID], item)
}

func (r *MemContentRepo) ListItems(ctx context.Context, scopeID string) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, len(r.items[scopeID]))
	copy(out, r.items[scopeID])
	return out, nil
}

func (r *MemContentRepo) MarkModerationState(ctx context.Context, scopeID, itemID string, action mods.ActionKind, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items[scopeID] {
		if r.items[scopeID][i].ID == itemID {
			r.items[scopeID][i].ModState = action
			r.items[scopeID][i].ModNote = note
			return nil
		}
	}
	return fmt.Errorf("content item not found: %s/%s", scopeID, itemID)
}
