package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/commons-social/warden/mods"
	"github.com/commons-social/warden/policy"
)

// Typed accessors over the string-valued KV contract. Cases and actions are
// stored as JSON arrays under their scope key; the contract has no listing
// primitive, so "all cases for a scope" is a single read.

func GetPolicySpec(ctx context.Context, s Store, scopeID string) (*policy.Spec, error) {
	raw, err := s.Get(ctx, PolicyKey(scopeID))
	if err != nil {
		return nil, fmt.Errorf("reading policy spec: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var spec policy.Spec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("parsing policy spec: %w", err)
	}
	return &spec, nil
}

func PutPolicySpec(ctx context.Context, s Store, scopeID string, spec policy.Spec) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return s.Set(ctx, PolicyKey(scopeID), string(raw))
}

func GetCases(ctx context.Context, s Store, scopeID string) ([]mods.ModCase, error) {
	raw, err := s.Get(ctx, CasesKey(scopeID))
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}
	if raw == "" {
		return []mods.ModCase{}, nil
	}
	var cases []mods.ModCase
	if err := json.Unmarshal([]byte(raw), &cases); err != nil {
		return nil, fmt.Errorf("parsing cases: %w", err)
	}
	return cases, nil
}

func PutCases(ctx context.Context, s Store, scopeID string, cases []mods.ModCase) error {
	raw, err := json.Marshal(cases)
	if err != nil {
		return err
	}
	return s.Set(ctx, CasesKey(scopeID), string(raw))
}

// AppendCase does a read-modify-write of the scope's case list. There is no
// store-level atomicity between the read and the write; callers needing
// stronger duplicate protection take a SetNX claim first.
func AppendCase(ctx context.Context, s Store, mc mods.ModCase) error {
	cases, err := GetCases(ctx, s, mc.ScopeID)
	if err != nil {
		return err
	}
	return PutCases(ctx, s, mc.ScopeID, append(cases, mc))
}

func GetActions(ctx context.Context, s Store, scopeID string) ([]mods.ModAction, error) {
	raw, err := s.Get(ctx, ActionsKey(scopeID))
	if err != nil {
		return nil, fmt.Errorf("reading actions: %w", err)
	}
	if raw == "" {
		return []mods.ModAction{}, nil
	}
	var actions []mods.ModAction
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		return nil, fmt.Errorf("parsing actions: %w", err)
	}
	return actions, nil
}

// AppendAction appends to the scope's audit log. The log is append-only;
// nothing in the engine ever rewrites an existing entry.
func AppendAction(ctx context.Context, s Store, action mods.ModAction) error {
	actions, err := GetActions(ctx, s, action.ScopeID)
	if err != nil {
		return err
	}
	actions = append(actions, action)
	raw, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	return s.Set(ctx, ActionsKey(action.ScopeID), string(raw))
}

func GetCharter(ctx context.Context, s Store, scopeID string) (string, error) {
	return s.Get(ctx, CharterKey(scopeID))
}

func PutCharter(ctx context.Context, s Store, scopeID, charter string) error {
	return s.Set(ctx, CharterKey(scopeID), charter)
}
