package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/commons-social/warden/mods"
)

// MockClassifier returns scripted verdicts keyed by substring, for tests and
// local development. If Err is set, every call fails (exercising the
// fail-open path).
type MockClassifier struct {
	mu sync.Mutex

	// substring of the (context-prefixed) input text -> verdict
	Verdicts map[string]*Verdict
	Err      error

	// inputs seen, in order
	Calls []string
}

var _ Classifier = (*MockClassifier)(nil)

func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		Verdicts: make(map[string]*Verdict),
	}
}

// Script registers a verdict for any input containing the substring.
func (m *MockClassifier) Script(substring string, scores mods.CategoryScores, rationale string, evidence ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verdicts[substring] = &Verdict{Scores: scores, Rationale: rationale, Evidence: evidence}
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, text)
	if m.Err != nil {
		return nil, m.Err
	}
	for sub, v := range m.Verdicts {
		if strings.Contains(text, sub) {
			out := *v
			out.Scores.Clamp()
			return &out, nil
		}
	}
	return &Verdict{Rationale: fmt.Sprintf("no scripted verdict for input (%d bytes)", len(text))}, nil
}
