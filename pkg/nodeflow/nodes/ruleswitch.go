package nodes

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// Rule sends a message to the output at the rule's index when the named
// metadata property is present.
type Rule struct {
	Name     string `json:"name" yaml:"name"`
	Property string `json:"property" yaml:"property"`
}

// RuleSwitchNode routes by an ordered list of rules.
//
// Rule i is paired with output i. Every rule whose property is present
// (and non-nil) fires, so one message may go to several outputs, always in
// rule order. Rules beyond the number of outputs are not evaluated.
type RuleSwitchNode struct {
	*nodeflow.Node

	mu    sync.RWMutex
	rules []Rule
}

// NewRuleSwitchNode creates a rule switch with the given initial rules.
func NewRuleSwitchNode(id string, rules []Rule, opts ...nodeflow.Option) (*RuleSwitchNode, error) {
	s := &RuleSwitchNode{}
	base, err := nodeflow.NewNode(id, nodeflow.Transform, s, opts...)
	if err != nil {
		return nil, err
	}
	s.Node = base

	for _, r := range rules {
		if err := s.AddRule(r.Name, r.Property); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddRule appends a rule. Rules are never reordered or removed.
func (s *RuleSwitchNode) AddRule(name, property string) error {
	if property == "" {
		return fmt.Errorf("rule switch %s: %w: rule %q has no property", s.ID(), nodeflow.ErrInvalidConfig, name)
	}
	s.mu.Lock()
	s.rules = append(s.rules, Rule{Name: name, Property: property})
	s.mu.Unlock()
	return nil
}

// Rules returns a copy of the rule list.
func (s *RuleSwitchNode) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules)
}

// Process implements nodeflow.Processor.
func (s *RuleSwitchNode) Process(ctx context.Context, msg nodeflow.Message) error {
	rules := s.Rules()
	pipes := s.Outputs().Pipes()

	var errs []error
	for i := 0; i < len(rules) && i < len(pipes); i++ {
		if v, ok := msg.Get(rules[i].Property); !ok || v == nil {
			continue
		}
		if !pipes[i].IsConnected() {
			observability.LogDrop(s.Logger(), s.ID(), msg.ID(), observability.DropRoutingMiss)
			s.Metrics().RecordDrop(ctx, s.ID(), observability.DropRoutingMiss)
			continue
		}
		if err := pipes[i].Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
