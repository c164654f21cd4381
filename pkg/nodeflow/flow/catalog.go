package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/bridge/natsbridge"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/config"
	nferrors "github.com/randalmurphal/nodeflow/pkg/nodeflow/errors"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/nodes"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/registry"
)

// Node types known to DefaultCatalog.
const (
	TypeChange     = "change"
	TypeSwitch     = "switch"
	TypeRuleSwitch = "rule-switch"
	TypeCatch      = "catch"
	TypeDebug      = "debug"
	TypeNATSIn     = "nats-in"
	TypeNATSOut    = "nats-out"
)

// Deps are the shared services factories may use.
type Deps struct {
	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager

	// NATS dials for bridge nodes that do not set their own url.
	NATS natsbridge.Dialer

	// DebugHub receives records from every debug node.
	DebugHub *nodes.DebugHub
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Factory builds one node from its spec. opts carry the logger, metrics,
// pipeline and fault reporter the node must be created with.
type Factory func(spec config.NodeSpec, deps Deps, opts []nodeflow.Option) (nodeflow.Element, error)

// Catalog maps node types to factories.
type Catalog struct {
	factories *registry.Registry[string, Factory]
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: registry.New[string, Factory]()}
}

// DefaultCatalog returns a catalog holding every built-in node type.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.factories.Register(TypeChange, newChange)
	c.factories.Register(TypeSwitch, newSwitch)
	c.factories.Register(TypeRuleSwitch, newRuleSwitch)
	c.factories.Register(TypeCatch, newCatch)
	c.factories.Register(TypeDebug, newDebug)
	c.factories.Register(TypeNATSIn, newNATSIn)
	c.factories.Register(TypeNATSOut, newNATSOut)
	return c
}

// Register adds a factory. Registering a type twice is an error.
func (c *Catalog) Register(typ string, f Factory) error {
	if typ == "" || f == nil {
		return fmt.Errorf("%w: factory needs a type and a function", nodeflow.ErrInvalidConfig)
	}
	if !c.factories.Add(typ, f) {
		return fmt.Errorf("%w: node type %q already registered", nodeflow.ErrInvalidConfig, typ)
	}
	return nil
}

// Types returns the registered node types in ascending order.
func (c *Catalog) Types() []string {
	return c.factories.Keys()
}

// Create builds the node described by spec.
func (c *Catalog) Create(spec config.NodeSpec, deps Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	f, ok := c.factories.Get(spec.Type)
	if !ok {
		return nil, &nferrors.ConfigError{
			Field:   spec.ID + ".type",
			Message: fmt.Sprintf("unknown node type %q (known: %s)", spec.Type, strings.Join(c.Types(), ", ")),
		}
	}
	el, err := f(spec, deps, opts)
	if err != nil {
		return nil, fmt.Errorf("create %s node %s: %w", spec.Type, spec.ID, err)
	}
	return el, nil
}

func newChange(spec config.NodeSpec, _ Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	s := spec.Settings()
	if err := s.Require("property"); err != nil {
		return nil, err
	}
	target, err := nodes.ParseTarget(s.String("target", ""))
	if err != nil {
		return nil, err
	}
	return nodes.NewChangeNode(spec.ID, s.String("property", ""), s.Any("value", nil), target, opts...)
}

func newSwitch(spec config.NodeSpec, _ Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	s := spec.Settings()
	if err := s.Require("property"); err != nil {
		return nil, err
	}
	return nodes.NewSwitchNode(spec.ID, s.String("property", ""), opts...)
}

func newRuleSwitch(spec config.NodeSpec, _ Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	var rules []nodes.Rule
	for _, r := range spec.Settings().MapSlice("rules") {
		rules = append(rules, nodes.Rule{
			Name:     r.String("name", ""),
			Property: r.String("property", ""),
		})
	}
	return nodes.NewRuleSwitchNode(spec.ID, rules, opts...)
}

func newCatch(spec config.NodeSpec, _ Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	s := spec.Settings()
	scope, err := nodes.ParseScope(s.String("scope", ""))
	if err != nil {
		return nil, err
	}
	c, err := nodes.NewCatchNode(spec.ID, scope, opts...)
	if err != nil {
		return nil, err
	}
	for _, id := range s.StringSlice("targets", nil) {
		c.AddTarget(id)
	}
	return c, nil
}

func newDebug(spec config.NodeSpec, deps Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	s := spec.Settings()
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.String("level", "info"))); err != nil {
		return nil, &nferrors.ConfigError{Field: "level", Message: err.Error()}
	}
	return nodes.NewDebugNode(spec.ID, nodes.DebugConfig{
		Level:           level,
		JSON:            s.Bool("json", false),
		IncludeMetadata: s.Bool("metadata", false),
		Hub:             deps.DebugHub,
	}, opts...)
}

func natsDialer(s config.Config, deps Deps) (natsbridge.Dialer, error) {
	if url := s.String("url", ""); url != "" {
		return natsbridge.NewDialer(url,
			natsbridge.WithClientName(s.String("client_name", "")),
			natsbridge.WithConnectTimeout(s.Duration("connect_timeout", 0)),
			natsbridge.WithDialLogger(deps.logger()),
		), nil
	}
	if deps.NATS == nil {
		return nil, &nferrors.ConfigError{Field: "url", Message: "no url set and no default NATS connection"}
	}
	return deps.NATS, nil
}

func newNATSIn(spec config.NodeSpec, deps Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	s := spec.Settings()
	dial, err := natsDialer(s, deps)
	if err != nil {
		return nil, err
	}
	return natsbridge.NewInNode(spec.ID, dial, natsbridge.InConfig{
		Subjects:    s.StringSlice("subjects", nil),
		Queue:       s.String("queue", ""),
		JSONPayload: s.Bool("json", false),
	}, opts...)
}

func newNATSOut(spec config.NodeSpec, deps Deps, opts []nodeflow.Option) (nodeflow.Element, error) {
	s := spec.Settings()
	dial, err := natsDialer(s, deps)
	if err != nil {
		return nil, err
	}
	return natsbridge.NewOutNode(spec.ID, dial, natsbridge.OutConfig{
		Subject:         s.String("subject", ""),
		SubjectOverride: s.Bool("subject_override", false),
	}, opts...)
}
