package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
)

func newChangeChain(t *testing.T, property string, value any, target Target) (*nodeflow.Node, *ChangeNode, *capture) {
	t.Helper()
	in := newInjector(t)
	c, err := NewChangeNode("change", property, value, target, quiet()...)
	require.NoError(t, err)
	c.Start()
	out := newCapture(t, "out")
	wire(t, in, c)
	wire(t, c, out)
	return in, c, out
}

func TestChangeNode_SetsMetadata(t *testing.T) {
	in, _, out := newChangeChain(t, "status", "active", TargetMetadata)

	original := nodeflow.NewMessage("x")
	require.NoError(t, in.Emit(context.Background(), original))

	got := out.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Payload())
	assert.Equal(t, map[string]any{"status": "active"}, got[0].Metadata())
	assert.NotEqual(t, original.ID(), got[0].ID())

	assert.Equal(t, 0, original.Len(), "input message must not change")
}

func TestChangeNode_OverwritesMetadata(t *testing.T) {
	in, _, out := newChangeChain(t, "status", "active", TargetMetadata)

	msg := nodeflow.NewMessageWithMetadata("x", map[string]any{"status": "idle", "keep": 1})
	require.NoError(t, in.Emit(context.Background(), msg))

	got := out.messages()
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"status": "active", "keep": 1}, got[0].Metadata())

	v, _ := msg.Get("status")
	assert.Equal(t, "idle", v)
}

func TestChangeNode_SetsPayloadKey(t *testing.T) {
	in, _, out := newChangeChain(t, "count", 3, TargetPayload)

	payload := map[string]any{"name": "a"}
	msg := nodeflow.NewMessageWithMetadata(payload, map[string]any{"topic": "t"})
	require.NoError(t, in.Emit(context.Background(), msg))

	got := out.messages()
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"name": "a", "count": 3}, got[0].Payload())
	assert.Equal(t, map[string]any{"topic": "t"}, got[0].Metadata())

	assert.Equal(t, map[string]any{"name": "a"}, payload, "input payload must not change")
}

func TestChangeNode_NonMapPayloadIsReplaced(t *testing.T) {
	in, _, out := newChangeChain(t, "count", 3, TargetPayload)

	require.NoError(t, in.Emit(context.Background(), nodeflow.NewMessage("plain")))

	got := out.messages()
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"count": 3}, got[0].Payload())
}

type attrs map[string]any

func TestChangeNode_CopiesAnyStringKeyedMap(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    map[string]any
	}{
		{"string values", map[string]string{"id": "123"}, map[string]any{"id": "123", "name": "x"}},
		{"int values", map[string]int{"id": 123}, map[string]any{"id": 123, "name": "x"}},
		{"named map", attrs{"id": 123}, map[string]any{"id": 123, "name": "x"}},
		{"overwrites key", map[string]string{"name": "old"}, map[string]any{"name": "x"}},
		{"non-string keys", map[int]string{1: "a"}, map[string]any{"name": "x"}},
		{"nil", nil, map[string]any{"name": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _, out := newChangeChain(t, "name", "x", TargetPayload)

			require.NoError(t, in.Emit(context.Background(), nodeflow.NewMessage(tt.payload)))

			got := out.messages()
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Payload())
		})
	}
}

func TestChangeNode_StoppedDrops(t *testing.T) {
	in, c, out := newChangeChain(t, "status", "active", TargetMetadata)
	c.Stop()

	require.NoError(t, in.Emit(context.Background(), nodeflow.NewMessage("x")))
	assert.Equal(t, 0, out.count())
}

func TestChangeNode_SharedInputIsSafe(t *testing.T) {
	in := newInjector(t)
	a, err := NewChangeNode("a", "who", "a", TargetMetadata, quiet()...)
	require.NoError(t, err)
	b, err := NewChangeNode("b", "who", "b", TargetMetadata, quiet()...)
	require.NoError(t, err)
	a.Start()
	b.Start()
	outA := newCapture(t, "outA")
	outB := newCapture(t, "outB")
	wire(t, in, a)
	wire(t, in, b)
	wire(t, a, outA)
	wire(t, b, outB)

	require.NoError(t, in.Emit(context.Background(), nodeflow.NewMessage("x")))

	require.Equal(t, 1, outA.count())
	require.Equal(t, 1, outB.count())
	va, _ := outA.messages()[0].Get("who")
	vb, _ := outB.messages()[0].Get("who")
	assert.Equal(t, "a", va)
	assert.Equal(t, "b", vb)
}

func TestNewChangeNode_Validation(t *testing.T) {
	_, err := NewChangeNode("c", "", "v", TargetMetadata)
	require.ErrorIs(t, err, nodeflow.ErrInvalidConfig)

	_, err = NewChangeNode("c", "p", "v", Target(9))
	require.ErrorIs(t, err, nodeflow.ErrInvalidConfig)

	_, err = NewChangeNode("bad id", "p", "v", TargetMetadata)
	require.ErrorIs(t, err, nodeflow.ErrInvalidNodeID)

	c, err := NewChangeNode("c", "p", 1, TargetPayload)
	require.NoError(t, err)
	assert.Equal(t, "p", c.Property())
	assert.Equal(t, 1, c.Value())
	assert.Equal(t, TargetPayload, c.Target())
	assert.Equal(t, nodeflow.Transform, c.Capability())
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"metadata", TargetMetadata, false},
		{"", TargetMetadata, false},
		{"payload", TargetPayload, false},
		{"body", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, nodeflow.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), map[Target]string{TargetMetadata: "metadata", TargetPayload: "payload"}[tt.want])
		})
	}
}
