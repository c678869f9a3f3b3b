package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/bootstrap/config"
	"github.com/GoCodeAlone/bootstrap/typefinder"
)

func named(composers ...*testComposer) []namedComposer {
	out := make([]namedComposer, len(composers))
	for i, c := range composers {
		out[i] = namedComposer{name: c.name, composer: c}
	}
	return out
}

func TestOrderComposers(t *testing.T) {
	tests := []struct {
		name      string
		composers []*testComposer
		want      []string
	}{
		{
			name:      "unconstrained keeps discovery order",
			composers: []*testComposer{{name: "c"}, {name: "a"}, {name: "b"}},
			want:      []string{"c", "a", "b"},
		},
		{
			name: "before and after",
			composers: []*testComposer{
				{name: "web", after: []string{"db"}},
				{name: "db"},
				{name: "logging", before: []string{"db", "web"}},
			},
			want: []string{"logging", "db", "web"},
		},
		{
			name: "tie break among ready composers",
			composers: []*testComposer{
				{name: "late", after: []string{"root"}},
				{name: "root"},
				{name: "free"},
			},
			want: []string{"root", "late", "free"},
		},
		{
			name: "unknown targets ignored",
			composers: []*testComposer{
				{name: "a", after: []string{"missing"}},
				{name: "b", before: []string{"ghost"}},
			},
			want: []string{"a", "b"},
		},
		{
			name: "duplicate constraints",
			composers: []*testComposer{
				{name: "b", after: []string{"a", "a"}},
				{name: "a", before: []string{"b"}},
			},
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ordered, err := orderComposers(named(tt.composers...), &testLogger{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, composerNames(ordered))
		})
	}
}

func TestOrderComposersCycle(t *testing.T) {
	_, err := orderComposers(named(
		&testComposer{name: "ok"},
		&testComposer{name: "x", before: []string{"y"}},
		&testComposer{name: "y", before: []string{"z"}},
		&testComposer{name: "z", before: []string{"x"}},
	), &testLogger{})
	assert.ErrorIs(t, err, ErrComposerCycle)
	assert.Contains(t, err.Error(), "[x y z]")

	_, err = orderComposers(named(&testComposer{name: "self", after: []string{"self"}}), &testLogger{})
	assert.ErrorIs(t, err, ErrComposerCycle)
}

func TestDiscoverComposersExcludesDisabledBeforeOrdering(t *testing.T) {
	registry := typefinder.NewRegistry()
	addComposers(t, registry,
		&testComposer{name: "a", after: []string{"disabled"}},
		&testComposer{name: "disabled", after: []string{"a"}, enabled: func(*RuntimeState) bool { return false }},
	)
	finder := typefinder.New(registry, t.TempDir(), &testLogger{})
	state := NewRuntimeState(config.NewSnapshot(testSettings(t)), &testLogger{})

	names, err := ComposerNames(finder, state, &testLogger{})
	require.NoError(t, err, "a cycle through a disabled composer is not a cycle")
	assert.Equal(t, []string{"a"}, names)
}

func TestRunComposersStopsAtFirstError(t *testing.T) {
	var ran []string
	composers := named(
		&testComposer{name: "one", log: &ran},
		&testComposer{name: "two", log: &ran, compose: func(*Composition) error { return ErrInvalidRegistration }},
		&testComposer{name: "three", log: &ran},
	)
	err := runComposers(composers, NewComposition(nil), &testLogger{})
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	assert.Contains(t, err.Error(), "composer two")
	assert.Equal(t, []string{"one", "two"}, ran)
}
