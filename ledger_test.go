package locus

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mryildirim91/locus/internal/testutil"
)

type ledgerService struct {
	Name string
}

type ledgerProvider struct {
	value any
	ok    bool
}

func (p *ledgerProvider) TryGetFor(client Node) (any, bool) {
	return p.value, p.ok
}

func TestLedger_RegisterValidation(t *testing.T) {
	l := NewLedger(nil, nil)

	t.Run("nil value", func(t *testing.T) {
		_, err := l.Register(nil, VisibleEverywhere, nil)
		assert.ErrorIs(t, err, ErrNilScopedValue)
	})

	t.Run("invalid visibility", func(t *testing.T) {
		_, err := l.Register(&ledgerService{}, Visibility(99), nil)
		var visErr VisibilityError
		assert.ErrorAs(t, err, &visErr)
	})

	t.Run("narrow visibility requires registerer", func(t *testing.T) {
		_, err := l.Register(&ledgerService{}, VisibleToDescendants, nil)
		assert.Error(t, err)
	})

	t.Run("everywhere needs no registerer", func(t *testing.T) {
		entry, err := l.Register(&ledgerService{}, VisibleEverywhere, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID())
		assert.Equal(t, VisibleEverywhere, entry.Visibility())
	})
}

func TestLedger_SelectNearest(t *testing.T) {
	tree := testutil.NewTree()
	root := tree.AddRoot("root", "game")
	mid := tree.AddChild(root, "mid")
	leaf := tree.AddChild(mid, "leaf")

	serviceType := reflect.TypeFor[*ledgerService]()

	t.Run("own node beats ancestor", func(t *testing.T) {
		l := NewLedger(tree, nil)

		fromRoot := &ledgerService{Name: "root"}
		fromLeaf := &ledgerService{Name: "leaf"}

		_, err := l.Register(fromRoot, VisibleToDescendants, root)
		require.NoError(t, err)
		_, err = l.Register(fromLeaf, VisibleToSelf, leaf)
		require.NoError(t, err)

		entry, ok := l.Select(serviceType, leaf)
		require.True(t, ok)
		assert.Same(t, fromLeaf, entry.Value())
	})

	t.Run("nearer ancestor beats farther", func(t *testing.T) {
		l := NewLedger(tree, nil)

		fromRoot := &ledgerService{Name: "root"}
		fromMid := &ledgerService{Name: "mid"}

		_, err := l.Register(fromRoot, VisibleToDescendants, root)
		require.NoError(t, err)
		_, err = l.Register(fromMid, VisibleToDescendants, mid)
		require.NoError(t, err)

		entry, ok := l.Select(serviceType, leaf)
		require.True(t, ok)
		assert.Same(t, fromMid, entry.Value())
	})

	t.Run("unreachable entries are ignored", func(t *testing.T) {
		l := NewLedger(tree, nil)

		_, err := l.Register(&ledgerService{}, VisibleToSelf, root)
		require.NoError(t, err)

		_, ok := l.Select(serviceType, leaf)
		assert.False(t, ok)
	})

	t.Run("nil client sees only everywhere", func(t *testing.T) {
		l := NewLedger(tree, nil)

		global := &ledgerService{Name: "global"}
		_, err := l.Register(&ledgerService{Name: "scoped"}, VisibleToDescendants, root)
		require.NoError(t, err)
		_, err = l.Register(global, VisibleEverywhere, nil)
		require.NoError(t, err)

		entry, ok := l.Select(serviceType, nil)
		require.True(t, ok)
		assert.Same(t, global, entry.Value())
	})
}

func TestLedger_SelectAmbiguityWarnsOnce(t *testing.T) {
	tree := testutil.NewTree()
	root := tree.AddRoot("root", "game")
	a := tree.AddChild(root, "a")
	b := tree.AddChild(root, "b")
	client := tree.AddChild(root, "client")

	core, logs := observer.New(zap.WarnLevel)
	l := NewLedger(tree, zap.New(core))

	first := &ledgerService{Name: "first"}
	second := &ledgerService{Name: "second"}

	// Both entries rank identically from the client's point of view.
	_, err := l.Register(first, VisibleToSameContainer, a)
	require.NoError(t, err)
	_, err = l.Register(second, VisibleToSameContainer, b)
	require.NoError(t, err)

	entry, ok := l.Select(reflect.TypeFor[*ledgerService](), client)
	require.True(t, ok)
	assert.Same(t, first, entry.Value(), "insertion order breaks the tie")

	entries := logs.FilterMessage("ambiguous scoped service match, returning an arbitrary candidate").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["equallyRanked"])
}

func TestLedger_SelectNonComparableValues(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	l := NewLedger(nil, zap.New(core))

	first := map[string]string{"source": "first"}
	second := map[string]string{"source": "second"}

	_, err := l.Register(first, VisibleEverywhere, nil)
	require.NoError(t, err)
	_, err = l.Register(second, VisibleEverywhere, nil)
	require.NoError(t, err)

	entry, ok := l.Select(reflect.TypeFor[map[string]string](), nil)
	require.True(t, ok)
	assert.Equal(t, "first", entry.Value().(map[string]string)["source"], "insertion order breaks the tie")

	entries := logs.FilterMessage("ambiguous scoped service match, returning an arbitrary candidate").All()
	require.Len(t, entries, 1)
}

func TestLedger_ProviderQualifies(t *testing.T) {
	tree := testutil.NewTree()
	node := tree.AddRoot("node", "game")

	l := NewLedger(tree, nil)

	provider := &ledgerProvider{value: &ledgerService{}, ok: true}
	_, err := l.Register(provider, VisibleToSelf, node)
	require.NoError(t, err)

	entry, ok := l.Select(reflect.TypeFor[*ledgerService](), node)
	require.True(t, ok)
	assert.Same(t, provider, entry.Value())
}

func TestLedger_UnregisterAllFor(t *testing.T) {
	tree := testutil.NewTree()
	a := tree.AddRoot("a", "game")
	b := tree.AddRoot("b", "game")

	l := NewLedger(tree, nil)

	_, err := l.Register(&ledgerService{}, VisibleToSelf, a)
	require.NoError(t, err)
	_, err = l.Register(&ledgerService{}, VisibleToDescendants, a)
	require.NoError(t, err)
	keep, err := l.Register(&ledgerService{}, VisibleToSelf, b)
	require.NoError(t, err)

	assert.Equal(t, 2, l.UnregisterAllFor(a))
	assert.Equal(t, 1, l.Len())

	assert.True(t, l.Unregister(keep))
	assert.False(t, l.Unregister(keep), "second withdrawal reports absence")
	assert.Zero(t, l.Len())
}

func TestLedger_VisibleEntriesOrder(t *testing.T) {
	tree := testutil.NewTree()
	root := tree.AddRoot("root", "game")
	mid := tree.AddChild(root, "mid")
	leaf := tree.AddChild(mid, "leaf")

	l := NewLedger(tree, nil)

	fromRoot := &ledgerService{Name: "root"}
	fromMid := &ledgerService{Name: "mid"}
	fromLeaf := &ledgerService{Name: "leaf"}

	_, err := l.Register(fromRoot, VisibleToDescendants, root)
	require.NoError(t, err)
	_, err = l.Register(fromLeaf, VisibleToSelf, leaf)
	require.NoError(t, err)
	_, err = l.Register(fromMid, VisibleToDescendants, mid)
	require.NoError(t, err)

	entries := l.VisibleEntries(reflect.TypeFor[*ledgerService](), leaf)
	require.Len(t, entries, 3)
	assert.Same(t, fromLeaf, entries[0].Value())
	assert.Same(t, fromMid, entries[1].Value())
	assert.Same(t, fromRoot, entries[2].Value())
}
