package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellNotifiesSubscribersInOrder(t *testing.T) {
	c := NewCell(0)
	var seen []string

	c.Subscribe(func(v int) { seen = append(seen, "first") })
	c.Subscribe(func(v int) { seen = append(seen, "second") })

	c.Set(1)
	assert.Equal(t, 1, c.Get())
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestCellUnsubscribeIsIdempotent(t *testing.T) {
	c := NewCell("a")
	calls := 0
	cancel := c.Subscribe(func(string) { calls++ })

	c.Set("b")
	cancel()
	cancel()
	c.Set("c")

	assert.Equal(t, 1, calls)
	assert.Equal(t, "c", c.Get())
}

func TestDeriveTracksSource(t *testing.T) {
	src := NewCell[*string](nil)
	present := Derive(src, func(s *string) bool { return s != nil })
	require.False(t, present.Get())

	var last bool
	present.Subscribe(func(v bool) { last = v })

	name := "ada"
	src.Set(&name)
	assert.True(t, present.Get())
	assert.True(t, last)

	src.Set(nil)
	assert.False(t, present.Get())
	assert.False(t, last)
}

func TestDeriveSkipsUnchangedValues(t *testing.T) {
	type state struct {
		user    string
		loading bool
	}
	src := NewCell(state{})
	signedIn := Derive(src, func(s state) bool { return s.user != "" })

	var got []bool
	signedIn.Subscribe(func(v bool) { got = append(got, v) })

	src.Set(state{loading: true})
	src.Set(state{user: "ada", loading: true})
	src.Set(state{user: "ada"})
	src.Set(state{})
	src.Set(state{loading: true})

	assert.Equal(t, []bool{true, false}, got)
}

func TestSubscriberMayReadCell(t *testing.T) {
	c := NewCell(0)
	var observed int
	c.Subscribe(func(int) { observed = c.Get() })

	c.Set(7)
	assert.Equal(t, 7, observed)
}
