package audittrail

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_DropsOldestHalfWhenFull(t *testing.T) {
	b := NewBuffer(10)
	for i := range 10 {
		require.Equal(t, 0, b.Append(&Event{ID: fmt.Sprintf("e-%d", i)}))
	}
	assert.Equal(t, 10, b.Len())

	dropped := b.Append(&Event{ID: "e-10"})
	assert.Equal(t, 5, dropped)
	assert.Equal(t, 6, b.Len())
	assert.Equal(t, int64(5), b.Dropped())

	all := b.Select(func(*Event) bool { return true })
	require.Len(t, all, 6)
	assert.Equal(t, "e-5", all[0].ID)
	assert.Equal(t, "e-10", all[5].ID)
}

func TestBuffer_WrapsAround(t *testing.T) {
	b := NewBuffer(4)
	for i := range 9 {
		b.Append(&Event{ID: fmt.Sprintf("e-%d", i)})
	}
	all := b.Select(func(*Event) bool { return true })
	ids := make([]string, len(all))
	for i, e := range all {
		ids[i] = e.ID
	}
	// 4 fill, e-4 halves to [2,3,4], e-5 fills, e-6 halves to [4,5,6], e-7 fills, e-8 halves to [6,7,8].
	assert.Equal(t, []string{"e-6", "e-7", "e-8"}, ids)
}

func TestBuffer_Update(t *testing.T) {
	b := NewBuffer(8)
	b.Append(&Event{ID: "a", SubjectID: "s-1"})
	b.Append(&Event{ID: "b", SubjectID: "s-2"})

	n := b.Update(
		func(e *Event) bool { return e.SubjectID == "s-1" },
		func(e *Event) { e.SubjectID = "x" },
	)
	assert.Equal(t, 1, n)
	got := b.Select(func(e *Event) bool { return e.SubjectID == "x" })
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultBufferCapacity, NewBuffer(0).capacity)
}
