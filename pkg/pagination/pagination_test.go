package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	none, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ParseCursor("%%%")
	assert.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestTrim(t *testing.T) {
	rows := []int{1, 2, 3}
	cursorOf := func(i int) Cursor { return Cursor{CreatedAt: time.Unix(int64(i), 0)} }

	page, next := Trim(rows, 2, cursorOf)
	assert.Equal(t, []int{1, 2}, page)
	c, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.CreatedAt.Unix())

	page, next = Trim(rows, 3, cursorOf)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
