package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron(t *testing.T) {
	c, err := parseCron("0 3 1 * *")
	require.NoError(t, err)
	assert.True(t, c.matchesTime(time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 8, 1, 4, 0, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 8, 2, 3, 0, 0, 0, time.UTC)))
}

func TestParseCronRejectsBadExpressions(t *testing.T) {
	_, err := parseCron("0 3 1 *")
	assert.Error(t, err, "four fields")

	_, err = parseCron("x 3 1 * *")
	assert.Error(t, err, "non-numeric field")
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2026, 8, 29, 2, 30, 0, 0, time.UTC)
	next, err := nextCronTime("0 3 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC), next)

	// Already past today's trigger rolls to tomorrow.
	after = time.Date(2026, 8, 29, 3, 30, 0, 0, time.UTC)
	next, err = nextCronTime("0 3 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC), next)
}

func TestNextCronTimeListField(t *testing.T) {
	after := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	next, err := nextCronTime("0 0 1,15 * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), next)
}
