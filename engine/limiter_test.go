package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVelocityLimiterCap(t *testing.T) {
	assert := assert.New(t)
	lim := NewVelocityLimiter(2)

	assert.NoError(lim.Take())
	assert.NoError(lim.Take())
	assert.ErrorIs(lim.Take(), ErrVelocityExceeded)
}

func TestVelocityLimiterNilIsUnlimited(t *testing.T) {
	var lim *VelocityLimiter
	assert.NoError(t, lim.Take())
}
