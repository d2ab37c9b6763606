package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	free := Resolve("free")
	assert.True(t, free.Watermark)
	assert.Equal(t, WatermarkText, free.Text)
	assert.False(t, free.CanCreate(3))
	assert.True(t, free.CanCreate(2))

	for _, plan := range []string{"pro", "LIFETIME", " pro "} {
		e := Resolve(plan)
		assert.False(t, e.Watermark, plan)
		assert.True(t, e.CanCreate(1000), plan)
	}

	assert.Equal(t, PlanFree, Resolve("enterprise").Plan)
	assert.True(t, Resolve("").Watermark)
}
