package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathV0RoundTrip(t *testing.T) {
	segPath := PathV0.SegmentPath(100, "R1", 0)
	assert.Equal(t, "data/100/R1_0.dat", segPath)

	tabletID, rowsetID, ok := PathV0.ParseSegmentPath(segPath)
	assert.True(t, ok)
	assert.Equal(t, int64(100), tabletID)
	assert.Equal(t, "R1", rowsetID)
}

func TestPathV0ParseRejectsMalformed(t *testing.T) {
	_, _, ok := PathV0.ParseSegmentPath("data/not-a-number/foo.dat")
	assert.False(t, ok)

	_, _, ok = PathV0.ParseSegmentPath("only-one-segment")
	assert.False(t, ok)
}

func TestTabletPath(t *testing.T) {
	assert.Equal(t, "data/100", PathV0.TabletPath(100))
}
