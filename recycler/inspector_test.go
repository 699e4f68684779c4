package recycler

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/kvstore/memkv"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

const dayMs = int64(86_400_000)

// lifecycle_days=7, reserved_buffer_days=3, elapsed=5d.
// expiration_ms = 4d <= 5d elapsed, alarm fires.
func TestInspectDecision_AlarmFiresWhenElapsedExceedsWindow(t *testing.T) {
	fire, expirationMs := inspectDecision(7, 3, 0, 5*dayMs)
	assert.True(t, fire)
	assert.EqualValues(t, 4*dayMs, expirationMs)
}

// S5: lifecycle_days=10, reserved_buffer_days=3, elapsed=8d.
// expiration_ms = 7d <= 8d elapsed, alarm fires.
func TestInspectDecision_S5AlarmFires(t *testing.T) {
	fire, expirationMs := inspectDecision(10, 3, 0, 8*dayMs)
	assert.True(t, fire)
	assert.EqualValues(t, 7*dayMs, expirationMs)
}

func TestInspectDecision_NoAlarmWhenRecentlyChecked(t *testing.T) {
	fire, _ := inspectDecision(10, 3, 8*dayMs, 8*dayMs)
	assert.False(t, fire)
}

// Arithmetic quirk preserved verbatim: lifecycle_days <= reserved_buffer_days
// skips the subtraction entirely instead of clamping to zero.
func TestInspectDecision_LifecycleLessThanBufferSkipsSubtraction(t *testing.T) {
	fire, expirationMs := inspectDecision(2, 3, 0, 2*dayMs)
	assert.EqualValues(t, 2*dayMs, expirationMs)
	assert.True(t, fire)
}

func TestDoInspect_NoVaultsSkipsSilently(t *testing.T) {
	store := memkv.NewStore()
	client := memkv.NewClient(store)
	instance := catalog.Instance{InstanceID: "i2", CtimeMs: 0}

	output := captureLog(t, func() {
		DoInspect(context.Background(), client, instance, 3, 1_700_000_000_000)
	})
	assert.False(t, strings.Contains(output, "check risks"))
}
