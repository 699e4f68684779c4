package glog

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func TestInfofCtx_PrependsRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "run-1:i1")
	out := captureOutput(t, func() {
		InfofCtx(ctx, "check finished num_scanned=%d", 3)
	})
	assert.Contains(t, out, "request_id:run-1:i1")
	assert.Contains(t, out, "check finished num_scanned=3")
}

func TestWarningfCtx_NoRequestIDLeavesMessageUntagged(t *testing.T) {
	out := captureOutput(t, func() {
		WarningfCtx(context.Background(), "object missing path=%s", "data/1/a.dat")
	})
	assert.False(t, strings.Contains(out, "request_id:"))
	assert.Contains(t, out, "object missing path=data/1/a.dat")
}

func TestInfoCtx_PrependsRequestIDTag(t *testing.T) {
	ctx := WithRequestID(context.Background(), "run-2")
	out := captureOutput(t, func() {
		InfoCtx(ctx, "starting scan")
	})
	assert.Contains(t, out, "request_id:run-2")
}
