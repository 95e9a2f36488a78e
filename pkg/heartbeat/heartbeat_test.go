package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/persys-dev/persys-agent/pkg/hostprobe"
	"github.com/persys-dev/persys-agent/pkg/types"
)

func TestLoop_PostsImmediatelyAndOnTick(t *testing.T) {
	var count int32
	var lastBody types.HeartbeatRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober, err := hostprobe.NewProber()
	require.NoError(t, err)

	loop := New(srv.URL, "node-1", prober)
	loop.Interval = 30 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	loop.Run(ctx)

	require.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(2))
	require.Equal(t, "node-1", lastBody.NodeID)
}

func TestLoop_ContinuesAfterFailedPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober, err := hostprobe.NewProber()
	require.NoError(t, err)

	loop := New(srv.URL, "node-1", prober)
	loop.Interval = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	require.NotPanics(t, func() { loop.Run(ctx) })
}
