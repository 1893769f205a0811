package camera

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshotSource_Capture(t *testing.T) {
	frame := []byte("fake-jpeg-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(frame)
	}))
	defer server.Close()

	source := NewSnapshotSource(server.URL, 5*time.Second, zap.NewNop())

	got, err := source.Capture(context.Background())

	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

// 摄像头不可达返回 ErrNoFrame，循环静默跳过本次采样
func TestSnapshotSource_UnreachableReturnsNoFrame(t *testing.T) {
	source := NewSnapshotSource("http://127.0.0.1:1/snapshot", 500*time.Millisecond, zap.NewNop())

	_, err := source.Capture(context.Background())

	assert.ErrorIs(t, err, ErrNoFrame)
}

// 空响应体视为无帧可用
func TestSnapshotSource_EmptyBodyReturnsNoFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	source := NewSnapshotSource(server.URL, 5*time.Second, zap.NewNop())

	_, err := source.Capture(context.Background())

	assert.ErrorIs(t, err, ErrNoFrame)
}

// 非 2xx 状态是真实错误，不是未就绪
func TestSnapshotSource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	source := NewSnapshotSource(server.URL, 5*time.Second, zap.NewNop())

	_, err := source.Capture(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFrame)
}
