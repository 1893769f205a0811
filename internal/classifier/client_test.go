package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Classify(t *testing.T) {
	frame := []byte("fake-jpeg-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/detect/base64", r.URL.Path)

		var request detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		decoded, err := base64.StdEncoding.DecodeString(request.Image)
		require.NoError(t, err)
		assert.Equal(t, frame, decoded)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":            true,
			"fire_detected":      true,
			"highest_confidence": 0.95,
			"detection_count":    1,
			"detections": []map[string]interface{}{
				{
					"class":      "fire",
					"confidence": 0.95,
					"bbox": map[string]float64{
						"x1": 10, "y1": 20, "x2": 110, "y2": 220,
						"width": 100, "height": 200,
					},
				},
			},
			"threshold": 0.9,
			"timestamp": time.Now().Format(time.RFC3339Nano),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	result, err := client.Classify(context.Background(), frame)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.FirePresent)
	assert.Equal(t, 0.95, result.HighestConfidence)
	assert.Equal(t, 0.9, result.Threshold)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, "fire", result.Detections[0].Label)
	assert.Equal(t, 100, result.Detections[0].Box.Width)
	assert.False(t, result.CapturedAt.IsZero())
}

func TestClient_Classify_NoFire(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":            true,
			"fire_detected":      false,
			"highest_confidence": 0.0,
			"detection_count":    0,
			"detections":         []interface{}{},
			"threshold":          0.9,
			"timestamp":          time.Now().Format(time.RFC3339Nano),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	result, err := client.Classify(context.Background(), []byte("frame"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.FirePresent)
	assert.Empty(t, result.Detections)
}

// 后端返回 5xx 视为推理调用失败
func TestClient_Classify_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	result, err := client.Classify(context.Background(), []byte("frame"))

	assert.Error(t, err)
	assert.Nil(t, result)
}

// 后端不可达视为推理调用失败（区别于"无火情"）
func TestClient_Classify_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond, zap.NewNop())

	result, err := client.Classify(context.Background(), []byte("frame"))

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "healthy",
			"model_loaded": true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	modelLoaded, err := client.Health(context.Background())

	require.NoError(t, err)
	assert.True(t, modelLoaded)
}

func TestClient_Health_ModelNotLoaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "degraded",
			"model_loaded": false,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	modelLoaded, err := client.Health(context.Background())

	require.NoError(t, err)
	assert.False(t, modelLoaded)
}
