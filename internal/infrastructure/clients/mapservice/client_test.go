package mapservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
	"github.com/zatekoja/waittime/pkg/retry"
)

func fastRetry(attempts int) Option {
	return WithRetry(retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	})
}

func TestListPOIs_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pois", r.URL.Path)
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"WC-Norte-L0-1","name":"Restrooms North","type":"restroom","num_servers":8,"service_rate":0.5,"x":10,"y":4},
			{"id":"Bar-Sur-L1","name":"South Bar","type":"bar"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second, fastRetry(5))
	pois, err := client.ListPOIs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, pois, 2)
	assert.Equal(t, POI{ID: "WC-Norte-L0-1", Name: "Restrooms North", Type: "restroom", NumServers: 8, ServiceRate: 0.5}, pois[0])
	assert.Equal(t, 0, pois[1].NumServers)
}

func TestGetPOI_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, fastRetry(5))
	_, err := client.GetPOI(context.Background(), "Nope")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, gobreaker.StateClosed, client.State())
}

func TestGetPOI_RequiresID(t *testing.T) {
	client := NewClient("http://unused", time.Second)
	_, err := client.GetPOI(context.Background(), " ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestListPOIs_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, fastRetry(10))
	_, err := client.ListPOIs(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Equal(t, gobreaker.StateOpen, client.State())
	// five failures trip the breaker; the sixth attempt is rejected locally
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	assert.True(t, NewClient(server.URL, time.Second).Health(context.Background()))
	assert.False(t, NewClient("http://127.0.0.1:1", time.Second).Health(context.Background()))
}
