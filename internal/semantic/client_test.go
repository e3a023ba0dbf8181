package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/dagforge/internal/rules"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

func TestClient_Validate(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantErrors int
	}{
		{
			name:   "valid",
			status: http.StatusOK,
			body:   `{"valid":true,"errors":[],"warnings":[{"type":"field","message":"No start_date specified. Will use default."}]}`,
		},
		{
			name:       "invalid answers 422",
			status:     http.StatusUnprocessableEntity,
			body:       `{"valid":false,"errors":[{"type":"dependency","message":"Circular dependency detected in task graph"}],"warnings":[]}`,
			wantErrors: 1,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"boom"}`,
			wantErr: true,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/validate/dag", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)

				var body map[string]json.RawMessage
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Contains(t, body, "dag_spec")

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			result, err := NewClient(srv.URL + "/").Validate(context.Background(), &models.Specification{ID: "d"})

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Errors, tt.wantErrors)
			assert.Equal(t, tt.wantErrors == 0, result.Valid())
		})
	}
}

func TestClient_UnexpectedStatusIsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Validate(context.Background(), &models.Specification{})
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(srv.URL).WithTimeout(50*time.Millisecond).Validate(context.Background(), &models.Specification{})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Validate(context.Background(), &models.Specification{})
	assert.Error(t, err)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","service":"dagforge","version":"1.2.3"}`))
	}))
	defer srv.Close()

	version, err := NewClient(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", version)
}

func TestLocal_Validate(t *testing.T) {
	local := NewLocal(NewChecker(rules.DefaultVocabulary()))

	result, err := local.Validate(context.Background(), &models.Specification{ID: "x"})
	require.NoError(t, err)
	assert.False(t, result.Valid())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = local.Validate(ctx, &models.Specification{ID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
