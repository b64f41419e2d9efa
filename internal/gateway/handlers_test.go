package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/strictgate/internal/engine"
	"github.com/xela07ax/strictgate/internal/infra"
	"github.com/xela07ax/strictgate/internal/integrity"
	"github.com/xela07ax/strictgate/internal/processors"
	"go.uber.org/zap"
)

// echoProcessor отвечает успехом с фиксированным текстом.
type echoProcessor struct {
	used integrity.ProcessorType
	fail bool
}

func (e *echoProcessor) Process(_ context.Context, req integrity.ProcessingRequest) integrity.OutputSchema {
	if e.fail {
		return processors.FailedOutput(req, e.used, 1.0, 0, "backend down")
	}
	return processors.SuccessOutput(req, e.used, 1.0, 0, "echo:"+req.InputData)
}

func (e *echoProcessor) StreamProcess(ctx context.Context, req integrity.ProcessingRequest) <-chan processors.StreamChunk {
	return processors.SingleShotStream(ctx, e, req)
}

func testServer(t *testing.T, cloudFail, localFail bool) *Server {
	t.Helper()

	failover, err := integrity.NewFailoverConfig(integrity.FailoverConfigParams{
		CloudFailureProbability: 0.01,
		LocalFailureProbability: 0.05,
		EnableFailover:          true,
	})
	require.NoError(t, err)

	manager := engine.NewManager(
		&echoProcessor{used: integrity.ProcessorCloud, fail: cloudFail},
		&echoProcessor{used: integrity.ProcessorLocal, fail: localFail},
		failover, nil, nil, zap.NewNop())

	cfg := &infra.Config{}
	cfg.Engine.CloudFailureProbability = 0.01
	cfg.Engine.LocalFailureProbability = 0.05
	cfg.Engine.EnableFailover = true

	return NewServer(cfg, zap.NewNop(), manager, nil, nil, nil, nil, prometheus.NewRegistry())
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), "body: %s", rec.Body.String())
	return rec, payload
}

func TestHandleProcess_Success(t *testing.T) {
	s := testServer(t, false, false)

	rec, payload := doJSON(t, s, http.MethodPost, "/v1/process",
		`{"input_data": "hello", "input_tokens": 10}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo:hello", payload["result"])
	assert.Equal(t, "local", payload["processor_used"])

	validation := payload["validation"].(map[string]any)
	assert.Equal(t, true, validation["is_valid"])
	assert.Equal(t, "success", validation["status"])
	assert.Len(t, validation["input_hash"], 64)
}

func TestHandleProcess_RoutesAboveThresholdToCloud(t *testing.T) {
	s := testServer(t, false, false)

	_, payload := doJSON(t, s, http.MethodPost, "/v1/process",
		`{"input_data": "big", "input_tokens": 501}`)
	assert.Equal(t, "cloud", payload["processor_used"])
}

// Числовая строка вместо числа отклоняется на границе, до вызова ядра.
func TestHandleProcess_RejectsNumericString(t *testing.T) {
	s := testServer(t, false, false)

	rec, payload := doJSON(t, s, http.MethodPost, "/v1/process",
		`{"input_data": "hello", "input_tokens": "10"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, payload["is_valid"])
	assert.Equal(t, "failure", payload["status"])
	assert.NotEmpty(t, payload["errors"])
}

func TestHandleProcess_RejectsUnknownKey(t *testing.T) {
	s := testServer(t, false, false)

	rec, payload := doJSON(t, s, http.MethodPost, "/v1/process",
		`{"input_data": "hello", "input_tokens": 10, "extra": true}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := payload["errors"].([]any)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "extra")
}

func TestHandleProcess_RejectsMalformedBody(t *testing.T) {
	s := testServer(t, false, false)
	rec, _ := doJSON(t, s, http.MethodPost, "/v1/process", `[1, 2, 3]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcess_FailoverStampsRetries(t *testing.T) {
	s := testServer(t, true, false) // cloud падает, local жив

	rec, payload := doJSON(t, s, http.MethodPost, "/v1/process",
		`{"input_data": "big", "input_tokens": 501}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local", payload["processor_used"])
	assert.Equal(t, float64(1), payload["retries_attempted"])
	validation := payload["validation"].(map[string]any)
	assert.Equal(t, true, validation["is_valid"])
}

func TestHandleValidateSignal(t *testing.T) {
	s := testServer(t, false, false)

	rec, payload := doJSON(t, s, http.MethodPost, "/v1/validate/signal",
		`{"signal_type": "analog", "sampling_rate": 48000, "frequency": 20000, "amplitude": 0.8, "duration": 1.5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["is_valid"])

	// Критерий Найквиста строгий: ровно 2f недостаточно.
	rec, payload = doJSON(t, s, http.MethodPost, "/v1/validate/signal",
		`{"signal_type": "analog", "sampling_rate": 200, "frequency": 100, "amplitude": 0.5, "duration": 1.0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["is_valid"])
	assert.Equal(t, "failure", payload["status"])
}

func TestHandleValidateML(t *testing.T) {
	s := testServer(t, false, false)

	body := `{
		"model_info": {
			"name": "churn-model",
			"version": "1.2.0",
			"features": [
				{"name": "age", "feature_type": "numeric", "min_value": 0, "max_value": 120, "required": true}
			]
		},
		"input_features": {"age": 35}
	}`
	rec, payload := doJSON(t, s, http.MethodPost, "/v1/validate/ml", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["is_valid"])

	bad := strings.Replace(body, `{"age": 35}`, `{"age": 35, "ghost": 1}`, 1)
	rec, payload = doJSON(t, s, http.MethodPost, "/v1/validate/ml", bad)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["is_valid"])
}

func TestHandleFailover(t *testing.T) {
	s := testServer(t, false, false)

	rec, payload := doJSON(t, s, http.MethodGet,
		"/v1/reliability/failover?cloud_failure_probability=0.1&local_failure_probability=0.1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.99, payload["system_success_probability"].(float64), 1e-9)

	rec, payload = doJSON(t, s, http.MethodGet,
		"/v1/reliability/failover?cloud_failure_probability=0.1&enable_failover=false", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.9, payload["system_success_probability"].(float64), 1e-9)
}

func TestHandleFailover_BadQuery(t *testing.T) {
	s := testServer(t, false, false)

	rec, payload := doJSON(t, s, http.MethodGet,
		"/v1/reliability/failover?cloud_failure_probability=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, payload["is_valid"])

	rec, _ = doJSON(t, s, http.MethodGet,
		"/v1/reliability/failover?cloud_failure_probability=1.5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	s := testServer(t, false, false)
	rec, payload := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
}

func TestTraceHeaderPropagated(t *testing.T) {
	s := testServer(t, false, false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))
}
