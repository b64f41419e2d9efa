package integrity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode mimics the gateway edge: JSON body into a map with UseNumber.
func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestParseSignalConfig_Valid(t *testing.T) {
	cfg, err := ParseSignalConfig(decode(t, `{
		"signal_type": "analog",
		"sampling_rate": 1000,
		"frequency": 100,
		"amplitude": 0.5,
		"duration": 2.5
	}`))
	require.NoError(t, err)
	assert.Equal(t, SignalAnalog, cfg.SignalType)
	assert.Equal(t, PositiveInt(1), cfg.Channels, "channels defaults to 1")
}

// Numeric strings must not be coerced into numbers.
func TestParseSignalConfig_RejectsNumericString(t *testing.T) {
	_, err := ParseSignalConfig(decode(t, `{
		"signal_type": "analog",
		"sampling_rate": "1000",
		"frequency": 100,
		"amplitude": 0.5,
		"duration": 1
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling_rate")
	assert.Contains(t, err.Error(), "string")
}

func TestParseSignalConfig_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseSignalConfig(decode(t, `{
		"signal_type": "analog",
		"sampling_rate": 1000,
		"frequency": 100,
		"amplitude": 0.5,
		"duration": 1,
		"extra_field": 42
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra_field")
}

// Every invalid field is reported in one pass, not just the first.
func TestParseSignalConfig_CollectsAllErrors(t *testing.T) {
	_, err := ParseSignalConfig(decode(t, `{
		"signal_type": "quantum",
		"sampling_rate": -5,
		"frequency": 0,
		"amplitude": 1.5,
		"duration": 1
	}`))
	require.Error(t, err)

	var errs FieldErrors
	require.ErrorAs(t, err, &errs)
	assert.GreaterOrEqual(t, len(errs), 4)
}

func TestParseProcessingRequest_FractionalTokensRejected(t *testing.T) {
	_, err := ParseProcessingRequest(decode(t, `{
		"input_data": "hi",
		"input_tokens": 10.5
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input_tokens")
}

func TestParseProcessingRequest_BoolNotANumber(t *testing.T) {
	_, err := ParseProcessingRequest(decode(t, `{
		"input_data": "hi",
		"input_tokens": true
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input_tokens")
}

func TestParseProcessingRequest_Defaults(t *testing.T) {
	req, err := ParseProcessingRequest(decode(t, `{
		"input_data": "hi",
		"input_tokens": 42
	}`))
	require.NoError(t, err)
	assert.Equal(t, ProcessorHybrid, req.ProcessorType)
	assert.Equal(t, NonNegativeInt(DefaultMaxRetries), req.MaxRetries)
}

// Явно присланный 0 в поле с положительным дефолтом — ошибка.
// Дефолт применяется только к отсутствующему ключу.
func TestParseProcessingRequest_ExplicitZeroNotDefaulted(t *testing.T) {
	_, err := ParseProcessingRequest(decode(t, `{
		"input_data": "hi",
		"input_tokens": 42,
		"timeout_seconds": 0,
		"token_threshold": 0
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_seconds: must be greater than 0")
	assert.Contains(t, err.Error(), "token_threshold: must be greater than 0")
}

func TestParseSignalConfig_ExplicitZeroChannelsRejected(t *testing.T) {
	_, err := ParseSignalConfig(decode(t, `{
		"signal_type": "analog",
		"sampling_rate": 1000,
		"frequency": 100,
		"amplitude": 0.5,
		"duration": 2.5,
		"channels": 0
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channels: must be greater than 0")
}

func TestParseFailoverConfig_ExplicitZeroTimeoutRejected(t *testing.T) {
	_, err := ParseFailoverConfig(decode(t, `{"failover_timeout_ms": 0}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failover_timeout_ms: must be greater than 0")
}

func TestParseSignalData_ElementErrorsAreIndexed(t *testing.T) {
	_, err := ParseSignalData(decode(t, `{
		"values": [1.0, "two", 3.0],
		"sample_rate": 100
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "values[1]")
}

func TestParseFailoverConfig_Defaults(t *testing.T) {
	cfg, err := ParseFailoverConfig(decode(t, `{}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.01, float64(cfg.CloudFailureProbability), 1e-9)
	assert.InDelta(t, 0.05, float64(cfg.LocalFailureProbability), 1e-9)
	assert.True(t, cfg.EnableFailover)
	assert.Equal(t, PositiveInt(DefaultFailoverTimeoutMs), cfg.FailoverTimeoutMs)
}

func TestParseMLModelValidationRequest(t *testing.T) {
	req, err := ParseMLModelValidationRequest(decode(t, `{
		"model_info": {
			"name": "scorer",
			"version": "1.0.0",
			"features": [
				{"name": "score", "feature_type": "numeric", "min_value": 0, "max_value": 1}
			]
		},
		"input_features": {"score": 0.7}
	}`))
	require.NoError(t, err)

	res := req.ValidateInputs()
	assert.True(t, res.IsValid)

	_, err = ParseMLModelValidationRequest(decode(t, `{"input_features": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_info")
}
