package integrity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPositiveFloat(t *testing.T) {
	v, err := NewPositiveFloat(0.5)
	require.NoError(t, err)
	assert.Equal(t, PositiveFloat(0.5), v)

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewPositiveFloat(bad)
		assert.Error(t, err, "value %v must be rejected", bad)
	}
}

func TestNewProbability_Bounds(t *testing.T) {
	for _, ok := range []float64{0, 0.5, 1} {
		_, err := NewProbability(ok)
		assert.NoError(t, err, "probability %v is valid", ok)
	}
	for _, bad := range []float64{-0.01, 1.01, math.NaN()} {
		_, err := NewProbability(bad)
		assert.Error(t, err, "probability %v must be rejected", bad)
	}
}

func TestNewAmplitude_HalfOpenInterval(t *testing.T) {
	_, err := NewAmplitude(0)
	assert.NoError(t, err, "lower bound is inclusive")

	_, err = NewAmplitude(0.999)
	assert.NoError(t, err)

	_, err = NewAmplitude(1.0)
	assert.Error(t, err, "upper bound is exclusive")

	_, err = NewAmplitude(-0.1)
	assert.Error(t, err)
}

func TestNewTokenCount_Range(t *testing.T) {
	_, err := NewTokenCount(0)
	assert.NoError(t, err, "zero tokens is a valid edge")

	_, err = NewTokenCount(MaxTokenCount)
	assert.NoError(t, err)

	_, err = NewTokenCount(MaxTokenCount + 1)
	assert.Error(t, err)

	_, err = NewTokenCount(-1)
	assert.Error(t, err)
}

func TestFieldErrors_Aggregation(t *testing.T) {
	var errs FieldErrors
	errs.Addf("frequency", "must be > 0, got 0")
	errs.Add("amplitude", nil) // nil не добавляется
	errs.Addf("amplitude", "must be in [0, 1), got 1.5")

	require.Len(t, errs, 2)
	assert.Contains(t, errs.Error(), "frequency")
	assert.Contains(t, errs.Error(), "amplitude")

	msgs := errs.Messages()
	assert.Equal(t, "frequency: must be > 0, got 0", msgs[0])
}

func TestFieldErrors_OrNil(t *testing.T) {
	var errs FieldErrors
	assert.NoError(t, errs.OrNil())

	errs.Addf("x", "bad")
	assert.Error(t, errs.OrNil())
}
