package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/strictgate/internal/integrity"
)

// sine builds n samples of a pure tone at freq Hz sampled at rate Hz.
func sine(t *testing.T, freq, rate float64, n int) integrity.SignalData {
	t.Helper()
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	data, err := integrity.NewSignalData(values, rate)
	require.NoError(t, err)
	return data
}

func TestSignalEngine_FFT_PeakAtToneFrequency(t *testing.T) {
	e := NewSignalEngine()
	// 50 Гц тон, 1000 Гц дискретизация, ровно 200 отсчетов (целое число периодов)
	data := sine(t, 50, 1000, 200)

	spectrum, err := e.FFT(data)
	require.NoError(t, err)

	mags := spectrum.Values()
	assert.Len(t, mags, 101, "one-sided spectrum has n/2+1 bins")
	assert.InDelta(t, 500.0, float64(spectrum.SampleRate), 1e-9)

	// Бин k соответствует k * rate / n Гц: пик должен быть на k=10
	peak := 0
	for k, m := range mags {
		if m > mags[peak] {
			peak = k
		}
	}
	assert.Equal(t, 10, peak)
	assert.Greater(t, mags[10], 10*mags[3], "tone bin dominates noise floor")
}

func TestSignalEngine_Lowpass_AttenuatesHighFrequency(t *testing.T) {
	e := NewSignalEngine()
	low := sine(t, 10, 1000, 1000)
	high := sine(t, 400, 1000, 1000)

	outLow, err := e.Lowpass(low, 50, 2)
	require.NoError(t, err)
	outHigh, err := e.Lowpass(high, 50, 2)
	require.NoError(t, err)

	// Энергия хвоста (после переходного процесса фильтра)
	tailEnergy := func(d integrity.SignalData) float64 {
		v := d.Values()
		var sum float64
		for _, x := range v[len(v)/2:] {
			sum += x * x
		}
		return sum
	}

	assert.Greater(t, tailEnergy(outLow), 20*tailEnergy(outHigh),
		"10 Hz passes, 400 Hz is attenuated by a 50 Hz lowpass")
}

func TestSignalEngine_Highpass_AttenuatesLowFrequency(t *testing.T) {
	e := NewSignalEngine()
	low := sine(t, 5, 1000, 1000)
	high := sine(t, 300, 1000, 1000)

	outLow, err := e.Highpass(low, 100, 2)
	require.NoError(t, err)
	outHigh, err := e.Highpass(high, 100, 2)
	require.NoError(t, err)

	energy := func(d integrity.SignalData) float64 {
		v := d.Values()
		var sum float64
		for _, x := range v[len(v)/2:] {
			sum += x * x
		}
		return sum
	}
	assert.Greater(t, energy(outHigh), 20*energy(outLow))
}

func TestSignalEngine_InvalidCutoff(t *testing.T) {
	e := NewSignalEngine()
	data := sine(t, 10, 1000, 100)

	// Срез за пределами Найква — ошибка дизайна фильтра
	_, err := e.Lowpass(data, 600, 2)
	assert.Error(t, err)

	_, err = e.Lowpass(data, 0, 2)
	assert.Error(t, err)
}

func TestSignalEngine_Statistics(t *testing.T) {
	e := NewSignalEngine()
	data, err := integrity.NewSignalData([]float64{1, 2, 3, 4}, 100)
	require.NoError(t, err)

	stats := e.Statistics(data)
	assert.InDelta(t, 2.5, stats.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25), stats.Std, 1e-9, "population std")
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 4.0, stats.Max)
}
