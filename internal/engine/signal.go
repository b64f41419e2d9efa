package engine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/xela07ax/strictgate/internal/integrity"
)

// Сигнальные утилиты: спектр и фильтры Баттерворта.
// Вход и выход — валидированные SignalData; каждая операция порождает
// новый объект, исходный сигнал не меняется.

type SignalEngine struct{}

func NewSignalEngine() *SignalEngine { return &SignalEngine{} }

// FFT возвращает нормированный амплитудный спектр (односторонний,
// len/2+1 бинов). Частота дискретизации результата — половина исходной.
func (e *SignalEngine) FFT(data integrity.SignalData) (integrity.SignalData, error) {
	values := data.Values()
	n := len(values)
	bins := n/2 + 1
	magnitude := make([]float64, bins)

	for k := 0; k < bins; k++ {
		var re, im float64
		for t, v := range values {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		magnitude[k] = math.Hypot(re, im) / float64(n)
	}

	return integrity.NewSignalData(magnitude, float64(data.SampleRate)/2)
}

// Lowpass применяет НЧ-фильтр Баттерворта заданного порядка.
func (e *SignalEngine) Lowpass(data integrity.SignalData, cutoff float64, order int) (integrity.SignalData, error) {
	b, a, err := butterworth(order, cutoff, 0, float64(data.SampleRate), filterLowpass)
	if err != nil {
		return integrity.SignalData{}, err
	}
	return integrity.NewSignalData(lfilter(b, a, data.Values()), float64(data.SampleRate))
}

// Highpass применяет ВЧ-фильтр Баттерворта заданного порядка.
func (e *SignalEngine) Highpass(data integrity.SignalData, cutoff float64, order int) (integrity.SignalData, error) {
	b, a, err := butterworth(order, cutoff, 0, float64(data.SampleRate), filterHighpass)
	if err != nil {
		return integrity.SignalData{}, err
	}
	return integrity.NewSignalData(lfilter(b, a, data.Values()), float64(data.SampleRate))
}

// Bandpass применяет полосовой фильтр Баттерворта (итоговый порядок 2*order).
func (e *SignalEngine) Bandpass(data integrity.SignalData, low, high float64, order int) (integrity.SignalData, error) {
	b, a, err := butterworth(order, low, high, float64(data.SampleRate), filterBandpass)
	if err != nil {
		return integrity.SignalData{}, err
	}
	return integrity.NewSignalData(lfilter(b, a, data.Values()), float64(data.SampleRate))
}

// SignalStatistics — базовая статистика по отсчетам.
type SignalStatistics struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Statistics считает mean/std/min/max. Для сигнала из одного отсчета
// std равен нулю (популяционная оценка).
func (e *SignalEngine) Statistics(data integrity.SignalData) SignalStatistics {
	values := data.Values()
	mean, _ := Mean(values)
	min, _ := Min(values)
	max, _ := Max(values)

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return SignalStatistics{Mean: mean, Std: math.Sqrt(variance), Min: min, Max: max}
}

type filterKind int

const (
	filterLowpass filterKind = iota
	filterHighpass
	filterBandpass
)

// butterworth проектирует дискретный фильтр: аналоговый прототип ->
// частотное преобразование -> билинейное преобразование.
// Частоты среза должны лежать строго внутри (0, Nyquist).
func butterworth(order int, lowCut, highCut, sampleRate float64, kind filterKind) (b, a []float64, err error) {
	if order < 1 {
		return nil, nil, fmt.Errorf("filter order must be >= 1, got %d", order)
	}
	nyquist := sampleRate / 2
	if lowCut <= 0 || lowCut >= nyquist {
		return nil, nil, fmt.Errorf("cutoff %v must be inside (0, %v)", lowCut, nyquist)
	}
	if kind == filterBandpass && (highCut <= lowCut || highCut >= nyquist) {
		return nil, nil, fmt.Errorf("band [%v, %v] must satisfy 0 < low < high < %v", lowCut, highCut, nyquist)
	}

	// Полюса аналогового прототипа на единичной окружности левой полуплоскости.
	prototype := make([]complex128, order)
	for k := 0; k < order; k++ {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		prototype[k] = cmplx.Exp(complex(0, theta))
	}

	const c = 2.0 // билинейное преобразование, T=1
	warp := func(f float64) float64 { return c * math.Tan(math.Pi*f/sampleRate) }

	var poles []complex128
	var zeros []complex128
	var gainAt complex128 // точка на окружности, где |H| нормируется к 1

	switch kind {
	case filterLowpass:
		wc := warp(lowCut)
		for _, p := range prototype {
			poles = append(poles, p*complex(wc, 0))
		}
		for i := 0; i < order; i++ {
			zeros = append(zeros, complex(-1, 0)) // z-домен, после билинейного
		}
		gainAt = complex(1, 0) // DC

	case filterHighpass:
		wc := warp(lowCut)
		for _, p := range prototype {
			poles = append(poles, complex(wc, 0)/p)
		}
		for i := 0; i < order; i++ {
			zeros = append(zeros, complex(1, 0))
		}
		gainAt = complex(-1, 0) // Nyquist

	case filterBandpass:
		w1, w2 := warp(lowCut), warp(highCut)
		w0 := math.Sqrt(w1 * w2)
		bw := w2 - w1
		for _, p := range prototype {
			// s^2 - p*BW*s + w0^2 = 0
			pb := p * complex(bw/2, 0)
			d := cmplx.Sqrt(pb*pb - complex(w0*w0, 0))
			poles = append(poles, pb+d, pb-d)
		}
		for i := 0; i < order; i++ {
			zeros = append(zeros, complex(1, 0), complex(-1, 0))
		}
		// Нормировка на центральной частоте полосы.
		wDigital := 2 * math.Atan(w0/c)
		gainAt = cmplx.Exp(complex(0, wDigital))
	}

	// Билинейное преобразование полюсов: z = (c + s) / (c - s).
	zPoles := make([]complex128, len(poles))
	for i, s := range poles {
		zPoles[i] = (complex(c, 0) + s) / (complex(c, 0) - s)
	}

	aC := polyFromRoots(zPoles)
	bC := polyFromRoots(zeros)

	// Подбор коэффициента усиления: |H(gainAt)| == 1.
	gain := polyEval(aC, gainAt) / polyEval(bC, gainAt)
	for i := range bC {
		bC[i] *= gain
	}

	return realParts(bC), realParts(aC), nil
}

// polyFromRoots разворачивает произведение (1 - r*z^-1) в коэффициенты.
func polyFromRoots(roots []complex128) []complex128 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, cf := range coeffs {
			next[i] += cf
			next[i+1] -= cf * r
		}
		coeffs = next
	}
	return coeffs
}

// polyEval считает значение полинома по степеням z^-1 в точке z.
func polyEval(coeffs []complex128, z complex128) complex128 {
	var acc complex128
	zinv := complex(1, 0) / z
	pow := complex(1, 0)
	for _, cf := range coeffs {
		acc += cf * pow
		pow *= zinv
	}
	return acc
}

func realParts(coeffs []complex128) []float64 {
	out := make([]float64, len(coeffs))
	for i, cf := range coeffs {
		out[i] = real(cf) // мнимые части схлопываются: полюса сопряжены парами
	}
	return out
}

// lfilter — прямая форма II (транспонированная), a[0] нормирован к 1.
func lfilter(b, a, x []float64) []float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	bn := make([]float64, n)
	an := make([]float64, n)
	copy(bn, b)
	copy(an, a)
	a0 := an[0]
	for i := range bn {
		bn[i] /= a0
	}
	for i := range an {
		an[i] /= a0
	}

	state := make([]float64, n-1)
	y := make([]float64, len(x))
	for i, xi := range x {
		yi := bn[0]*xi + state[0]
		for j := 0; j < n-2; j++ {
			state[j] = bn[j+1]*xi + state[j+1] - an[j+1]*yi
		}
		state[n-2] = bn[n-1]*xi - an[n-1]*yi
		y[i] = yi
	}
	return y
}
