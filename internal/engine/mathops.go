package engine

import (
	"errors"
	"math"
	"sort"
)

// Статистические операции над числовыми рядами. Чистые функции,
// семантика ошибок повторяет поведение ядра: пустой вход — ошибка,
// std/variance считаются выборочными (делитель n-1).

var (
	ErrEmptyValues       = errors.New("values must not be empty")
	ErrInsufficientInput = errors.New("operation requires at least 2 values")
	ErrDivisionByZero    = errors.New("division by zero")
)

func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2.0, nil
}

func Variance(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, ErrInsufficientInput
	}
	mean, _ := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values)-1), nil
}

func Std(values []float64) (float64, error) {
	v, err := Variance(values)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

func Min(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m, nil
}

func Max(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m, nil
}

func Sum(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum, nil
}

func Product(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyValues
	}
	p := 1.0
	for _, v := range values {
		p *= v
	}
	return p, nil
}

// SequentialSubtract вычитает значения слева направо: v0 - v1 - ... - vn.
func SequentialSubtract(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, ErrInsufficientInput
	}
	result := values[0]
	for _, v := range values[1:] {
		result -= v
	}
	return result, nil
}

// SequentialDivide делит значения слева направо: v0 / v1 / ... / vn.
func SequentialDivide(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, ErrInsufficientInput
	}
	result := values[0]
	for _, v := range values[1:] {
		if v == 0 {
			return 0, ErrDivisionByZero
		}
		result /= v
	}
	return result, nil
}
