package integrity

import (
	"fmt"
	"math"
)

// Ограниченные числовые типы — фундамент Integrity Layer.
// Каждый тип конструируется только через NewX: либо значение попадает
// в свой физический домен, либо возвращается ошибка с именем нарушенного
// ограничения. Голые float64/int в сущностях не используются.

type PositiveFloat float64

type NonNegativeFloat float64

// Probability — вероятность в замкнутом интервале [0, 1].
type Probability float64

// Amplitude — нормированная амплитуда в полуоткрытом интервале [0, 1).
type Amplitude float64

type PositiveInt int

type NonNegativeInt int

// TokenCount — количество токенов, 1..1_000_000.
type TokenCount int

const MaxTokenCount = 1_000_000

func NewPositiveFloat(v float64) (PositiveFloat, error) {
	if !isFinite(v) {
		return 0, fmt.Errorf("must be finite, got %v", v)
	}
	if v <= 0 {
		return 0, fmt.Errorf("must be > 0, got %v", v)
	}
	return PositiveFloat(v), nil
}

func NewNonNegativeFloat(v float64) (NonNegativeFloat, error) {
	if !isFinite(v) {
		return 0, fmt.Errorf("must be finite, got %v", v)
	}
	if v < 0 {
		return 0, fmt.Errorf("must be >= 0, got %v", v)
	}
	return NonNegativeFloat(v), nil
}

func NewProbability(v float64) (Probability, error) {
	if !isFinite(v) {
		return 0, fmt.Errorf("must be finite, got %v", v)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("must be in [0, 1], got %v", v)
	}
	return Probability(v), nil
}

func NewAmplitude(v float64) (Amplitude, error) {
	if !isFinite(v) {
		return 0, fmt.Errorf("must be finite, got %v", v)
	}
	// Правая граница открыта: amplitude == 1.0 отклоняется.
	if v < 0 || v >= 1 {
		return 0, fmt.Errorf("must be in [0, 1), got %v", v)
	}
	return Amplitude(v), nil
}

func NewPositiveInt(v int) (PositiveInt, error) {
	if v <= 0 {
		return 0, fmt.Errorf("must be > 0, got %d", v)
	}
	return PositiveInt(v), nil
}

func NewNonNegativeInt(v int) (NonNegativeInt, error) {
	if v < 0 {
		return 0, fmt.Errorf("must be >= 0, got %d", v)
	}
	return NonNegativeInt(v), nil
}

func NewTokenCount(v int) (TokenCount, error) {
	if v <= 0 || v > MaxTokenCount {
		return 0, fmt.Errorf("must be in [1, %d], got %d", MaxTokenCount, v)
	}
	return TokenCount(v), nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// FieldError — ошибка одного поля, формат "<путь поля>: <сообщение>".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Path + ": " + e.Message
}

// FieldErrors собирает ошибки всех полей разом (не fail-fast):
// клиент получает полный список нарушений за один проход.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msg := e[0].Error()
	for _, fe := range e[1:] {
		msg += "; " + fe.Error()
	}
	return msg
}

// Add регистрирует результат проверки поля. Нулевой err игнорируется.
func (e *FieldErrors) Add(path string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, FieldError{Path: path, Message: err.Error()})
}

func (e *FieldErrors) Addf(path, format string, args ...any) {
	*e = append(*e, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Messages возвращает ошибки в порядке объявления полей.
func (e FieldErrors) Messages() []string {
	out := make([]string, len(e))
	for i, fe := range e {
		out[i] = fe.Error()
	}
	return out
}

// OrNil упрощает возврат из двухфазного конструктора.
func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
