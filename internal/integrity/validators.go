package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Библиотека чистых проверок. Функции принимают сырые значения (не сущности),
// не имеют побочных эффектов и переиспользуются как инвариантами сущностей,
// так и внешними вызовами напрямую.

// ComputeInputHash — SHA-256 отпечаток входных данных.
// Только для трассировки и ключей кэша, не для криптографии.
func ComputeInputHash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// computeSignalHash — укороченный отпечаток пары (values, sample_rate).
// Rate входит в хэш, иначе разные сигналы с одинаковыми отсчетами коллидируют.
func computeSignalHash(values []float64, sampleRate float64) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(',')
	}
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(sampleRate, 'g', -1, 64))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// IsValidFrequency: частота положительна и конечна.
func IsValidFrequency(value float64) bool {
	return isFinite(value) && value > 0
}

// IsValidProbability: значение в [0, 1] и конечно.
func IsValidProbability(value float64) bool {
	return isFinite(value) && value >= 0 && value <= 1
}

// IsValidAmplitude: значение в [0, 1) и конечно.
func IsValidAmplitude(value float64) bool {
	return isFinite(value) && value >= 0 && value < 1
}

// IsValidTokenString: непустая строка в пределах лимита.
func IsValidTokenString(value string, maxLength int) bool {
	return len(value) > 0 && len(value) <= maxLength
}

var controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")

// SanitizeInputString вырезает управляющие ASCII-символы, кроме \n и \t.
func SanitizeInputString(value string) string {
	return controlChars.ReplaceAllString(value, "")
}

// CheckResult — результат одной проверки (валидно / сообщение об ошибке).
type CheckResult struct {
	OK      bool
	Message string
}

// ValidateNyquistCriterion: частота дискретизации должна СТРОГО превышать
// удвоенную частоту сигнала. Сообщение называет обе величины.
func ValidateNyquistCriterion(samplingRate, frequency float64) (bool, string) {
	nyquistRate := 2 * frequency
	if samplingRate <= nyquistRate {
		return false, fmt.Sprintf(
			"nyquist criterion violated: sampling_rate (%v) must be > 2 * frequency (%v)",
			samplingRate, nyquistRate,
		)
	}
	return true, ""
}

// ValidateTokenProcessorCompatibility: локальный процессор отклоняет запросы
// сверх своего контекстного окна.
func ValidateTokenProcessorCompatibility(tokenCount int, processorType string, localMaxTokens int) (bool, string) {
	if processorType == string(ProcessorLocal) && tokenCount > localMaxTokens {
		return false, fmt.Sprintf(
			"local processor cannot handle %d tokens, maximum is %d: use cloud or hybrid processor_type",
			tokenCount, localMaxTokens,
		)
	}
	return true, ""
}

// ValidateFeatureValue проверяет одно значение признака против его схемы.
// Отсутствующий (nil) опциональный признак валиден, обязательный — нет.
func ValidateFeatureValue(value any, schema FeatureSchema) (bool, string) {
	if value == nil {
		if schema.Required {
			return false, fmt.Sprintf("feature %q is required", schema.Name)
		}
		return true, ""
	}

	switch schema.FeatureType {
	case FeatureNumeric:
		// bool не считается числом, хоть JSON-декодеры и великодушны.
		if _, isBool := value.(bool); isBool {
			return false, fmt.Sprintf("feature %q must be numeric, got bool", schema.Name)
		}
		num, ok := asFloat(value)
		if !ok {
			return false, fmt.Sprintf("feature %q must be numeric, got %T", schema.Name, value)
		}
		if schema.MinValue != nil && num < *schema.MinValue {
			return false, fmt.Sprintf("feature %q value %v < min_value %v", schema.Name, num, *schema.MinValue)
		}
		if schema.MaxValue != nil && num > *schema.MaxValue {
			return false, fmt.Sprintf("feature %q value %v > max_value %v", schema.Name, num, *schema.MaxValue)
		}

	case FeatureCategorical:
		s, ok := value.(string)
		if !ok {
			return false, fmt.Sprintf("feature %q must be a categorical string, got %T", schema.Name, value)
		}
		if len(schema.AllowedValues) > 0 && !containsString(schema.AllowedValues, s) {
			return false, fmt.Sprintf("feature %q value %q not in allowed_values %v", schema.Name, s, schema.AllowedValues)
		}

	case FeatureBoolean:
		if _, ok := value.(bool); !ok {
			return false, fmt.Sprintf("feature %q must be boolean, got %T", schema.Name, value)
		}

	case FeatureText:
		if _, ok := value.(string); !ok {
			return false, fmt.Sprintf("feature %q must be string, got %T", schema.Name, value)
		}
	}

	return true, ""
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CollectValidationErrors фильтрует только провалившиеся проверки,
// сохраняя исходный порядок.
func CollectValidationErrors(checks []CheckResult) []string {
	var out []string
	for _, c := range checks {
		if !c.OK && c.Message != "" {
			out = append(out, c.Message)
		}
	}
	return out
}

// ValidationSummary — агрегированный итог набора проверок.
type ValidationSummary struct {
	Status       ValidationStatus `json:"status"`
	IsValid      bool             `json:"is_valid"`
	ErrorCount   int              `json:"error_count"`
	WarningCount int              `json:"warning_count"`
	Errors       []string         `json:"errors"`
	Warnings     []string         `json:"warnings"`
}

// CreateValidationSummary классифицирует итог: любая ошибка — failure,
// только предупреждения — partial, иначе success.
func CreateValidationSummary(errors, warnings []string) ValidationSummary {
	var status ValidationStatus
	var isValid bool
	switch {
	case len(errors) > 0:
		status, isValid = StatusFailure, false
	case len(warnings) > 0:
		status, isValid = StatusPartial, true
	default:
		status, isValid = StatusSuccess, true
	}

	return ValidationSummary{
		Status:       status,
		IsValid:      isValid,
		ErrorCount:   len(errors),
		WarningCount: len(warnings),
		Errors:       copyStrings(errors),
		Warnings:     copyStrings(warnings),
	}
}
