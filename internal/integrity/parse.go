package integrity

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Разбор сырого невалидированного входа ("грязная кромка" шлюза).
// Вход — map[string]any из json.Decoder c UseNumber (HTTP/WS адаптеры).
// Режим строгий: числовое поле обязано прийти числом — числовая строка
// и bool отклоняются, дробные значения для целых полей отклоняются,
// неизвестные ключи отклоняются.

type rawInput struct {
	m    map[string]any
	errs FieldErrors
	seen map[string]struct{}
}

func newRawInput(m map[string]any) *rawInput {
	return &rawInput{m: m, seen: make(map[string]struct{}, len(m))}
}

func (r *rawInput) float(key string, required bool, def float64) float64 {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		if required {
			r.errs.Addf(key, "field is required")
		}
		return def
	}
	f, err := strictFloat(v)
	if err != nil {
		r.errs.Add(key, err)
		return def
	}
	return f
}

func (r *rawInput) integer(key string, required bool, def int) int {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		if required {
			r.errs.Addf(key, "field is required")
		}
		return def
	}
	n, err := strictInt(v)
	if err != nil {
		r.errs.Add(key, err)
		return def
	}
	return n
}

// positiveFloat — как float, но для опциональных полей с положительным
// дефолтом: отсутствие ключа дает дефолт, а явно присланный 0 или
// отрицательное значение — ошибка, без тихой подмены дефолтом.
func (r *rawInput) positiveFloat(key string, def float64) float64 {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		return def
	}
	f, err := strictFloat(v)
	if err != nil {
		r.errs.Add(key, err)
		return def
	}
	if f <= 0 {
		r.errs.Addf(key, "must be greater than 0, got %v", f)
		return def
	}
	return f
}

func (r *rawInput) positiveInt(key string, def int) int {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		return def
	}
	n, err := strictInt(v)
	if err != nil {
		r.errs.Add(key, err)
		return def
	}
	if n <= 0 {
		r.errs.Addf(key, "must be greater than 0, got %d", n)
		return def
	}
	return n
}

func (r *rawInput) str(key string, required bool, def string) string {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		if required {
			r.errs.Addf(key, "field is required")
		}
		return def
	}
	s, isStr := v.(string)
	if !isStr {
		r.errs.Addf(key, "must be a string, got %s", jsonTypeName(v))
		return def
	}
	return s
}

func (r *rawInput) boolean(key string, def bool) bool {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		return def
	}
	b, isBool := v.(bool)
	if !isBool {
		r.errs.Addf(key, "must be a boolean, got %s", jsonTypeName(v))
		return def
	}
	return b
}

func (r *rawInput) boolPtr(key string) *bool {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	b, isBool := v.(bool)
	if !isBool {
		r.errs.Addf(key, "must be a boolean, got %s", jsonTypeName(v))
		return nil
	}
	return &b
}

func (r *rawInput) floatSlice(key string) []float64 {
	r.seen[key] = struct{}{}
	v, ok := r.m[key]
	if !ok || v == nil {
		r.errs.Addf(key, "field is required")
		return nil
	}
	list, isList := v.([]any)
	if !isList {
		r.errs.Addf(key, "must be an array of numbers, got %s", jsonTypeName(v))
		return nil
	}
	out := make([]float64, 0, len(list))
	for i, el := range list {
		f, err := strictFloat(el)
		if err != nil {
			r.errs.Add(fmt.Sprintf("%s[%d]", key, i), err)
			continue
		}
		out = append(out, f)
	}
	return out
}

// rejectUnknown закрывает схему: все ключи сверх объявленных — ошибка.
func (r *rawInput) rejectUnknown() {
	unknown := make([]string, 0)
	for key := range r.m {
		if _, ok := r.seen[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		r.errs.Addf(key, "unknown field")
	}
}

// finish объединяет ошибки извлечения с ошибками конструктора,
// отбрасывая дубли по одному и тому же полю.
func (r *rawInput) finish(ctorErr error) error {
	if len(r.errs) == 0 {
		return ctorErr
	}
	merged := make(FieldErrors, 0, len(r.errs))
	merged = append(merged, r.errs...)

	if fe, ok := ctorErr.(FieldErrors); ok {
		known := make(map[string]struct{}, len(r.errs))
		for _, e := range r.errs {
			known[e.Path] = struct{}{}
		}
		for _, e := range fe {
			if _, dup := known[e.Path]; !dup {
				merged = append(merged, e)
			}
		}
	}
	return merged
}

func strictFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be a number, got %q", n.String())
		}
		return f, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("must be a number, got %s", jsonTypeName(v))
}

func strictInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", n.String())
		}
		return int(i), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be an integer, got %v", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("must be an integer, got %s", jsonTypeName(v))
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case json.Number, float64, float32, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// -----------------------------------------------------------------------------
// Entity parsers
// -----------------------------------------------------------------------------

func ParseSignalConfig(raw map[string]any) (SignalConfig, error) {
	r := newRawInput(raw)
	p := SignalConfigParams{
		SignalType:   r.str("signal_type", true, ""),
		SamplingRate: r.float("sampling_rate", true, 0),
		Frequency:    r.float("frequency", true, 0),
		Amplitude:    r.float("amplitude", true, 0),
		Duration:     r.float("duration", true, 0),
		Channels:     r.positiveInt("channels", 1),
	}
	r.rejectUnknown()
	if len(r.errs) > 0 {
		return SignalConfig{}, r.finish(nil)
	}
	cfg, err := NewSignalConfig(p)
	if err := r.finish(err); err != nil {
		return SignalConfig{}, err
	}
	return cfg, nil
}

func ParseSignalData(raw map[string]any) (SignalData, error) {
	r := newRawInput(raw)
	values := r.floatSlice("values")
	rate := r.float("sample_rate", true, 0)
	r.rejectUnknown()
	if len(r.errs) > 0 {
		return SignalData{}, r.finish(nil)
	}
	data, err := NewSignalData(values, rate)
	if err := r.finish(err); err != nil {
		return SignalData{}, err
	}
	return data, nil
}

func ParseProcessingRequest(raw map[string]any) (ProcessingRequest, error) {
	r := newRawInput(raw)
	p := ProcessingRequestParams{
		InputData:      r.str("input_data", true, ""),
		InputTokens:    r.integer("input_tokens", true, 0),
		ProcessorType:  r.str("processor_type", false, string(ProcessorHybrid)),
		TokenThreshold: r.positiveInt("token_threshold", DefaultTokenThreshold),
		MaxRetries:     r.integer("max_retries", false, DefaultMaxRetries),
		TimeoutSeconds: r.positiveFloat("timeout_seconds", DefaultTimeoutSeconds),
	}
	r.rejectUnknown()
	if len(r.errs) > 0 {
		return ProcessingRequest{}, r.finish(nil)
	}
	req, err := NewProcessingRequest(p)
	if err := r.finish(err); err != nil {
		return ProcessingRequest{}, err
	}
	return req, nil
}

func ParseFailoverConfig(raw map[string]any) (FailoverConfig, error) {
	r := newRawInput(raw)
	p := FailoverConfigParams{
		CloudFailureProbability: r.float("cloud_failure_probability", false, 0.01),
		LocalFailureProbability: r.float("local_failure_probability", false, 0.05),
		EnableFailover:          r.boolean("enable_failover", true),
		FailoverTimeoutMs:       r.positiveInt("failover_timeout_ms", DefaultFailoverTimeoutMs),
	}
	r.rejectUnknown()
	if len(r.errs) > 0 {
		return FailoverConfig{}, r.finish(nil)
	}
	cfg, err := NewFailoverConfig(p)
	if err := r.finish(err); err != nil {
		return FailoverConfig{}, err
	}
	return cfg, nil
}

func ParseGeoRoutingConfig(raw map[string]any) (GeoRoutingConfig, error) {
	r := newRawInput(raw)
	primary := r.str("primary_region", true, "")
	failover := r.boolPtr("failover_enabled")

	r.seen["regions"] = struct{}{}
	var regions []RegionConfig
	if v, ok := raw["regions"]; !ok || v == nil {
		r.errs.Addf("regions", "field is required")
	} else if list, isList := v.([]any); !isList {
		r.errs.Addf("regions", "must be an array of region objects, got %s", jsonTypeName(v))
	} else {
		for i, el := range list {
			obj, isObj := el.(map[string]any)
			if !isObj {
				r.errs.Addf(fmt.Sprintf("regions[%d]", i), "must be an object, got %s", jsonTypeName(el))
				continue
			}
			rc, err := ParseRegionConfig(obj)
			if err != nil {
				r.errs.Addf(fmt.Sprintf("regions[%d]", i), "%v", err)
				continue
			}
			regions = append(regions, rc)
		}
	}
	r.rejectUnknown()
	if len(r.errs) > 0 {
		return GeoRoutingConfig{}, r.finish(nil)
	}

	cfg, err := NewGeoRoutingConfig(GeoRoutingConfigParams{
		Regions:         regions,
		PrimaryRegion:   primary,
		FailoverEnabled: failover,
	})
	if err := r.finish(err); err != nil {
		return GeoRoutingConfig{}, err
	}
	return cfg, nil
}

func ParseRegionConfig(raw map[string]any) (RegionConfig, error) {
	r := newRawInput(raw)
	p := RegionConfigParams{
		Region:    r.str("region", true, ""),
		Endpoint:  r.str("endpoint", true, ""),
		LatencyMs: r.float("latency_ms", false, 0),
		IsActive:  r.boolPtr("is_active"),
	}
	r.rejectUnknown()
	if len(r.errs) > 0 {
		return RegionConfig{}, r.finish(nil)
	}
	cfg, err := NewRegionConfig(p)
	if err := r.finish(err); err != nil {
		return RegionConfig{}, err
	}
	return cfg, nil
}

func ParseMLModelValidationRequest(raw map[string]any) (MLModelValidationRequest, error) {
	r := newRawInput(raw)

	r.seen["model_info"] = struct{}{}
	r.seen["input_features"] = struct{}{}

	var model MLModelConfig
	if v, ok := raw["model_info"]; !ok || v == nil {
		r.errs.Addf("model_info", "field is required")
	} else if obj, isObj := v.(map[string]any); !isObj {
		r.errs.Addf("model_info", "must be an object, got %s", jsonTypeName(v))
	} else {
		var err error
		model, err = parseMLModelConfig(obj)
		if err != nil {
			r.errs.Addf("model_info", "%v", err)
		}
	}

	var features map[string]any
	if v, ok := raw["input_features"]; !ok || v == nil {
		r.errs.Addf("input_features", "field is required")
	} else if obj, isObj := v.(map[string]any); !isObj {
		r.errs.Addf("input_features", "must be an object, got %s", jsonTypeName(v))
	} else {
		features = obj
	}

	r.rejectUnknown()
	if len(r.errs) > 0 {
		return MLModelValidationRequest{}, r.finish(nil)
	}
	return NewMLModelValidationRequest(model, features), nil
}

func parseMLModelConfig(raw map[string]any) (MLModelConfig, error) {
	r := newRawInput(raw)
	name := r.str("name", true, "")
	version := r.str("version", true, "")

	r.seen["features"] = struct{}{}
	var features []FeatureSchema
	if v, ok := raw["features"]; ok && v != nil {
		list, isList := v.([]any)
		if !isList {
			r.errs.Addf("features", "must be an array of feature schemas, got %s", jsonTypeName(v))
		} else {
			for i, el := range list {
				obj, isObj := el.(map[string]any)
				if !isObj {
					r.errs.Addf(fmt.Sprintf("features[%d]", i), "must be an object, got %s", jsonTypeName(el))
					continue
				}
				fs, err := parseFeatureSchema(obj)
				if err != nil {
					r.errs.Addf(fmt.Sprintf("features[%d]", i), "%v", err)
					continue
				}
				features = append(features, fs)
			}
		}
	}
	r.rejectUnknown()
	if len(r.errs) > 0 {
		return MLModelConfig{}, r.finish(nil)
	}
	cfg, err := NewMLModelConfig(name, version, features)
	if err := r.finish(err); err != nil {
		return MLModelConfig{}, err
	}
	return cfg, nil
}

func parseFeatureSchema(raw map[string]any) (FeatureSchema, error) {
	r := newRawInput(raw)
	p := FeatureSchemaParams{
		Name:        r.str("name", true, ""),
		FeatureType: r.str("feature_type", true, ""),
		Required:    r.boolPtr("required"),
	}

	r.seen["min_value"] = struct{}{}
	if v, ok := raw["min_value"]; ok && v != nil {
		f, err := strictFloat(v)
		if err != nil {
			r.errs.Add("min_value", err)
		} else {
			p.MinValue = &f
		}
	}
	r.seen["max_value"] = struct{}{}
	if v, ok := raw["max_value"]; ok && v != nil {
		f, err := strictFloat(v)
		if err != nil {
			r.errs.Add("max_value", err)
		} else {
			p.MaxValue = &f
		}
	}
	r.seen["allowed_values"] = struct{}{}
	if v, ok := raw["allowed_values"]; ok && v != nil {
		list, isList := v.([]any)
		if !isList {
			r.errs.Addf("allowed_values", "must be an array of strings, got %s", jsonTypeName(v))
		} else {
			for i, el := range list {
				s, isStr := el.(string)
				if !isStr {
					r.errs.Addf(fmt.Sprintf("allowed_values[%d]", i), "must be a string, got %s", jsonTypeName(el))
					continue
				}
				p.AllowedValues = append(p.AllowedValues, s)
			}
		}
	}

	r.rejectUnknown()
	if len(r.errs) > 0 {
		return FeatureSchema{}, r.finish(nil)
	}
	fs, err := NewFeatureSchema(p)
	if err := r.finish(err); err != nil {
		return FeatureSchema{}, err
	}
	return fs, nil
}
