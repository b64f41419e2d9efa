package integrity

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// Сущности Integrity Layer. Все записи иммутабельны: конструктор либо
// возвращает объект, у которого выполнены ВСЕ инварианты, либо ошибку.
// Валидация двухфазная:
//   - фаза 1: доменная проверка каждого поля, ошибки собираются все вместе;
//   - фаза 2: перекрестные инварианты, запускается только при чистой фазе 1.
// После конструктора объект не меняется; "обновление" = новый объект.

type SignalType string

const (
	SignalAnalog  SignalType = "analog"
	SignalDigital SignalType = "digital"
	SignalHybrid  SignalType = "hybrid"
)

func ParseSignalType(s string) (SignalType, error) {
	switch SignalType(s) {
	case SignalAnalog, SignalDigital, SignalHybrid:
		return SignalType(s), nil
	}
	return "", fmt.Errorf("must be one of [analog digital hybrid], got %q", s)
}

type ProcessorType string

const (
	ProcessorCloud  ProcessorType = "cloud"
	ProcessorLocal  ProcessorType = "local"
	ProcessorHybrid ProcessorType = "hybrid"
)

func ParseProcessorType(s string) (ProcessorType, error) {
	switch ProcessorType(s) {
	case ProcessorCloud, ProcessorLocal, ProcessorHybrid:
		return ProcessorType(s), nil
	}
	return "", fmt.Errorf("must be one of [cloud local hybrid], got %q", s)
}

type ValidationStatus string

const (
	StatusSuccess ValidationStatus = "success"
	StatusFailure ValidationStatus = "failure"
	StatusPartial ValidationStatus = "partial"
)

func ParseValidationStatus(s string) (ValidationStatus, error) {
	switch ValidationStatus(s) {
	case StatusSuccess, StatusFailure, StatusPartial:
		return ValidationStatus(s), nil
	}
	return "", fmt.Errorf("must be one of [success failure partial], got %q", s)
}

// Дефолты сущностей (совпадают со значениями боевой конфигурации).
const (
	DefaultTokenThreshold    = 500
	DefaultMaxRetries        = 3
	DefaultTimeoutSeconds    = 30.0
	DefaultLocalMaxTokens    = 4096
	DefaultFailoverTimeoutMs = 5000
	MaxInputDataLength       = 1_000_000
)

// -----------------------------------------------------------------------------
// SignalConfig
// -----------------------------------------------------------------------------

// SignalConfig — конфигурация обработки сигнала с физическими ограничениями.
type SignalConfig struct {
	SignalType   SignalType    `json:"signal_type"`
	SamplingRate PositiveFloat `json:"sampling_rate"`
	Frequency    PositiveFloat `json:"frequency"`
	Amplitude    Amplitude     `json:"amplitude"`
	Duration     PositiveFloat `json:"duration"`
	Channels     PositiveInt   `json:"channels"`
}

type SignalConfigParams struct {
	SignalType   string
	SamplingRate float64
	Frequency    float64
	Amplitude    float64
	Duration     float64
	Channels     int // 0 -> 1 канал
}

func NewSignalConfig(p SignalConfigParams) (SignalConfig, error) {
	if p.Channels == 0 {
		p.Channels = 1
	}

	var errs FieldErrors
	var cfg SignalConfig
	var err error

	cfg.SignalType, err = ParseSignalType(p.SignalType)
	errs.Add("signal_type", err)
	cfg.SamplingRate, err = NewPositiveFloat(p.SamplingRate)
	errs.Add("sampling_rate", err)
	cfg.Frequency, err = NewPositiveFloat(p.Frequency)
	errs.Add("frequency", err)
	cfg.Amplitude, err = NewAmplitude(p.Amplitude)
	errs.Add("amplitude", err)
	cfg.Duration, err = NewPositiveFloat(p.Duration)
	errs.Add("duration", err)
	cfg.Channels, err = NewPositiveInt(p.Channels)
	errs.Add("channels", err)

	if len(errs) > 0 {
		return SignalConfig{}, errs
	}

	// Фаза 2: критерий Найквиста действует только для аналоговых сигналов.
	if cfg.SignalType == SignalAnalog {
		if ok, msg := ValidateNyquistCriterion(float64(cfg.SamplingRate), float64(cfg.Frequency)); !ok {
			return SignalConfig{}, fmt.Errorf("%s (analog signal)", msg)
		}
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// SignalData
// -----------------------------------------------------------------------------

// SignalData — сырые отсчеты сигнала. Слайс копируется при конструировании
// и при чтении, чтобы извне нельзя было изменить данные после валидации.
type SignalData struct {
	values     []float64
	SampleRate PositiveFloat `json:"sample_rate"`
}

func NewSignalData(values []float64, sampleRate float64) (SignalData, error) {
	var errs FieldErrors

	if len(values) == 0 {
		errs.Addf("values", "must contain at least one sample")
	}
	for i, v := range values {
		if !isFinite(v) {
			errs.Addf(fmt.Sprintf("values[%d]", i), "must be finite, got %v", v)
		}
	}
	rate, err := NewPositiveFloat(sampleRate)
	errs.Add("sample_rate", err)

	if len(errs) > 0 {
		return SignalData{}, errs
	}

	vals := make([]float64, len(values))
	copy(vals, values)
	return SignalData{values: vals, SampleRate: rate}, nil
}

// Values возвращает копию отсчетов.
func (d SignalData) Values() []float64 {
	out := make([]float64, len(d.values))
	copy(out, d.values)
	return out
}

func (d SignalData) Len() int { return len(d.values) }

// Hash — детерминированный отпечаток (values, sample_rate) для трассировки.
func (d SignalData) Hash() string {
	return computeSignalHash(d.values, float64(d.SampleRate))
}

// Validate формирует успешный ValidationResult: сконструированный SignalData
// по построению валиден, остается только посчитать отпечаток.
func (d SignalData) Validate() ValidationResult {
	res, _ := NewValidationResult(ValidationResultParams{
		Status:    StatusSuccess,
		IsValid:   true,
		InputHash: d.Hash(),
	})
	return res
}

// -----------------------------------------------------------------------------
// ProcessingRequest
// -----------------------------------------------------------------------------

// ProcessingRequest — запрос на обработку, главная входная сущность шлюза.
type ProcessingRequest struct {
	InputData      string           `json:"input_data"`
	InputTokens    TokenCount       `json:"input_tokens"`
	ProcessorType  ProcessorType    `json:"processor_type"`
	TokenThreshold TokenCount       `json:"token_threshold"`
	MaxRetries     NonNegativeInt   `json:"max_retries"`
	TimeoutSeconds PositiveFloat    `json:"timeout_seconds"`
}

type ProcessingRequestParams struct {
	InputData      string
	InputTokens    int
	ProcessorType  string  // "" -> hybrid
	TokenThreshold int     // 0 -> 500
	MaxRetries     int
	TimeoutSeconds float64 // 0 -> 30
}

func NewProcessingRequest(p ProcessingRequestParams) (ProcessingRequest, error) {
	if p.ProcessorType == "" {
		p.ProcessorType = string(ProcessorHybrid)
	}
	if p.TokenThreshold == 0 {
		p.TokenThreshold = DefaultTokenThreshold
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = DefaultTimeoutSeconds
	}

	var errs FieldErrors
	var req ProcessingRequest
	var err error

	if len(p.InputData) == 0 {
		errs.Addf("input_data", "must not be empty")
	} else if len(p.InputData) > MaxInputDataLength {
		errs.Addf("input_data", "must be at most %d characters, got %d", MaxInputDataLength, len(p.InputData))
	}
	req.InputData = p.InputData

	req.InputTokens, err = NewTokenCount(p.InputTokens)
	errs.Add("input_tokens", err)
	req.ProcessorType, err = ParseProcessorType(p.ProcessorType)
	errs.Add("processor_type", err)
	req.TokenThreshold, err = NewTokenCount(p.TokenThreshold)
	errs.Add("token_threshold", err)
	req.MaxRetries, err = NewNonNegativeInt(p.MaxRetries)
	errs.Add("max_retries", err)
	req.TimeoutSeconds, err = NewPositiveFloat(p.TimeoutSeconds)
	errs.Add("timeout_seconds", err)

	if len(errs) > 0 {
		return ProcessingRequest{}, errs
	}

	// Фаза 2: локальный процессор физически ограничен контекстом 4096 токенов.
	if ok, msg := ValidateTokenProcessorCompatibility(int(req.InputTokens), string(req.ProcessorType), DefaultLocalMaxTokens); !ok {
		return ProcessingRequest{}, fmt.Errorf("%s", msg)
	}
	return req, nil
}

// Hash — отпечаток входных данных запроса.
func (r ProcessingRequest) Hash() string {
	return ComputeInputHash(r.InputData)
}

// -----------------------------------------------------------------------------
// FailoverConfig
// -----------------------------------------------------------------------------

// FailoverConfig — параметры резервирования cloud -> local.
type FailoverConfig struct {
	CloudFailureProbability Probability `json:"cloud_failure_probability"`
	LocalFailureProbability Probability `json:"local_failure_probability"`
	EnableFailover          bool        `json:"enable_failover"`
	FailoverTimeoutMs       PositiveInt `json:"failover_timeout_ms"`
}

type FailoverConfigParams struct {
	CloudFailureProbability float64
	LocalFailureProbability float64
	EnableFailover          bool
	FailoverTimeoutMs       int // 0 -> 5000
}

func NewFailoverConfig(p FailoverConfigParams) (FailoverConfig, error) {
	if p.FailoverTimeoutMs == 0 {
		p.FailoverTimeoutMs = DefaultFailoverTimeoutMs
	}

	var errs FieldErrors
	var cfg FailoverConfig
	var err error

	cfg.CloudFailureProbability, err = NewProbability(p.CloudFailureProbability)
	errs.Add("cloud_failure_probability", err)
	cfg.LocalFailureProbability, err = NewProbability(p.LocalFailureProbability)
	errs.Add("local_failure_probability", err)
	cfg.FailoverTimeoutMs, err = NewPositiveInt(p.FailoverTimeoutMs)
	errs.Add("failover_timeout_ms", err)
	cfg.EnableFailover = p.EnableFailover

	return cfg, errs.OrNil()
}

// SystemSuccessProbability — производная величина:
// с failover система падает только когда падают ОБА процессора.
func (c FailoverConfig) SystemSuccessProbability() float64 {
	if c.EnableFailover {
		return 1.0 - float64(c.CloudFailureProbability)*float64(c.LocalFailureProbability)
	}
	return 1.0 - float64(c.CloudFailureProbability)
}

// -----------------------------------------------------------------------------
// ValidationResult
// -----------------------------------------------------------------------------

// ValidationResult — стандартный вердикт валидации.
// Инвариант: status=success <=> is_valid && errors пуст; status=failure => !is_valid.
type ValidationResult struct {
	Status    ValidationStatus `json:"status"`
	IsValid   bool             `json:"is_valid"`
	InputHash string           `json:"input_hash"`
	errors    []string
	warnings  []string
}

type ValidationResultParams struct {
	Status    ValidationStatus
	IsValid   bool
	InputHash string
	Errors    []string
	Warnings  []string
}

func NewValidationResult(p ValidationResultParams) (ValidationResult, error) {
	var errs FieldErrors
	if _, err := ParseValidationStatus(string(p.Status)); err != nil {
		errs.Add("status", err)
	}
	if len(errs) > 0 {
		return ValidationResult{}, errs
	}

	// Фаза 2: согласованность status / is_valid / errors.
	if p.Status == StatusSuccess && !p.IsValid {
		return ValidationResult{}, fmt.Errorf("status is success but is_valid is false")
	}
	if p.Status == StatusFailure && p.IsValid {
		return ValidationResult{}, fmt.Errorf("status is failure but is_valid is true")
	}
	if p.Status == StatusSuccess && len(p.Errors) > 0 {
		return ValidationResult{}, fmt.Errorf("status is success but %d errors are present", len(p.Errors))
	}

	return ValidationResult{
		Status:    p.Status,
		IsValid:   p.IsValid,
		InputHash: p.InputHash,
		errors:    copyStrings(p.Errors),
		warnings:  copyStrings(p.Warnings),
	}, nil
}

// SuccessResult — валидный "зеленый" вердикт без обращения к конструктору ошибок.
func SuccessResult(inputHash string) ValidationResult {
	return ValidationResult{Status: StatusSuccess, IsValid: true, InputHash: inputHash}
}

// FailureResult — "красный" вердикт с перечнем причин.
func FailureResult(inputHash string, errors ...string) ValidationResult {
	return ValidationResult{
		Status:    StatusFailure,
		IsValid:   false,
		InputHash: inputHash,
		errors:    copyStrings(errors),
	}
}

// MarshalJSON включает в вывод невидимые снаружи списки ошибок и предупреждений.
func (r ValidationResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Status    ValidationStatus `json:"status"`
		IsValid   bool             `json:"is_valid"`
		InputHash string           `json:"input_hash"`
		Errors    []string         `json:"errors"`
		Warnings  []string         `json:"warnings"`
	}
	return json.Marshal(wire{
		Status:    r.Status,
		IsValid:   r.IsValid,
		InputHash: r.InputHash,
		Errors:    append([]string{}, r.errors...),
		Warnings:  append([]string{}, r.warnings...),
	})
}

// UnmarshalJSON восстанавливает результат из кэша или БД без обхода инвариантов:
// собранное значение проходит через NewValidationResult.
func (r *ValidationResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Status    ValidationStatus `json:"status"`
		IsValid   bool             `json:"is_valid"`
		InputHash string           `json:"input_hash"`
		Errors    []string         `json:"errors"`
		Warnings  []string         `json:"warnings"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	restored, err := NewValidationResult(ValidationResultParams{
		Status:    wire.Status,
		IsValid:   wire.IsValid,
		InputHash: wire.InputHash,
		Errors:    wire.Errors,
		Warnings:  wire.Warnings,
	})
	if err != nil {
		return err
	}
	*r = restored
	return nil
}

// Errors возвращает копию списка ошибок (порядок сохраняется).
func (r ValidationResult) Errors() []string { return copyStrings(r.errors) }

// Warnings возвращает копию списка предупреждений.
func (r ValidationResult) Warnings() []string { return copyStrings(r.warnings) }

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// -----------------------------------------------------------------------------
// OutputSchema
// -----------------------------------------------------------------------------

// OutputSchema — стандартный конверт любого ответа процессора.
// Всегда оборачивает ValidationResult, успех или отказ.
type OutputSchema struct {
	Result           any              `json:"result"`
	Validation       ValidationResult `json:"validation"`
	ProcessorUsed    ProcessorType    `json:"processor_used"`
	ProcessingTimeMs NonNegativeFloat `json:"processing_time_ms"`
	RetriesAttempted NonNegativeInt   `json:"retries_attempted"`
}

type OutputSchemaParams struct {
	Result           any
	Validation       ValidationResult
	ProcessorUsed    ProcessorType
	ProcessingTimeMs float64
	RetriesAttempted int
}

func NewOutputSchema(p OutputSchemaParams) (OutputSchema, error) {
	var errs FieldErrors
	var out OutputSchema
	var err error

	// В конверте допустимы только исполнившие запрос процессоры: cloud или local.
	if p.ProcessorUsed != ProcessorCloud && p.ProcessorUsed != ProcessorLocal {
		errs.Addf("processor_used", "must be one of [cloud local], got %q", string(p.ProcessorUsed))
	}
	out.ProcessingTimeMs, err = NewNonNegativeFloat(p.ProcessingTimeMs)
	errs.Add("processing_time_ms", err)
	out.RetriesAttempted, err = NewNonNegativeInt(p.RetriesAttempted)
	errs.Add("retries_attempted", err)

	if len(errs) > 0 {
		return OutputSchema{}, errs
	}

	out.Result = p.Result
	out.Validation = p.Validation
	out.ProcessorUsed = p.ProcessorUsed
	return out, nil
}

// -----------------------------------------------------------------------------
// Geo routing
// -----------------------------------------------------------------------------

type Region string

const (
	RegionUSEast      Region = "us-east"
	RegionUSWest      Region = "us-west"
	RegionEUCentral   Region = "eu-central"
	RegionAPSoutheast Region = "ap-southeast"
)

func ParseRegion(s string) (Region, error) {
	switch Region(s) {
	case RegionUSEast, RegionUSWest, RegionEUCentral, RegionAPSoutheast:
		return Region(s), nil
	}
	return "", fmt.Errorf("must be one of [us-east us-west eu-central ap-southeast], got %q", s)
}

// RegionConfig — один регион обслуживания.
type RegionConfig struct {
	Region    Region           `json:"region"`
	Endpoint  string           `json:"endpoint"`
	LatencyMs NonNegativeFloat `json:"latency_ms"`
	IsActive  bool             `json:"is_active"`
}

type RegionConfigParams struct {
	Region    string
	Endpoint  string
	LatencyMs float64
	IsActive  *bool // nil -> true
}

func NewRegionConfig(p RegionConfigParams) (RegionConfig, error) {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}

	var errs FieldErrors
	var cfg RegionConfig
	var err error

	cfg.Region, err = ParseRegion(p.Region)
	errs.Add("region", err)
	if p.Endpoint == "" {
		errs.Addf("endpoint", "must not be empty")
	}
	cfg.Endpoint = p.Endpoint
	cfg.LatencyMs, err = NewNonNegativeFloat(p.LatencyMs)
	errs.Add("latency_ms", err)
	cfg.IsActive = active

	if len(errs) > 0 {
		return RegionConfig{}, errs
	}
	return cfg, nil
}

// GeoRoutingConfig — упорядоченный список регионов + первичный регион.
type GeoRoutingConfig struct {
	regions         []RegionConfig
	PrimaryRegion   Region `json:"primary_region"`
	FailoverEnabled bool   `json:"failover_enabled"`
}

type GeoRoutingConfigParams struct {
	Regions         []RegionConfig
	PrimaryRegion   string
	FailoverEnabled *bool // nil -> true
}

func NewGeoRoutingConfig(p GeoRoutingConfigParams) (GeoRoutingConfig, error) {
	failover := true
	if p.FailoverEnabled != nil {
		failover = *p.FailoverEnabled
	}

	var errs FieldErrors
	primary, err := ParseRegion(p.PrimaryRegion)
	errs.Add("primary_region", err)
	if len(p.Regions) == 0 {
		errs.Addf("regions", "must contain at least one region")
	}
	if len(errs) > 0 {
		return GeoRoutingConfig{}, errs
	}

	// Фаза 2: первичный регион обязан присутствовать в списке.
	found := false
	for _, r := range p.Regions {
		if r.Region == primary {
			found = true
			break
		}
	}
	if !found {
		return GeoRoutingConfig{}, fmt.Errorf("primary region %q not found in regions list", string(primary))
	}

	regions := make([]RegionConfig, len(p.Regions))
	copy(regions, p.Regions)
	return GeoRoutingConfig{regions: regions, PrimaryRegion: primary, FailoverEnabled: failover}, nil
}

// Regions возвращает копию списка в порядке объявления.
func (c GeoRoutingConfig) Regions() []RegionConfig {
	out := make([]RegionConfig, len(c.regions))
	copy(out, c.regions)
	return out
}

// -----------------------------------------------------------------------------
// ML model validation
// -----------------------------------------------------------------------------

type FeatureType string

const (
	FeatureNumeric     FeatureType = "numeric"
	FeatureCategorical FeatureType = "categorical"
	FeatureBoolean     FeatureType = "boolean"
	FeatureText        FeatureType = "text"
)

func ParseFeatureType(s string) (FeatureType, error) {
	switch FeatureType(s) {
	case FeatureNumeric, FeatureCategorical, FeatureBoolean, FeatureText:
		return FeatureType(s), nil
	}
	return "", fmt.Errorf("must be one of [numeric categorical boolean text], got %q", s)
}

// FeatureSchema — декларация одного входного признака модели.
type FeatureSchema struct {
	Name          string      `json:"name"`
	FeatureType   FeatureType `json:"feature_type"`
	Required      bool        `json:"required"`
	MinValue      *float64    `json:"min_value,omitempty"`
	MaxValue      *float64    `json:"max_value,omitempty"`
	AllowedValues []string    `json:"allowed_values,omitempty"`
}

type FeatureSchemaParams struct {
	Name          string
	FeatureType   string
	Required      *bool // nil -> true
	MinValue      *float64
	MaxValue      *float64
	AllowedValues []string
}

func NewFeatureSchema(p FeatureSchemaParams) (FeatureSchema, error) {
	required := true
	if p.Required != nil {
		required = *p.Required
	}

	var errs FieldErrors
	var fs FeatureSchema
	var err error

	if p.Name == "" {
		errs.Addf("name", "must not be empty")
	}
	fs.Name = p.Name
	fs.FeatureType, err = ParseFeatureType(p.FeatureType)
	errs.Add("feature_type", err)

	if len(errs) > 0 {
		return FeatureSchema{}, errs
	}

	if p.MinValue != nil && p.MaxValue != nil && *p.MinValue > *p.MaxValue {
		return FeatureSchema{}, fmt.Errorf("min_value %v exceeds max_value %v for feature %q", *p.MinValue, *p.MaxValue, p.Name)
	}

	fs.Required = required
	fs.MinValue = copyFloatPtr(p.MinValue)
	fs.MaxValue = copyFloatPtr(p.MaxValue)
	fs.AllowedValues = copyStrings(p.AllowedValues)
	return fs, nil
}

func copyFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// MLModelConfig — описание модели и схемы ее признаков.
type MLModelConfig struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	features []FeatureSchema
}

func NewMLModelConfig(name, version string, features []FeatureSchema) (MLModelConfig, error) {
	var errs FieldErrors
	if name == "" {
		errs.Addf("name", "must not be empty")
	}
	if !semverPattern.MatchString(version) {
		errs.Addf("version", "must match semver X.Y.Z, got %q", version)
	}
	if len(errs) > 0 {
		return MLModelConfig{}, errs
	}

	fs := make([]FeatureSchema, len(features))
	copy(fs, features)
	return MLModelConfig{Name: name, Version: version, features: fs}, nil
}

// Features возвращает копию схем признаков в порядке объявления.
func (c MLModelConfig) Features() []FeatureSchema {
	out := make([]FeatureSchema, len(c.features))
	copy(out, c.features)
	return out
}

// MLModelValidationRequest — проверка входных признаков против схемы модели.
type MLModelValidationRequest struct {
	ModelInfo     MLModelConfig `json:"model_info"`
	inputFeatures map[string]any
}

func NewMLModelValidationRequest(model MLModelConfig, inputFeatures map[string]any) MLModelValidationRequest {
	feats := make(map[string]any, len(inputFeatures))
	for k, v := range inputFeatures {
		feats[k] = v
	}
	return MLModelValidationRequest{ModelInfo: model, inputFeatures: feats}
}

// InputFeatures возвращает копию карты признаков.
func (r MLModelValidationRequest) InputFeatures() map[string]any {
	out := make(map[string]any, len(r.inputFeatures))
	for k, v := range r.inputFeatures {
		out[k] = v
	}
	return out
}

// ValidateInputs проверяет присутствие обязательных признаков, соответствие
// каждого переданного значения его схеме и отсутствие неизвестных признаков.
func (r MLModelValidationRequest) ValidateInputs() ValidationResult {
	known := make(map[string]struct{}, len(r.ModelInfo.features))
	checks := make([]CheckResult, 0, len(r.ModelInfo.features)+len(r.inputFeatures))

	for _, schema := range r.ModelInfo.features {
		known[schema.Name] = struct{}{}
		value, present := r.inputFeatures[schema.Name]
		if !present {
			value = nil
		}
		ok, msg := ValidateFeatureValue(value, schema)
		checks = append(checks, CheckResult{OK: ok, Message: msg})
	}

	// Строгий режим: признаки вне схемы отклоняются.
	// Имена сортируются: порядок ошибок не должен зависеть от обхода мапы.
	unknown := make([]string, 0)
	for name := range r.inputFeatures {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		checks = append(checks, CheckResult{OK: false, Message: fmt.Sprintf("unknown feature %q is not declared in model schema", name)})
	}

	errors := CollectValidationErrors(checks)
	hash := ComputeInputHash(fmt.Sprintf("%s:%s", r.ModelInfo.Name, r.ModelInfo.Version))
	if len(errors) > 0 {
		return FailureResult(hash, errors...)
	}
	return SuccessResult(hash)
}
