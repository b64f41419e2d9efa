package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/strictgate/internal/audit"
	"github.com/xela07ax/strictgate/internal/infra"
	"github.com/xela07ax/strictgate/internal/integrity"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// decodeBody читает тело строго: UseNumber сохраняет различие int/float,
// дальше разбор отдается строгим Parse*-функциям.
func decodeBody(r *http.Request) (map[string]any, []byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, raw, err
	}
	return m, raw, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// validationMessages разворачивает агрегат полевых ошибок в плоский список.
func validationMessages(err error) []string {
	var fieldErrs integrity.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs.Messages()
	}
	return []string{err.Error()}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok"}
	if s.health != nil {
		if degraded := s.health.Degraded(); len(degraded) > 0 {
			payload["status"] = "degraded"
			payload["degraded_processors"] = degraded
		}
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	raw, _, err := decodeBody(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest,
			integrity.FailureResult("", "request body is not a JSON object: "+err.Error()))
		return
	}

	req, err := integrity.ParseProcessingRequest(raw)
	if err != nil {
		hash := ""
		if input, ok := raw["input_data"].(string); ok {
			hash = integrity.ComputeInputHash(input)
		}
		respondJSON(w, http.StatusBadRequest, integrity.FailureResult(hash, validationMessages(err)...))
		return
	}

	// Кэш повторных запросов: ключ — отпечаток входных данных.
	cacheKey := infra.RedisKeyProcessingCache + req.Hash()
	if s.cache != nil {
		var cached integrity.OutputSchema
		if s.cache.Get(r.Context(), cacheKey, &cached) {
			w.Header().Set("X-Cache", "HIT")
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	out := s.manager.Process(r.Context(), req)
	s.record(r, "process", req.Hash(), out)

	if s.cache != nil && out.Validation.IsValid {
		s.cache.Set(r.Context(), cacheKey, out)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleValidateSignal(w http.ResponseWriter, r *http.Request) {
	raw, body, err := decodeBody(r)
	inputHash := integrity.ComputeInputHash(string(body))
	if err != nil {
		respondJSON(w, http.StatusOK,
			integrity.FailureResult(inputHash, "request body is not a JSON object: "+err.Error()))
		return
	}

	if _, err := integrity.ParseSignalConfig(raw); err != nil {
		respondJSON(w, http.StatusOK, integrity.FailureResult(inputHash, validationMessages(err)...))
		return
	}
	respondJSON(w, http.StatusOK, integrity.SuccessResult(inputHash))
}

func (s *Server) handleValidateML(w http.ResponseWriter, r *http.Request) {
	raw, body, err := decodeBody(r)
	inputHash := integrity.ComputeInputHash(string(body))
	if err != nil {
		respondJSON(w, http.StatusOK,
			integrity.FailureResult(inputHash, "request body is not a JSON object: "+err.Error()))
		return
	}

	req, err := integrity.ParseMLModelValidationRequest(raw)
	if err != nil {
		respondJSON(w, http.StatusOK, integrity.FailureResult(inputHash, validationMessages(err)...))
		return
	}
	respondJSON(w, http.StatusOK, req.ValidateInputs())
}

// handleFailover отдает расчет вероятности успеха системы для заданных
// (или сконфигурированных) параметров резервирования.
func (s *Server) handleFailover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cloudP := s.cfg.Engine.CloudFailureProbability
	localP := s.cfg.Engine.LocalFailureProbability
	enabled := s.cfg.Engine.EnableFailover

	var parseErrs []string
	if v := q.Get("cloud_failure_probability"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, "cloud_failure_probability: must be a number, got "+strconv.Quote(v))
		} else {
			cloudP = f
		}
	}
	if v := q.Get("local_failure_probability"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, "local_failure_probability: must be a number, got "+strconv.Quote(v))
		} else {
			localP = f
		}
	}
	if v := q.Get("enable_failover"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			parseErrs = append(parseErrs, "enable_failover: must be a boolean, got "+strconv.Quote(v))
		} else {
			enabled = b
		}
	}
	if len(parseErrs) > 0 {
		respondJSON(w, http.StatusBadRequest, integrity.FailureResult("", parseErrs...))
		return
	}

	cfg, err := integrity.NewFailoverConfig(integrity.FailoverConfigParams{
		CloudFailureProbability: cloudP,
		LocalFailureProbability: localP,
		EnableFailover:          enabled,
		FailoverTimeoutMs:       s.cfg.Engine.FailoverTimeoutMs,
	})
	if err != nil {
		respondJSON(w, http.StatusBadRequest, integrity.FailureResult("", validationMessages(err)...))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"config":                     cfg,
		"system_success_probability": cfg.SystemSuccessProbability(),
	})
}

// record отправляет событие в журнал обработки, не блокируя ответ.
func (s *Server) record(r *http.Request, operation, inputHash string, out integrity.OutputSchema) {
	if s.trail == nil {
		return
	}
	s.trail.Record(audit.ProcessingEvent{
		ID:               uuid.New().String(),
		TraceID:          TraceIDFromContext(r.Context()),
		InputHash:        inputHash,
		Operation:        operation,
		ProcessorUsed:    string(out.ProcessorUsed),
		FailedOver:       out.RetriesAttempted > 0,
		Status:           string(out.Validation.Status),
		Errors:           out.Validation.Errors(),
		RetriesAttempted: int(out.RetriesAttempted),
		ProcessingTimeMs: float64(out.ProcessingTimeMs),
		Timestamp:        time.Now(),
	})
	s.logger.Debug("request recorded",
		zap.String("operation", operation),
		zap.String("input_hash", inputHash),
		zap.String("processor", string(out.ProcessorUsed)))
}
