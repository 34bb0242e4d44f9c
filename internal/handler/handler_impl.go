// Package handler provides HTTP request handlers for the application.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/api"
	"github.com/popeskul/wa-dispatcher/internal/middleware"
	"github.com/popeskul/wa-dispatcher/internal/service"
)

const (
	errorCodeValidation           = "VALIDATION_ERROR"
	errorCodeInvalidBody          = "INVALID_BODY"
	errorCodeInvalidParameter     = "INVALID_PARAMETER"
	errorCodeCampaignNotFound     = "CAMPAIGN_NOT_FOUND"
	errorCodeInstanceNotFound     = "INSTANCE_NOT_FOUND"
	errorCodeInvalidTransition    = "INVALID_TRANSITION"
	errorCodeSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
	errorCodeInstanceNotConnected = "INSTANCE_NOT_CONNECTED"
	errorCodeMissingCredentials   = "MISSING_CREDENTIALS"
	errorCodeSessionDisconnected  = "SESSION_DISCONNECTED"
	errorCodeGatewayUnavailable   = "GATEWAY_UNAVAILABLE"
)

const (
	errorMessageValidation           = "Request validation failed"
	errorMessageInvalidBody          = "Request body is not valid JSON"
	errorMessageCampaignNotFound     = "Campaign not found"
	errorMessageInstanceNotFound     = "WhatsApp instance not found"
	errorMessageSubscriptionInactive = "An active subscription is required"
	errorMessageInstanceNotConnected = "WhatsApp instance is not connected"
	errorMessageMissingCredentials   = "WhatsApp instance credentials are missing"
	errorMessageSessionDisconnected  = "WhatsApp session is disconnected"
	errorMessageGatewayUnavailable   = "WhatsApp gateway is unavailable"
)

const (
	optOutMessageBlocked = "Contact blocked successfully"
	optOutMessageIgnored = "No opt-out detected"
)

const maxBodyBytes = 5 << 20

type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler instance that implements api.ServerInterface.
func NewHandler(service *service.Service, logger *zap.Logger) api.ServerInterface {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HealthCheck implements api.ServerInterface.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth(r.Context())

	response := api.HealthResponse{
		Status:           health.Status,
		Timestamp:        time.Now(),
		ActiveDispatches: &health.ActiveDispatches,
	}

	if health.SchedulerStatus != "" {
		status := health.SchedulerStatus
		response.SchedulerStatus = &status
	}

	if health.DatabaseStatus != "" {
		status := health.DatabaseStatus
		response.DatabaseStatus = &status
	}

	if health.RedisStatus != "" {
		status := health.RedisStatus
		response.RedisStatus = &status
	}

	if health.CircuitBreakerStatus != "" {
		response.CircuitBreakerStatus = &health.CircuitBreakerStatus
	}

	if health.CircuitBreakerState != "" {
		state := health.CircuitBreakerState
		response.CircuitBreakerState = &state
	}

	// Degraded still answers 200 so the instance stays in rotation while the
	// gateway breaker is open.
	if health.Status == api.Unhealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}

// ProcessOptOut implements api.ServerInterface.
func (h *Handler) ProcessOptOut(w http.ResponseWriter, r *http.Request) {
	var body api.ProcessOptOutJSONRequestBody
	if !h.decodeBody(w, r, &body) {
		return
	}

	blocked, err := h.service.OptOut.Process(r.Context(), &service.OptOutInput{
		Instance: body.InstanceName,
		Sender:   body.Sender,
		Message:  body.Message,
	})
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to process opt-out")
		return
	}

	response := api.OptOutResponse{Blocked: blocked, Message: optOutMessageIgnored}
	if blocked {
		response.Message = optOutMessageBlocked
	}
	render.JSON(w, r, response)
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidBody, errorMessageInvalidBody)
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses. Anything that is
// not a known sentinel is logged and reported as an internal error.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, logMessage string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.sendValidationError(w, r, verr)
	case errors.Is(err, service.ErrValidation):
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
	case errors.Is(err, service.ErrCampaignNotFound):
		h.sendError(w, r, http.StatusNotFound, errorCodeCampaignNotFound, errorMessageCampaignNotFound)
	case errors.Is(err, service.ErrInstanceNotFound):
		h.sendError(w, r, http.StatusNotFound, errorCodeInstanceNotFound, errorMessageInstanceNotFound)
	case errors.Is(err, service.ErrInvalidTransition):
		h.sendError(w, r, http.StatusConflict, errorCodeInvalidTransition, err.Error())
	case errors.Is(err, service.ErrSubscriptionInactive):
		h.sendError(w, r, http.StatusPaymentRequired, errorCodeSubscriptionInactive, errorMessageSubscriptionInactive)
	case errors.Is(err, service.ErrInstanceNotConnected):
		h.sendError(w, r, http.StatusPreconditionFailed, errorCodeInstanceNotConnected, errorMessageInstanceNotConnected)
	case errors.Is(err, service.ErrMissingCredentials):
		h.sendError(w, r, http.StatusPreconditionFailed, errorCodeMissingCredentials, errorMessageMissingCredentials)
	case errors.Is(err, service.ErrSessionDisconnected):
		h.sendError(w, r, http.StatusPreconditionFailed, errorCodeSessionDisconnected, errorMessageSessionDisconnected)
	case errors.Is(err, service.ErrGatewayNotConfigured), errors.Is(err, service.ErrCircuitOpen):
		h.sendError(w, r, http.StatusServiceUnavailable, errorCodeGatewayUnavailable, errorMessageGatewayUnavailable)
	default:
		middleware.LoggerFrom(r.Context(), h.logger).Error(logMessage, zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, middleware.ErrorMessageInternal)
	}
}

func (h *Handler) sendValidationError(w http.ResponseWriter, r *http.Request, verr *service.ValidationError) {
	fields := make(map[string]string, len(verr.Fields))
	for k, v := range verr.Fields {
		fields[k] = v
	}
	now := time.Now()
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, api.ErrorResponse{
		Error:     errorCodeValidation,
		Message:   errorMessageValidation,
		Fields:    &fields,
		Timestamp: &now,
	})
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	middleware.WriteError(w, r, statusCode, errorCode, message)
}

// InvalidParamHandler renders parameter binding failures of the generated
// router in the standard error envelope.
func InvalidParamHandler(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, http.StatusBadRequest, errorCodeInvalidParameter, err.Error())
}
