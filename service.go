package deviceauth

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go.pilab.hu/deviceauth/internal/audit"
	"go.pilab.hu/deviceauth/internal/metrics"
	"go.pilab.hu/deviceauth/log"
	"go.pilab.hu/deviceauth/tracing"
)

// DeviceAuthorizationService runs the device authorization pipeline:
// validate the request, issue a code pair, build the response.
type DeviceAuthorizationService struct {
	validator *RequestValidator
	issuer    *Issuer
	builder   *ResponseBuilder
	logger    log.Logger
	tracer    trace.Tracer
}

// NewDeviceAuthorizationService wires the pipeline stages together.
func NewDeviceAuthorizationService(
	validator *RequestValidator,
	issuer *Issuer,
	builder *ResponseBuilder,
	logger log.Logger,
) *DeviceAuthorizationService {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &DeviceAuthorizationService{
		validator: validator,
		issuer:    issuer,
		builder:   builder,
		logger:    logger,
		tracer:    tracing.Tracer(),
	}
}

// Authorize handles one device authorization request from caller.
// Errors are the sentinels of this package, possibly wrapped.
func (s *DeviceAuthorizationService) Authorize(
	ctx context.Context,
	params map[string]string,
	caller Principal,
	rc RequestContext,
) (DeviceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DeviceAuthorizationService.Authorize",
		trace.WithAttributes(attribute.String("principal.kind", caller.Kind().String())))
	defer span.End()

	req, c, err := s.validator.Validate(ctx, params, caller)
	if err != nil {
		reason := failureReason(err)
		metrics.ValidationFailuresTotal.WithLabelValues(reason).Inc()
		span.SetStatus(codes.Error, reason)

		if reason == metrics.ReasonUnknown {
			s.logger.Error(ctx, "Device authorization validation failed", err)
		} else {
			s.logger.Debug(ctx, "Device authorization request rejected", map[string]interface{}{
				"reason": reason,
				"error":  err.Error(),
			})
		}

		audit.Log(audit.Event{
			Action: audit.ActionDeviceCodeRejected,
			Client: auditClientID(params, caller),
			Reason: reason,
			Error:  err.Error(),
		})

		return DeviceResponse{}, err
	}

	span.SetAttributes(
		attribute.String("client.id", req.ClientID()),
		attribute.String("scope", FormatScope(req.Scope())),
	)

	userCode, deviceCode, err := s.issuer.Issue(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "device code issuance failed")

		fields := map[string]interface{}{"client_id": req.ClientID()}
		if errors.Is(err, ErrCodeGenerationExhausted) {
			s.logger.Error(ctx, "Device code space exhausted, check entropy source and code store", err, fields)
		} else {
			s.logger.Error(ctx, "Failed to issue device code", err, fields)
		}

		audit.Log(audit.Event{
			Action: audit.ActionDeviceCodeFailed,
			Client: req.ClientID(),
			Scope:  FormatScope(req.Scope()),
			Error:  err.Error(),
		})

		return DeviceResponse{}, err
	}

	resp := s.builder.Build(ctx, userCode, deviceCode, c, rc)

	s.logger.Info(ctx, "Device code issued", map[string]interface{}{
		"client_id": req.ClientID(),
		"user_code": userCode,
		"scope":     FormatScope(req.Scope()),
	})

	audit.Log(audit.Event{
		Action:   audit.ActionDeviceCodeIssued,
		Client:   req.ClientID(),
		UserCode: userCode,
		Scope:    FormatScope(req.Scope()),
		Success:  true,
	})

	return resp, nil
}

func auditClientID(params map[string]string, caller Principal) string {
	if id := params[ParamClientID]; id != "" {
		return id
	}

	return caller.Name()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return metrics.ReasonUnauthenticated
	case errors.Is(err, ErrMissingClientID):
		return metrics.ReasonMissingClientID
	case errors.Is(err, ErrClientMismatch):
		return metrics.ReasonClientMismatch
	case errors.Is(err, ErrUnknownClient):
		return metrics.ReasonUnknownClient
	case errors.Is(err, ErrScopeNotAllowed):
		return metrics.ReasonScopeNotAllowed
	default:
		return metrics.ReasonUnknown
	}
}
