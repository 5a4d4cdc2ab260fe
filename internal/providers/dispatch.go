package providers

import (
	"context"

	"triggerd/internal/bus"
	"triggerd/internal/common/logging"
	"triggerd/internal/metrics"
	"triggerd/internal/models"
)

// Attach subscribes exec to the execute-action topic. Every integration
// sees every request and runs only those addressed to its provider id.
// Results are logged and counted; failed requests are not retried.
func Attach(b bus.Bus, exec Executor, logger logging.Logger, recorder metrics.Recorder) (bus.Subscription, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if recorder == nil {
		recorder = metrics.Noop()
	}

	id := exec.ProviderID()
	log := logger.WithFields(logging.String("provider", id))

	return b.Subscribe(bus.TopicExecuteAction, func(ctx context.Context, msg bus.Message) {
		req, ok := requestFrom(msg.Payload)
		if !ok {
			log.Warn("Ignoring malformed execute-action payload")
			return
		}
		if req.ProviderID != id {
			return
		}

		ctx = logging.ContextWithRequestID(ctx, req.RequestID)
		result := exec.ExecuteRequest(ctx, req)
		recorder.ExecutionResult(id, result.Success)
		report(log.WithContext(ctx), req, result)
	})
}

func requestFrom(payload interface{}) (models.InternalRequest, bool) {
	switch v := payload.(type) {
	case models.InternalRequest:
		return v, true
	case *models.InternalRequest:
		if v == nil {
			return models.InternalRequest{}, false
		}
		return *v, true
	default:
		return models.InternalRequest{}, false
	}
}

func report(log logging.Logger, req models.InternalRequest, result models.Result) {
	fields := []logging.Field{
		logging.String("category_id", req.ProviderKey.CategoryID),
		logging.String("caller", string(req.Caller)),
	}

	switch {
	case result.Success:
		log.Debug("Request executed", append(fields, logging.String("message", result.Message))...)
	case result.Severity == models.SeverityInfo:
		log.Info(result.Message, fields...)
	default:
		log.Error(result.Message, nil, fields...)
	}
}
