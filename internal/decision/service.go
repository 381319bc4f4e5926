package decision

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"keygate/internal/decision/metrics"
	dErrors "keygate/pkg/domain-errors"
)

var tracer = otel.Tracer("keygate/decision")

// Service exposes the decision procedure on two surfaces sharing one walk:
// Decide aborts with a categorical error on deny (the custodian contract -
// only a clean return releases a key), Check answers the same question as a
// boolean for read-only queries. Both go through decide, so the surfaces
// cannot diverge.
type Service struct {
	registry Registry
	cache    *Cache
	metrics  *metrics.Metrics
}

func NewService(registry Registry, cache *Cache, m *metrics.Metrics) *Service {
	return &Service{registry: registry, cache: cache, metrics: m}
}

// Decide resolves the key id and runs the walk. A nil return approves key
// release; any error denies.
func (s *Service) Decide(ctx context.Context, req Request) error {
	_, err := s.decide(ctx, req)
	return err
}

// Check is the boolean surface for off-chain queries. Denials return
// (false, nil); only infrastructure failures surface as errors.
func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	_, err := s.decide(ctx, req)
	if err == nil {
		return true, nil
	}
	if dErrors.Is(err, dErrors.CodeInternal) {
		return false, err
	}
	return false, nil
}

func (s *Service) decide(ctx context.Context, req Request) (Match, error) {
	ctx, span := tracer.Start(ctx, "decision.decide", trace.WithAttributes(
		attribute.String("content_id", req.ContentID.String()),
	))
	defer span.End()
	start := time.Now()

	if req.ContentID.String() == "" {
		return "", dErrors.New(dErrors.CodeInvalidTimestamp, "content id cannot be empty")
	}

	if s.cache.Get(ctx, req) {
		s.metrics.ObserveCacheHit()
		s.metrics.ObserveDecision("approve", "cache", time.Since(start))
		return "cache", nil
	}

	match, err := evaluate(ctx, s.registry, req)
	if err != nil {
		span.SetAttributes(attribute.String("outcome", "deny"))
		s.metrics.ObserveDecision("deny", string(dErrors.CodeOf(err)), time.Since(start))
		return "", err
	}

	span.SetAttributes(
		attribute.String("outcome", "approve"),
		attribute.String("match", string(match)),
	)
	s.metrics.ObserveDecision("approve", string(match), time.Since(start))

	if match.identityBound() {
		s.cache.Put(ctx, req)
	}
	return match, nil
}
