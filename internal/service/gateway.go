package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "generic-avatar/gateway"

// AvatarGatewayImpl implements domain.AvatarGateway.
//
// It is the only caller of the avatar manager and narrows every failure to
// domain.ErrNotFound (reads) or domain.ErrNotSquare / domain.ErrInternal
// (writes). Read failures degrade to absence; write failures never look
// like success.
type AvatarGatewayImpl struct {
	manager    domain.AvatarManager
	logger     *slog.Logger
	tracer     trace.Tracer
	operations metric.Int64Counter
}

// NewAvatarGateway creates a new avatar gateway
func NewAvatarGateway(manager domain.AvatarManager, logger *slog.Logger) *AvatarGatewayImpl {
	if logger == nil {
		logger = slog.Default()
	}

	operations, err := otel.Meter(instrumentationName).Int64Counter(
		"avatar.operations",
		metric.WithDescription("Generic avatar operations by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create avatar.operations counter", "error", err)
	}

	return &AvatarGatewayImpl{
		manager:    manager,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		operations: operations,
	}
}

// Fetch returns the rendition of key at the normalized size
func (g *AvatarGatewayImpl) Fetch(ctx context.Context, key domain.AvatarKey, size int) (*domain.FetchResult, error) {
	size = domain.NormalizeSize(size)
	ctx, span := g.start(ctx, "avatar.fetch", key, attribute.Int("avatar.size", size))
	defer span.End()

	var result *domain.FetchResult
	err := guard(func() error {
		avatar, err := g.manager.GetGenericAvatar(ctx, key.Type, key.ID)
		if err != nil {
			return err
		}
		image, err := avatar.GetFile(ctx, size)
		if err != nil {
			return err
		}
		if image == nil || len(image.Data) == 0 {
			return errors.New("avatar manager returned no image")
		}
		result = &domain.FetchResult{Image: image, IsCustom: avatar.IsCustomAvatar()}
		return nil
	})
	if err != nil {
		g.logger.DebugContext(ctx, "avatar fetch failed", "avatar", key.String(), "size", size, "error", err)
		return nil, g.finish(ctx, span, "fetch", err, domain.ErrNotFound)
	}

	span.SetAttributes(attribute.Bool("avatar.custom", result.IsCustom))
	return result, g.finish(ctx, span, "fetch", nil, nil)
}

// Replace sets upload as the new source image of key
func (g *AvatarGatewayImpl) Replace(ctx context.Context, key domain.AvatarKey, upload *domain.ValidatedUpload) error {
	ctx, span := g.start(ctx, "avatar.replace", key)
	defer span.End()

	err := guard(func() error {
		if upload == nil {
			return errors.New("nil upload")
		}
		avatar, err := g.manager.GetGenericAvatar(ctx, key.Type, key.ID)
		if err != nil {
			return err
		}
		return avatar.Set(ctx, upload.Data)
	})
	switch {
	case err == nil:
		return g.finish(ctx, span, "replace", nil, nil)
	case errors.Is(err, domain.ErrNotSquare):
		return g.finish(ctx, span, "replace", err, domain.ErrNotSquare)
	default:
		g.logger.ErrorContext(ctx, "avatar replace failed", "avatar", key.String(), "error", err)
		return g.finish(ctx, span, "replace", err, domain.ErrInternal)
	}
}

// Delete removes the custom image of key
func (g *AvatarGatewayImpl) Delete(ctx context.Context, key domain.AvatarKey) error {
	ctx, span := g.start(ctx, "avatar.delete", key)
	defer span.End()

	err := guard(func() error {
		avatar, err := g.manager.GetGenericAvatar(ctx, key.Type, key.ID)
		if err != nil {
			return err
		}
		return avatar.Remove(ctx)
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "avatar delete failed", "avatar", key.String(), "error", err)
		return g.finish(ctx, span, "delete", err, domain.ErrInternal)
	}
	return g.finish(ctx, span, "delete", nil, nil)
}

func (g *AvatarGatewayImpl) start(ctx context.Context, name string, key domain.AvatarKey, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("avatar.type", key.Type),
		attribute.String("avatar.id", key.ID),
	)
	return g.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish records the outcome and returns the narrowed error
func (g *AvatarGatewayImpl) finish(ctx context.Context, span trace.Span, op string, cause, narrowed error) error {
	outcome := "success"
	if narrowed != nil {
		outcome = outcomeName(narrowed)
		span.RecordError(cause)
		span.SetStatus(codes.Error, outcome)
	}
	if g.operations != nil {
		g.operations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
	}
	return narrowed
}

func outcomeName(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNotSquare):
		return "not_square"
	default:
		return "internal"
	}
}

// guard turns a panic inside the collaborator into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("avatar manager panic: %v", r)
		}
	}()
	return fn()
}
