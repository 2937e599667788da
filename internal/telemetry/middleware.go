package telemetry

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "generic-avatar-api"

// HeaderTraceID exposes the trace id to clients for support requests
const HeaderTraceID = "X-Trace-ID"

// FiberMiddleware returns a Fiber middleware that traces HTTP requests.
// Spans are named after the matched route so avatar ids do not explode cardinality.
func FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// looked up per request so a provider installed after startup is honoured
		tracer := otel.Tracer(tracerName)
		propagator := otel.GetTextMapPropagator()

		headers := propagation.MapCarrier{}
		c.Request().Header.VisitAll(func(key, value []byte) {
			headers.Set(string(key), string(value))
		})
		ctx := propagator.Extract(c.UserContext(), headers)

		ctx, span := tracer.Start(ctx, c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.host", c.Hostname()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
				attribute.String("http.client_ip", c.IP()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)

		if span.SpanContext().HasTraceID() {
			c.Set(HeaderTraceID, span.SpanContext().TraceID().String())
		}

		err := c.Next()

		// the route is only known after routing
		route := c.Route().Path
		span.SetName(fmt.Sprintf("%s %s", c.Method(), route))

		statusCode := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", statusCode),
			attribute.Int("http.response_content_length", len(c.Response().Body())),
		)

		if statusCode >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return err
	}
}
