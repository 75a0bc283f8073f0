package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"palmstat-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentResty wraps every request of client in a client span.
func InstrumentResty(client *resty.Client, tracerName string) {
	instrumentResty(client, otel.Tracer(tracerName))
}

func instrumentResty(client *resty.Client, tracer trace.Tracer) {
	t := restyTracer{tracer: tracer}
	client.OnBeforeRequest(t.start)
	client.OnAfterResponse(t.finish)
	client.OnError(t.fail)
}

type restyTracer struct {
	tracer trace.Tracer
}

func spanName(method, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "http " + method
	}
	return fmt.Sprintf("http %s %s", method, u.Path)
}

func headerAttrs(prefix string, headers http.Header) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(headers))
	for name, values := range headers {
		key := attribute.Key(fmt.Sprintf("http.%s.header.%s", prefix, strings.ToLower(name)))
		if restyutil.SensitiveHeader(name) {
			attrs = append(attrs, key.String("<redacted>"))
			continue
		}
		attrs = append(attrs, key.StringSlice(values))
	}
	return attrs
}

// requestAttrs is only usable once resty has built the raw request.
func requestAttrs(req *http.Request) []attribute.KeyValue {
	if req == nil {
		return nil
	}
	attrs := httpconv.ClientRequest(req)
	if req.GetBody == nil {
		return attrs
	}
	body, err := req.GetBody()
	if err != nil {
		return append(attrs, attribute.String("http.request.body", "unreadable: "+err.Error()))
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return append(attrs, attribute.String("http.request.body", "unreadable: "+err.Error()))
	}
	return append(attrs, attribute.String("http.request.body", restyutil.RedactForm(string(raw))))
}

func (t restyTracer) start(_ *resty.Client, req *resty.Request) error {
	ctx, _ := t.tracer.Start(
		req.Context(),
		spanName(req.Method, req.URL),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	req.SetContext(ctx)
	return nil
}

func (t restyTracer) finish(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	span.SetAttributes(requestAttrs(res.Request.RawRequest)...)
	if res.RawResponse != nil {
		span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	}
	span.SetAttributes(headerAttrs("request", res.Request.Header)...)
	span.SetAttributes(headerAttrs("response", res.Header())...)
	span.SetAttributes(attribute.Int("http.response.body.size", len(res.Body())))

	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}
	return nil
}

func (t restyTracer) fail(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(headerAttrs("request", req.Header)...)
	span.SetAttributes(requestAttrs(req.RawRequest)...)
}
