package restyutil

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// InstrumentOutput receives one formatted request/response pair per call.
type InstrumentOutput interface {
	Write(id string, contents string)
}

type dumpIdKey struct{}

type dumper struct {
	output InstrumentOutput
	next   *atomic.Uint64
}

// InstrumentClient dumps every exchange of client to output while the
// default logger has debug enabled. A nil output leaves client untouched.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}
	d := dumper{output: output, next: &atomic.Uint64{}}
	client.OnBeforeRequest(d.assignId)
	client.OnAfterResponse(d.dump)
	client.OnError(d.logFailure)
}

func dumpId(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(dumpIdKey{}).(string)
	return id, ok
}

func (d dumper) assignId(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return nil
	}
	id := strconv.FormatUint(d.next.Add(1), 10)
	req.SetContext(context.WithValue(ctx, dumpIdKey{}, id))
	return nil
}

func (d dumper) dump(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	id, ok := dumpId(ctx)
	if !ok {
		return nil
	}
	d.output.Write(id, formatHttpMessage(res))
	slog.DebugContext(
		ctx, "portal exchange",
		"dump", id,
		"method", res.Request.Method,
		"url", res.Request.URL,
		"status", res.StatusCode(),
		"bytes", len(res.Body()),
		"took", res.Time(),
	)
	return nil
}

func (d dumper) logFailure(req *resty.Request, err error) {
	id, _ := dumpId(req.Context())
	slog.ErrorContext(
		req.Context(), "portal request failed",
		"dump", id,
		"method", req.Method,
		"url", req.URL,
		"err", err,
	)
}
