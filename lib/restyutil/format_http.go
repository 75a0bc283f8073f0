package restyutil

import (
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// form fields that are never written out
var redactedFields = []string{"password", "passwd"}

// RedactForm masks credential fields of an urlencoded body, any other body
// is returned unchanged.
func RedactForm(body string) string {
	form, err := url.ParseQuery(body)
	if err != nil || len(form) == 0 {
		return body
	}
	redacted := false
	for _, field := range redactedFields {
		if form.Has(field) {
			form.Set(field, "<redacted>")
			redacted = true
		}
	}
	if !redacted {
		return body
	}
	return form.Encode()
}

// SensitiveHeader reports whether a header carries the portal session or
// credentials and must be masked wherever it is written out.
func SensitiveHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Cookie", "Set-Cookie", "Authorization":
		return true
	}
	return false
}

// formatHeaders writes one "Key: Value" line per value, sorted by key.
func formatHeaders(headers http.Header) string {
	keys := slices.Sorted(maps.Keys(headers))
	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			if SensitiveHeader(k) {
				v = "<redacted>"
			}
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			fmt.Fprintf(&out, "%s: %s", k, v)
		}
	}
	return out.String()
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return "unreadable body: " + err.Error()
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return "unreadable body: " + err.Error()
	}
	return RedactForm(string(raw))
}

func writeSection(out *strings.Builder, title, startLine, headers, body string) {
	fmt.Fprintf(out, "---- %s ----\n\n%s\n", title, startLine)
	if headers != "" {
		out.WriteString(headers)
		out.WriteByte('\n')
	}
	out.WriteByte('\n')
	out.WriteString(body)
}

// formatHttpMessage renders an exchange roughly as it went over the wire,
// the response start line carries the redirect target when there was one.
func formatHttpMessage(res *resty.Response) string {
	var requestHeaders string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
	}

	target := res.Request.URL
	if res.RawResponse != nil {
		if location, err := res.RawResponse.Location(); err == nil {
			target = location.String()
		}
	}

	var out strings.Builder
	writeSection(
		&out, "REQUEST",
		res.Request.Method+" "+res.Request.URL,
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),
	)
	out.WriteString("\n\n")
	writeSection(
		&out, "RESPONSE",
		strconv.Itoa(res.StatusCode())+" "+target,
		formatHeaders(res.Header()),
		res.String(),
	)
	return out.String()
}
