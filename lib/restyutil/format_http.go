package restyutil

import (
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

const noBody = "<NO BODY AVAILABLE>"

func formatHeaders(headers http.Header) string {
	var lines []string
	for _, key := range slices.Sorted(maps.Keys(headers)) {
		for _, value := range headers[key] {
			lines = append(lines, key+": "+value)
		}
	}
	return strings.Join(lines, "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return noBody
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<FAILED TO GET BODY: %s>", err.Error())
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<FAILED TO READ BODY: %s>", err.Error())
	}
	return string(contents)
}

func writeSection(b *strings.Builder, title, startLine, headers, body string) {
	fmt.Fprintf(b, "---- %s ----\n\n%s\n\n%s\n\n%s", title, startLine, headers, body)
}

// formatHttpMessage dumps a request and its response in a plain text form
// that reads like the messages on the wire.
func formatHttpMessage(res *resty.Response) string {
	var requestHeaders string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
	}

	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		location, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = location.String()
		}
	}

	b := &strings.Builder{}
	writeSection(
		b, "REQUEST",
		res.Request.Method+" "+res.Request.URL,
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),
	)
	b.WriteString("\n\n")
	writeSection(
		b, "RESPONSE",
		fmt.Sprintf("%d %s (%s)", res.StatusCode(), responseUrl, res.Time()),
		formatHeaders(res.Header()),
		res.String(),
	)
	return b.String()
}
