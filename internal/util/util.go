package util

import (
	"fmt"
	"net/url"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// ErrorJSONMsg returns a JSON-encoded error message of the form {"message":"..."}.
func ErrorJSONMsg(msg string) []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("message").String(msg)
	obj.End()
	return w.Bytes()
}

// ErrorJSONMsgf returns a JSON-encoded error message using the printf formatter.
func ErrorJSONMsgf(fmtStr string, args ...interface{}) []byte {
	return ErrorJSONMsg(fmt.Sprintf(fmtStr, args...))
}

// RedactURL parses a URL string and replaces the password, if any, with xxxxx so the URL can be logged.
// Strings that are not valid URLs are returned unchanged.
func RedactURL(inputURL string) string {
	if parsed, err := url.Parse(inputURL); err == nil && parsed.User != nil {
		if _, hasPW := parsed.User.Password(); hasPW {
			return parsed.Redacted()
		}
	}
	return inputURL
}
