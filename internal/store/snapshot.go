package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
)

// Snapshot is a captured copy of an HTTP response: status, headers, and the complete body.
type Snapshot struct {
	Status int
	Header http.Header
	Body   []byte
}

// Headers that describe a single connection rather than the response, and so are never stored.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SnapshotFromResponse reads the entire body of resp and returns a Snapshot of it. The response body is
// replaced with an equivalent unread reader, so the caller can still return resp to its own caller.
func SnapshotFromResponse(resp *http.Response) (Snapshot, error) {
	var body []byte
	if resp.Body != nil {
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			resp.Body = io.NopCloser(bytes.NewReader(data))
			return Snapshot{}, errReadingResponseBody(err)
		}
		body = data
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	for _, h := range hopByHopHeaders {
		header.Del(h)
	}
	return Snapshot{Status: resp.StatusCode, Header: header, Body: body}, nil
}

// Response builds a new response from the snapshot. Each call returns an independent body reader.
func (s Snapshot) Response(req *http.Request) *http.Response {
	header := s.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", s.Status, http.StatusText(s.Status)),
		StatusCode:    s.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}
}

// Encode serializes the snapshot in HTTP/1.1 wire format.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := httputil.DumpResponse(s.Response(nil), true)
	if err != nil {
		return nil, errEncodingSnapshot(err)
	}
	return data, nil
}

// DecodeSnapshot parses data produced by Snapshot.Encode.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return Snapshot{}, errDecodingSnapshot(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, errDecodingSnapshot(err)
	}
	resp.Header.Del("Content-Length")
	return Snapshot{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Key returns the identifier under which a response to req is stored: the request method and the
// absolute request URL, separated by a space. Two requests match only if both are identical.
func Key(req *http.Request) string {
	u := *req.URL
	if u.Host == "" {
		u.Host = req.Host
	}
	if u.Scheme == "" {
		if req.TLS != nil {
			u.Scheme = "https"
		} else {
			u.Scheme = "http"
		}
	}
	u.Fragment = ""
	return req.Method + " " + u.String()
}
