package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Types the app's assets use that are missing from Go's built-in table.
var extraContentTypes = map[string]string{ //nolint:gochecknoglobals
	".mp3":         "audio/mpeg",
	".webmanifest": "application/manifest+json",
}

// DirTransport is an http.RoundTripper that answers GET and HEAD requests from the files in a
// directory, ignoring the scheme and host of the request URL.
//
// A request for a directory is answered with its index.html. Paths are resolved with securejoin, so
// that neither ".." elements nor symbolic links can reach anything outside the root.
type DirTransport struct {
	root string
}

// NewDirTransport creates a DirTransport for the given directory, which must exist.
func NewDirTransport(root string) (*DirTransport, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errBadOriginDir(root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errBadOriginDir(root, err)
	}
	if !info.IsDir() {
		return nil, errBadOriginDir(root, errors.New("not a directory"))
	}
	return &DirTransport{root: abs}, nil
}

// RoundTrip implements http.RoundTripper.
func (d *DirTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		resp := makeResponse(req, http.StatusMethodNotAllowed, "text/plain; charset=utf-8",
			[]byte(http.StatusText(http.StatusMethodNotAllowed)))
		resp.Header.Set("Allow", "GET, HEAD")
		return resp, nil
	}

	filePath, err := securejoin.SecureJoin(d.root, path.Clean("/"+req.URL.Path))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if err == nil && info.IsDir() {
		filePath = filepath.Join(filePath, "index.html")
		info, err = os.Stat(filePath)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return makeResponse(req, http.StatusNotFound, "text/plain; charset=utf-8",
				[]byte(http.StatusText(http.StatusNotFound))), nil
		}
		return nil, err
	}

	data, err := os.ReadFile(filePath) //nolint:gosec
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	contentType := extraContentTypes[ext]
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	resp := makeResponse(req, http.StatusOK, contentType, data)
	resp.Header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	return resp, nil
}

func makeResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	contentLength := int64(len(body))
	if req.Method == http.MethodHead {
		body = nil
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: contentLength,
		Request:       req,
	}
}
