// Package http exposes remote files fetched with HTTP range requests as
// vfs files, so archives can be browsed without downloading them whole.
package http

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
)

// DefaultBlockSize is the read-ahead granularity of file handles.
const DefaultBlockSize = 64 << 10

var (
	// ErrRangeUnsupported is returned when the server ignores Range headers.
	ErrRangeUnsupported = errors.New("http: range requests not supported")

	// ErrChanged is returned when the remote no longer matches the
	// validators seen at probe time. Indexes built from the old content
	// are stale.
	ErrChanged = errors.New("http: remote content changed")
)

// Source reads a remote file at arbitrary offsets. It satisfies
// io.ReaderAt.
type Source struct {
	url       string
	client    *nethttp.Client
	headers   nethttp.Header
	blockSize int
	meta      remoteMeta
	requests  int
}

// remoteMeta is what a probe learns about the remote.
type remoteMeta struct {
	size         int64
	etag         string
	lastModified string
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers != nil {
			s.headers = headers.Clone()
		}
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithBlockSize sets how many bytes a file handle fetches per request.
func WithBlockSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// NewSource probes url for its size and validators. The server must
// honour range requests.
func NewSource(url string, opts ...Option) (*Source, error) {
	s := &Source{url: url, blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	meta, err := s.probe()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}
	s.meta = meta
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 { return s.meta.size }

// URL returns the remote location.
func (s *Source) URL() string { return s.url }

// Requests returns the number of range requests issued by ReadAt.
func (s *Source) Requests() int { return s.requests }

// ReadAt fetches len(p) bytes at off with one range request. A read that
// reaches the end of the remote returns io.EOF with the bytes it got.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.meta.size {
		return 0, io.EOF
	}

	want := min(int64(len(p)), s.meta.size-off)
	s.requests++
	body, _, err := s.get(off, off+want-1)
	if err != nil {
		return 0, err
	}
	defer drain(body)

	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// probe learns the size from HEAD when the server answers it, and always
// confirms with a one-byte range request so servers without range
// support are rejected up front.
func (s *Source) probe() (remoteMeta, error) {
	var head remoteMeta
	if req, err := s.newRequest(nethttp.MethodHead); err == nil {
		if resp, err := s.client.Do(req); err == nil {
			head = remoteMeta{
				size:         resp.ContentLength,
				etag:         resp.Header.Get("ETag"),
				lastModified: resp.Header.Get("Last-Modified"),
			}
			_ = resp.Body.Close()
		}
	}

	body, resp, err := s.get(0, 0)
	if err != nil {
		return remoteMeta{}, err
	}
	drain(body)
	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return remoteMeta{}, err
	}
	if head.size > 0 && head.size != size {
		return remoteMeta{}, fmt.Errorf("content size mismatch: head=%d range=%d", head.size, size)
	}

	meta := remoteMeta{size: size, etag: head.etag, lastModified: head.lastModified}
	if meta.etag == "" {
		meta.etag = resp.Header.Get("ETag")
	}
	if meta.lastModified == "" {
		meta.lastModified = resp.Header.Get("Last-Modified")
	}
	return meta, nil
}

// get issues a range GET for [first, last] and returns the body of a 206
// response. The caller drains the body.
func (s *Source) get(first, last int64) (io.ReadCloser, *nethttp.Response, error) {
	req, err := s.newRequest(nethttp.MethodGet)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", first, last))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return resp.Body, resp, nil
	case nethttp.StatusRequestedRangeNotSatisfiable:
		err = io.EOF
	case nethttp.StatusOK:
		err = ErrRangeUnsupported
	case nethttp.StatusPreconditionFailed:
		err = ErrChanged
	default:
		err = fmt.Errorf("range request failed: %s", resp.Status)
	}
	drain(resp.Body)
	return nil, nil, err
}

func (s *Source) newRequest(method string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequest(method, s.url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if method != nethttp.MethodGet {
		return req, nil
	}
	if s.meta.etag != "" && req.Header.Get("If-Match") == "" {
		req.Header.Set("If-Match", s.meta.etag)
	}
	if s.meta.lastModified != "" && req.Header.Get("If-Unmodified-Since") == "" {
		req.Header.Set("If-Unmodified-Since", s.meta.lastModified)
	}
	return req, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// parseContentRange returns the complete length from a header of the form
// "bytes first-last/length".
func parseContentRange(value string) (int64, error) {
	rng, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rng, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
