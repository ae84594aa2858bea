package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var errInflatedTooLarge = errors.New("decompressed body exceeds limit")

// GzipRequestMiddleware decompresses gzip-encoded request bodies so handlers
// read plain payloads. Decompression is bounded by limit: gesture bodies and
// drop payloads are small, so a body inflating past the largest payload cap
// reads as an error instead of expanding without bound. Requests with
// invalid gzip payloads are rejected with a 400 response.
func GzipRequestMiddleware(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}

			body := req.Body
			gr, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}

			req.Body = &boundedGzipBody{gr: gr, body: body, limit: limit}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)

			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	if header == "" {
		return false
	}
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

// boundedGzipBody inflates at most limit bytes before reads start failing.
type boundedGzipBody struct {
	gr    *gzip.Reader
	body  io.Closer
	limit int64
	read  int64
}

func (b *boundedGzipBody) Read(p []byte) (int, error) {
	n, err := b.gr.Read(p)
	b.read += int64(n)
	if b.read > b.limit {
		return n, errInflatedTooLarge
	}
	return n, err
}

func (b *boundedGzipBody) Close() error {
	err := b.gr.Close()
	if b.body != nil {
		if cerr := b.body.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
