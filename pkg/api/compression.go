package api

import (
	"bytes"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// bufferedWriter holds the response body until the handler chain returns.
type bufferedWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bufferedWriter) Write(p []byte) (int, error) { return w.body.Write(p) }

func (w *bufferedWriter) WriteString(s string) (int, error) { return w.body.WriteString(s) }

// Compression encodes JSON bodies of at least minSize bytes with brotli or
// gzip, whichever the client prefers. Brotli wins ties.
func Compression(minSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		encoding := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if encoding == "" || c.Request.Method == "HEAD" {
			c.Next()
			return
		}

		original := c.Writer
		buffered := &bufferedWriter{ResponseWriter: original}
		c.Writer = buffered
		defer func() { c.Writer = original }()

		c.Next()

		c.Writer = original
		body := buffered.body.Bytes()
		header := original.Header()
		header.Add("Vary", "Accept-Encoding")
		if len(body) == 0 {
			return
		}
		if len(body) < minSize || header.Get("Content-Encoding") != "" ||
			!strings.HasPrefix(header.Get("Content-Type"), "application/json") {
			_, _ = original.Write(body)
			return
		}

		header.Del("Content-Length")
		header.Set("Content-Encoding", encoding)
		var enc io.WriteCloser
		if encoding == encodingBrotli {
			enc = brotli.NewWriterLevel(original, brotli.DefaultCompression)
		} else {
			enc = gzip.NewWriter(original)
		}
		_, _ = enc.Write(body)
		_ = enc.Close()
	}
}

// negotiateEncoding picks br or gzip from an Accept-Encoding header, honoring q-values.
func negotiateEncoding(accept string) string {
	best, bestQ := "", 0.0
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name != encodingBrotli && name != encodingGzip {
			continue
		}
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			q = parsed
		}
		if q <= 0 {
			continue
		}
		if q > bestQ || (q == bestQ && name == encodingBrotli) {
			best, bestQ = name, q
		}
	}
	return best
}
