package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

type BrotliConfig struct {
	Quality   int
	Skipper   func(c *gin.Context) bool
	MinLength int
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
	Skipper:   nil,
}

// brotliWriter holds the whole body so the encoding decision can be made
// once the handler is done.
type brotliWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	return bw.buf.Write(data)
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.buf.WriteString(s)
}

func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < 0 || cfg.Quality > 11 {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if shouldSkip(c) || (cfg.Skipper != nil && cfg.Skipper(c)) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		original := c.Writer
		bw := &brotliWriter{ResponseWriter: original}
		c.Writer = bw
		defer func() {
			c.Writer = original
			if err := finish(original, bw.buf.Bytes(), cfg); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

func finish(w gin.ResponseWriter, body []byte, cfg BrotliConfig) error {
	if len(body) < cfg.MinLength || w.Header().Get("Content-Encoding") != "" {
		if len(body) == 0 {
			w.WriteHeaderNow()
			return nil
		}
		_, err := w.Write(body)
		return err
	}

	var out bytes.Buffer
	enc := brotli.NewWriterLevel(&out, cfg.Quality)
	if _, err := enc.Write(body); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	w.Header().Set("Content-Encoding", "br")
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	_, err := w.Write(out.Bytes())
	return err
}

// shouldSkip returns true for protocols that are incompatible with
// buffered compression and must be passed through untouched.
func shouldSkip(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	// The Upgrade handshake fails if the response is wrapped.
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}
	return false
}

func acceptsBrotli(r *http.Request) bool {
	ae := r.Header.Get("Accept-Encoding")
	for _, enc := range strings.Split(ae, ",") {
		enc = strings.TrimSpace(strings.ToLower(enc))
		if enc == "br" || strings.HasPrefix(enc, "br;") {
			return true
		}
	}
	return false
}
