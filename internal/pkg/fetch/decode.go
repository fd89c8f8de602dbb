package fetch

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 32 << 20

// readBodyDecode reads response body and decompresses it based on Content-Encoding (gzip, br, zstd).
func readBodyDecode(resp *http.Response) ([]byte, error) {
	body := io.LimitReader(resp.Body, maxBodySize)
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch {
	case enc == "br" || strings.Contains(enc, "br"):
		r := brotli.NewReader(body)
		return io.ReadAll(r)
	case enc == "zstd" || strings.Contains(enc, "zstd"):
		r, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case enc == "gzip" || strings.Contains(enc, "gzip"):
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read gzip body: %w", err)
		}
		return b, nil
	default:
		return io.ReadAll(body)
	}
}

// sniffKind decides whether a body is JSON or HTML. Anything else is an error.
func sniffKind(body []byte, contentType string) (Kind, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return "", ErrEmptyBody
	}

	ct := strings.ToLower(contentType)
	if (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return KindJSON, nil
	}
	if strings.Contains(ct, "json") && json.Valid(trimmed) {
		return KindJSON, nil
	}
	if trimmed[0] == '<' || strings.Contains(ct, "html") {
		return KindHTML, nil
	}
	head := strings.ToLower(string(trimmed[:min(len(trimmed), 2048)]))
	if strings.Contains(head, "<html") || strings.Contains(head, "<table") || strings.Contains(head, "<body") {
		return KindHTML, nil
	}
	return "", ErrUnexpectedBody
}

// preview truncates a body for logging.
func preview(body []byte, n int) string {
	s := string(body)
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}
