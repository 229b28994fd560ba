// Package urlcodec decodes the base64 + percent-encoded media URLs that
// clients pass in the url query parameter.
package urlcodec

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
)

// encodings are tried in order. Query strings turn '+' into ' ' and some
// clients send the URL-safe alphabet or drop padding, so all four are accepted.
// Strict mode rejects non-zero trailing bits, which is how a truncated
// unpadded token shows up.
var encodings = []*base64.Encoding{
	base64.StdEncoding.Strict(),
	base64.RawStdEncoding.Strict(),
	base64.URLEncoding.Strict(),
	base64.RawURLEncoding.Strict(),
}

// Decode turns token into an absolute http(s) URL.
//
// The token is base64-decoded first and the result is then percent-decoded.
// Errors wrap model.ErrMissingParameter, model.ErrInvalidEncoding or model.ErrInvalidURL.
func Decode(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", model.ErrMissingParameter
	}

	raw, err := decodeBase64(strings.ReplaceAll(token, " ", "+"))
	if err != nil {
		return "", err
	}

	decoded := unescape(string(raw))

	if err := validate(decoded); err != nil {
		return "", err
	}
	return decoded, nil
}

// Encode is the inverse of Decode. Clients and tests use it to build tokens.
func Encode(rawURL string) string {
	return base64.StdEncoding.EncodeToString([]byte(url.PathEscape(rawURL)))
}

func decodeBase64(token string) ([]byte, error) {
	var firstErr error
	for _, enc := range encodings {
		out, err := enc.DecodeString(token)
		if err == nil {
			if !utf8.Valid(out) {
				return nil, fmt.Errorf("%w: decoded value is not valid UTF-8", model.ErrInvalidEncoding)
			}
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", model.ErrInvalidEncoding, firstErr)
}

// unescape percent-decodes every well-formed %XX in s and keeps malformed
// escapes as they are. Invalid UTF-8 produced by decoding becomes U+FFFD.
func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

// escapeStrayPercents rewrites every '%' that does not start a valid escape
// as %25 so url.Parse accepts what unescape kept verbatim.
func escapeStrayPercents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

func validate(s string) error {
	u, err := url.Parse(escapeStrayPercents(s))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return fmt.Errorf("%w: missing scheme", model.ErrInvalidURL)
	default:
		return fmt.Errorf("%w: unsupported scheme %q", model.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", model.ErrInvalidURL)
	}
	return nil
}
