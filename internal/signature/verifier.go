// Package signature verifies HMAC signatures on inbound webhook requests.
// The signed input is the raw body, optionally prefixed by a timestamp
// header value and a dot ("<timestamp>.<body>").
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
)

// Config describes where the signature lives and how it is computed.
type Config struct {
	Secret string `json:"-"`
	// Header holding the signature (default X-Signature)
	Header string `json:"header"`
	// Prefix stripped from the header value, e.g. "sha256="
	Prefix string `json:"prefix"`
	// Algorithm is hmac-sha1, hmac-sha256 (default) or hmac-sha512
	Algorithm string `json:"algorithm"`
	// Encoding is hex (default) or base64
	Encoding string `json:"encoding"`
	// TimestampHeader, when set, carries unix seconds that are signed
	// along with the body and must be within Tolerance of now.
	TimestampHeader string        `json:"timestamp_header,omitempty"`
	Tolerance       time.Duration `json:"tolerance,omitempty"`
}

func (c *Config) setDefaults() {
	if c.Header == "" {
		c.Header = "X-Signature"
	}
	if c.Algorithm == "" {
		c.Algorithm = "hmac-sha256"
	}
	if c.Encoding == "" {
		c.Encoding = "hex"
	}
	if c.TimestampHeader != "" && c.Tolerance <= 0 {
		c.Tolerance = 5 * time.Minute
	}
}

// Validate checks the configuration after filling defaults.
func (c *Config) Validate() error {
	c.setDefaults()
	if c.Secret == "" {
		return errors.ConfigError("signature secret is required")
	}
	if _, err := newHash(c.Algorithm, nil); err != nil {
		return err
	}
	switch c.Encoding {
	case "hex", "base64":
	default:
		return errors.ConfigError("unsupported encoding: " + c.Encoding)
	}
	return nil
}

// Verifier handles webhook signature verification
type Verifier struct {
	config Config
	now    func() time.Time
	logger logging.Logger
}

// NewVerifier creates a new signature verifier
func NewVerifier(config Config, logger logging.Logger) (*Verifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Verifier{config: config, now: time.Now, logger: logger}, nil
}

// Sign computes the header value for body. Tests and clients use it to
// produce requests the verifier accepts.
func (v *Verifier) Sign(body []byte, timestamp string) string {
	sig, _ := v.compute(v.input(body, timestamp))
	return v.config.Prefix + sig
}

// Verify checks the signature of r against body.
func (v *Verifier) Verify(r *http.Request, body []byte) error {
	headerValue := r.Header.Get(v.config.Header)
	if headerValue == "" {
		return errors.AuthError("missing signature header " + v.config.Header)
	}
	if v.config.Prefix != "" {
		if !strings.HasPrefix(headerValue, v.config.Prefix) {
			return errors.AuthError("malformed signature header " + v.config.Header)
		}
		headerValue = strings.TrimPrefix(headerValue, v.config.Prefix)
	}

	var timestamp string
	if v.config.TimestampHeader != "" {
		timestamp = r.Header.Get(v.config.TimestampHeader)
		if err := v.checkTimestamp(timestamp); err != nil {
			return err
		}
	}

	expected, err := v.compute(v.input(body, timestamp))
	if err != nil {
		return err
	}

	// constant time
	if !hmac.Equal([]byte(headerValue), []byte(expected)) {
		return errors.AuthError("signature mismatch")
	}
	return nil
}

// Middleware rejects requests that fail verification with 401. The body
// is restored for the next handler.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := PreserveRequestBody(r)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if err := v.Verify(r, body); err != nil {
			v.logger.WithContext(r.Context()).Warn("Signature verification failed",
				logging.String("path", r.URL.Path),
				logging.Err(err),
			)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Verifier) input(body []byte, timestamp string) []byte {
	if timestamp == "" {
		return body
	}
	return append([]byte(timestamp+"."), body...)
}

func (v *Verifier) compute(data []byte) (string, error) {
	h, err := newHash(v.config.Algorithm, []byte(v.config.Secret))
	if err != nil {
		return "", err
	}
	h.Write(data)
	sum := h.Sum(nil)

	if v.config.Encoding == "base64" {
		return base64.StdEncoding.EncodeToString(sum), nil
	}
	return hex.EncodeToString(sum), nil
}

func (v *Verifier) checkTimestamp(value string) error {
	if value == "" {
		return errors.AuthError("missing timestamp header " + v.config.TimestampHeader)
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return errors.AuthError("invalid unix timestamp")
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.config.Tolerance {
		return errors.AuthError("timestamp outside tolerance")
	}
	return nil
}

func newHash(algorithm string, secret []byte) (hash.Hash, error) {
	switch algorithm {
	case "hmac-sha1":
		return hmac.New(sha1.New, secret), nil
	case "hmac-sha256":
		return hmac.New(sha256.New, secret), nil
	case "hmac-sha512":
		return hmac.New(sha512.New, secret), nil
	default:
		return nil, errors.ConfigError("unsupported algorithm: " + algorithm)
	}
}

// PreserveRequestBody reads and preserves the request body for signature verification
func PreserveRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	// Replace the body with a new reader
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
