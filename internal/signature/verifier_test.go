package signature

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
)

func newVerifier(t *testing.T, config Config) *Verifier {
	t.Helper()
	v, err := NewVerifier(config, logging.NewNopLogger())
	require.NoError(t, err)
	return v
}

func signedRequest(body, header, value string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	if value != "" {
		r.Header.Set(header, value)
	}
	return r
}

func TestVerifier_Verify(t *testing.T) {
	body := []byte(`{"categoryId":"scenes"}`)

	tests := []struct {
		name   string
		config Config
	}{
		{"defaults", Config{Secret: "s3cret"}},
		{"prefixed sha1", Config{Secret: "s3cret", Header: "X-Hub-Signature", Prefix: "sha1=", Algorithm: "hmac-sha1"}},
		{"base64 sha512", Config{Secret: "s3cret", Algorithm: "hmac-sha512", Encoding: "base64"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVerifier(t, tt.config)
			header := v.config.Header

			assert.NoError(t, v.Verify(signedRequest(string(body), header, v.Sign(body, "")), body))

			err := v.Verify(signedRequest(string(body), header, v.Sign([]byte("tampered"), "")), body)
			assert.True(t, errors.IsType(err, errors.ErrTypeAuth))

			err = v.Verify(signedRequest(string(body), header, ""), body)
			assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
		})
	}
}

func TestVerifier_MissingPrefix(t *testing.T) {
	v := newVerifier(t, Config{Secret: "k", Prefix: "sha256="})
	body := []byte("x")
	sig := strings.TrimPrefix(v.Sign(body, ""), "sha256=")

	err := v.Verify(signedRequest("x", "X-Signature", sig), body)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
}

func TestVerifier_Timestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newVerifier(t, Config{Secret: "k", TimestampHeader: "X-Timestamp", Tolerance: time.Minute})
	v.now = func() time.Time { return now }
	body := []byte("payload")

	request := func(ts time.Time) *http.Request {
		stamp := strconv.FormatInt(ts.Unix(), 10)
		r := signedRequest("payload", "X-Signature", v.Sign(body, stamp))
		r.Header.Set("X-Timestamp", stamp)
		return r
	}

	assert.NoError(t, v.Verify(request(now.Add(-30*time.Second)), body))
	assert.Error(t, v.Verify(request(now.Add(-2*time.Minute)), body))
	assert.Error(t, v.Verify(request(now.Add(2*time.Minute)), body))

	r := signedRequest("payload", "X-Signature", v.Sign(body, ""))
	assert.Error(t, v.Verify(r, body), "timestamp header is required")
}

func TestConfig_Validate(t *testing.T) {
	_, err := NewVerifier(Config{}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = NewVerifier(Config{Secret: "k", Algorithm: "md5"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = NewVerifier(Config{Secret: "k", Encoding: "base32"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestVerifier_Middleware(t *testing.T) {
	v := newVerifier(t, Config{Secret: "k"})
	var seen string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		seen = string(raw)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest("hello", "X-Signature", v.Sign([]byte("hello"), "")))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "hello", seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest("hello", "X-Signature", "bogus"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
