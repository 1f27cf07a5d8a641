// Package testutil provides common test utilities for handler and
// integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest creates an HTTP request with a JSON body.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// DecodeJSON decodes a response body into out.
func DecodeJSON(t *testing.T, res *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(out))
}

// AssertErrorCode asserts the response carries the given error code in the
// standard envelope.
func AssertErrorCode(t *testing.T, res *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, res.Code)
	var body map[string]string
	DecodeJSON(t, res, &body)
	assert.Equal(t, code, body["error"])
}
