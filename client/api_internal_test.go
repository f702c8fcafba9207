package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIHasNoClientTimeout(t *testing.T) {
	api := NewAPI("")
	assert.Equal(t, DefaultBaseURL, api.baseURL)
	assert.Zero(t, api.http.Timeout)

	custom := &http.Client{}
	assert.Same(t, custom, NewAPI("http://x", WithHTTPClient(custom)).http)
}
