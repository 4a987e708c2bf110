package routing_test

import (
	"bytes"
	"io"
	"net/http"

	"github.com/UnknownOlympus/hermes/internal/models"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(body))}
}

func staticClient(status int, body string) *mockHTTPClient {
	return &mockHTTPClient{doFunc: func(_ *http.Request) (*http.Response, error) {
		return jsonResponse(status, body), nil
	}}
}

var (
	origin      = models.Coordinates{Latitude: 28.1, Longitude: 112.9}
	destination = models.Coordinates{Latitude: 28.2, Longitude: 113.0}
)
