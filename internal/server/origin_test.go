package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard allows any origin", []string{"*"}, "https://evil.example.com", true},
		{"wildcard allows missing origin", []string{"*"}, "", true},
		{"listed origin", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"case insensitive", []string{"http://LocalHost:3000"}, "HTTP://localhost:3000", true},
		{"path ignored", []string{"http://localhost:3000/app"}, "http://localhost:3000", true},
		{"unlisted origin", []string{"http://localhost:3000"}, "http://localhost:4000", false},
		{"missing origin", []string{"http://localhost:3000"}, "", false},
		{"malformed origin", []string{"http://localhost:3000"}, "localhost:3000", false},
		{"invalid config entries ignored", []string{"not-a-url", " "}, "http://localhost:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, newOriginPolicy(tt.allowed).checkOrigin(req))
		})
	}
}

func TestCORSOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, newOriginPolicy([]string{"*", "http://a.example"}).corsOrigins())
	assert.Equal(t, []string{"http://a.example"}, newOriginPolicy([]string{"http://A.example"}).corsOrigins())
}
