package logging

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("connection reset"), false},
		{"status text", errors.New("HTTP 429 Too Many Requests"), true},
		{"rate_limit code", errors.New("error: rate_limit exceeded"), true},
		{"wrapped rest error", fmt.Errorf("send: %w", &discordgo.RESTError{
			Response:     &http.Response{StatusCode: http.StatusTooManyRequests, Status: "too many"},
			ResponseBody: []byte("{}"),
		}), true},
		{"rest error other status", &discordgo.RESTError{
			Response:     &http.Response{StatusCode: http.StatusForbidden, Status: "forbidden"},
			ResponseBody: []byte("{}"),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimit(tt.err))
		})
	}
}
