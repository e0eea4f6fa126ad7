package middleware

import (
	"context"
	"net/http"

	"github.com/mssola/useragent"
)

// DeviceInfo summarizes the submitting client, for the request log only.
// Nothing here is persisted.
type DeviceInfo struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

type contextKeyDevice struct{}

// GetDevice retrieves the parsed device info from the context.
func GetDevice(ctx context.Context) DeviceInfo {
	if info, ok := ctx.Value(contextKeyDevice{}).(DeviceInfo); ok {
		return info
	}
	return DeviceInfo{}
}

// Device parses the User-Agent header into the request context.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := useragent.New(r.UserAgent())
		browser, _ := ua.Browser()
		info := DeviceInfo{
			Browser: browser,
			OS:      ua.OS(),
			Mobile:  ua.Mobile(),
			Bot:     ua.Bot(),
		}
		ctx := context.WithValue(r.Context(), contextKeyDevice{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
