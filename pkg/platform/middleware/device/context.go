// Package device classifies the calling client from its User-Agent.
package device

import (
	"context"
	"net/http"

	"github.com/mssola/useragent"
)

// Info is the coarse client classification attached to each request.
type Info struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

type contextKeyInfo struct{}

// Middleware parses the User-Agent once per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithInfo(r.Context(), Parse(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Parse classifies a raw User-Agent. An empty header yields "unknown".
func Parse(raw string) Info {
	if raw == "" {
		return Info{Browser: "unknown", OS: "unknown"}
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	info := Info{
		Browser: name,
		OS:      ua.OSInfo().Name,
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
	if info.Browser == "" {
		info.Browser = "unknown"
	}
	if info.OS == "" {
		info.OS = "unknown"
	}
	return info
}

// FromContext returns the classification, or the zero Info outside a request.
func FromContext(ctx context.Context) Info {
	info, _ := ctx.Value(contextKeyInfo{}).(Info)
	return info
}

// WithInfo injects a classification; service tests use it directly.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, contextKeyInfo{}, info)
}
