package testutil

import (
	"net/http"

	id "crowdfund/pkg/domain"
	"crowdfund/pkg/requestcontext"
)

// WithUser attaches an authenticated user to the request, the way the auth
// middleware would.
func WithUser(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithAdmin marks the request as carrying a valid admin token.
func WithAdmin(req *http.Request) *http.Request {
	return req.WithContext(requestcontext.WithAdmin(req.Context()))
}
