// Package auth provides authentication middleware for the teamalert status
// server.
//
// APIKey(mode, header, key) wraps an http.Handler so that every request must
// carry key in the named header. When mode != "apikey" or key == "", all
// requests pass through (local use with auth disabled). A missing or wrong
// key is answered with 401 before the wrapped handler runs.
package auth
