// Package httpapi exposes the credential lifecycle over HTTP with a chi
// router:
//
//	POST /auth/login    identifier/password → access and renewal cookies
//	POST /auth/refresh  renewal cookie or {"refreshToken"} → rotated pair
//	POST /auth/logout   revokes every renewal credential of the principal
//	GET  /auth/me       email, username and role of the caller
//	GET  /healthz       store reachability
//	GET  /metrics       optional Prometheus exposition
//
// Store faults answer 503 and are never reported as credential rejections.
package httpapi
