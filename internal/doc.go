// Package internal holds helpers private to socialn: session identifiers and
// the opaque refresh-token format.
//
// Sub-packages:
//
//   - audit: async audit event dispatch
//   - flows: orchestration for register, login, refresh and logout
//   - httpapi: REST handlers and router
//   - rate: Redis fixed-window counters for login and refresh
//   - security: configuration posture report
//   - config, logging, cli: application wiring for cmd/socialn
package internal
