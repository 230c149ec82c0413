// Package internal contains the implementation packages for roster.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - state: the typed, lock-disciplined shared-state store
//   - appstate: roster's slots (teacher, roster, counter, request count)
//     and the operations over them
//   - server: HTTP routes, error mapping and the websocket stats stream
//   - middleware: request logging, request counting, rate limiting and
//     lock deadlines
//   - views: templ components for the HTML pages
//   - config: Viper-backed configuration with validation and reload
//   - monitoring: Prometheus metrics and health checks
//   - logging: structured logging over log/slog
//   - errors: the AppError type shared by every package
//   - version: build and VCS information
//
// # State Ownership
//
// Every piece of mutable application state lives in one *state.Store built
// at start-up and handed to the server. Handlers never keep their own
// globals; they reach a slot through state.MustGet and access it inside a
// closure so locks cannot leak past the call.
//
// # Testing Strategy
//
//   - Unit tests with testify in every package
//   - Concurrency tests run under the race detector
//   - Property tests with gopter behind the "property" build tag
package internal
