// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Info, ErrorKV, etc.).
//
// Services accept a context and extract the logger from it, so every
// per-device task logs with its own serial attached.
package logger
