// Package testutil contains helper agents, payloads and tracing fixtures used
// across tests to reduce boilerplate when exercising the runtime. They are
// not intended for production usage.
package testutil
