// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversation histories with controlled
// timestamps and request ids. These helpers are intentionally minimal and
// avoid adding third-party dependencies. They are not intended for
// production usage.
package testutil
