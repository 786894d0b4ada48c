// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing messages, conversations, tool calls
// and clocks. They are not intended for production usage.
package testutil
