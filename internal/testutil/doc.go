// Package testutil contains builders and fixtures shared by tests: stored
// session events, seeded stores and a sample travel plan. Not intended for
// production usage.
package testutil
