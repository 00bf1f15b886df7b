// Package testutil provides shared test helpers for wolgate packages: a
// logger, an event bus that records, SQLite stores, a manual clock, and
// scripted stand-ins for the network (ARP scanner, ICMP checker, magic
// packet sender).
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Logger returns a development logger writing to stderr.
func Logger() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic("testutil.Logger: " + err.Error())
	}
	return l
}

// TestLogger returns a logger that writes through t.Log, so output is shown
// only for failing tests.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
}
