// Package telemetry forwards server-reported application errors to Sentry.
// Every function is a no-op until Init succeeds with a non-empty DSN.
package telemetry

import (
	"runtime"
	"sync/atomic"
	"time"

	gosentry "github.com/getsentry/sentry-go"
	"github.com/grovetools/mirror/pkg/models"
)

var enabled atomic.Bool

// Options configure the Sentry client.
type Options struct {
	DSN         string
	Version     string
	Environment string
	// BeforeSend may inspect or drop events before delivery.
	BeforeSend func(*gosentry.Event, *gosentry.EventHint) *gosentry.Event
}

// Init initializes the Sentry SDK. An empty DSN disables telemetry.
func Init(opts Options) error {
	if opts.DSN == "" {
		enabled.Store(false)
		return nil
	}

	err := gosentry.Init(gosentry.ClientOptions{
		Dsn:              opts.DSN,
		Release:          "mirror@" + opts.Version,
		Environment:      opts.Environment,
		AttachStacktrace: true,
		SampleRate:       1.0,
		BeforeSend:       opts.BeforeSend,
	})
	if err != nil {
		return err
	}

	gosentry.ConfigureScope(func(scope *gosentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("go_version", runtime.Version())
		scope.SetTag("version", opts.Version)
	})

	enabled.Store(true)
	return nil
}

// IsEnabled returns whether sentry is active.
func IsEnabled() bool {
	return enabled.Load()
}

// CaptureReport sends a server-reported error as a Sentry message.
func CaptureReport(workspace string, r models.ErrorReport) {
	if !IsEnabled() {
		return
	}
	gosentry.WithScope(func(scope *gosentry.Scope) {
		scope.SetTag("workspace", workspace)
		scope.SetTag("error_key", r.Key)
		scope.SetContext("report", map[string]interface{}{
			"description": r.Description,
			"traceback":   r.Traceback,
			"timestamp":   r.Timestamp,
		})
		gosentry.CaptureMessage(r.Message)
	})
}

// Flush waits up to 2 seconds for buffered events to be sent.
func Flush() {
	if !IsEnabled() {
		return
	}
	gosentry.Flush(2 * time.Second)
}

// RecoverPanic captures a panic to Sentry, flushes, then re-panics.
// Usage: defer telemetry.RecoverPanic()
func RecoverPanic() {
	if !IsEnabled() {
		return
	}
	if err := recover(); err != nil {
		gosentry.CurrentHub().Recover(err)
		gosentry.Flush(2 * time.Second)
		panic(err)
	}
}
