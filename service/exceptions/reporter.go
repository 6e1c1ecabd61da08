// Package exceptions reports pipeline-fatal failures to an external
// error tracker.
package exceptions

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const defaultFlushTimeout = time.Second * 5

// Reporter sends exceptions to an external source
type Reporter interface {
	ReportException(err error)
	// ReportJobException tags the report with the failed job's id.
	ReportJobException(jobID string, err error)
}

// NoopReporter is a no-op exception reporter
type NoopReporter struct{}

// ReportException does nothing
func (r *NoopReporter) ReportException(_ error) {}

// ReportJobException does nothing
func (r *NoopReporter) ReportJobException(_ string, _ error) {}

// SentryReporter is a Reporter that sends error information to Sentry
type SentryReporter struct{}

// NewSentryReporter creates and returns an instance of SentryReporter
func NewSentryReporter(dsn, env string) (*SentryReporter, error) {
	err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Environment: env})
	if err != nil {
		return nil, err
	}

	return &SentryReporter{}, nil
}

// ReportException will send errors to Sentry
func (r *SentryReporter) ReportException(err error) {
	sentry.CaptureException(err)
	sentry.Flush(defaultFlushTimeout)
}

// ReportJobException will send errors to Sentry tagged with the job id
func (r *SentryReporter) ReportJobException(jobID string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", jobID)
		sentry.CaptureException(err)
	})
	sentry.Flush(defaultFlushTimeout)
}
