// Package notifier formats position change reports and delivers them to
// the audit and notify sinks.
package notifier

import "walletwatch/internal/domain"

// Notifier delivers a rendered change report out of process. Delivery
// mechanics are opaque to the pipeline.
type Notifier interface {
	Notify(subject, body string) error
}

// AuditSink records reports before delivery is attempted.
type AuditSink interface {
	Append(rec domain.AuditRecord) error
}
