package ports

import "github.com/ecocheck/agent/internal/domain"

type ReportSink interface {
	WriteBatch(reports []*domain.Report) error
	Name() string
}
