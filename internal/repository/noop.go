package repository

import (
	"context"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
)

// NopEventPublisher stands in when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishSignalEvent(context.Context, *models.SignalEvent) error { return nil }
func (NopEventPublisher) PublishAuditEvent(context.Context, any) error                  { return nil }
func (NopEventPublisher) Close() error                                                  { return nil }

// NopAuditArchive stands in when ClickHouse is disabled.
type NopAuditArchive struct{}

func (NopAuditArchive) ArchiveOrder(context.Context, *models.OrderRequest, *models.OrderResult) error {
	return nil
}
func (NopAuditArchive) ArchiveFill(context.Context, *models.Fill) error { return nil }
func (NopAuditArchive) Health(context.Context) error                    { return nil }
func (NopAuditArchive) Close() error                                    { return nil }

var (
	_ domrepo.EventPublisher = NopEventPublisher{}
	_ domrepo.AuditArchive   = NopAuditArchive{}
)
