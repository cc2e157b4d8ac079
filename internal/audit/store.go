package audit

import (
	"context"
	"io"
	"log/slog"
)

// StoreSink adapts a database Store to the Sink interface.
type StoreSink struct {
	store  Store
	closer io.Closer
	logger *slog.Logger
}

// NewStoreSink creates a database-backed sink. closer, when non-nil, is
// closed with the sink and normally releases the database connection.
func NewStoreSink(store Store, closer io.Closer, logger *slog.Logger) *StoreSink {
	return &StoreSink{
		store:  store,
		closer: closer,
		logger: logger,
	}
}

// Record appends an audit event to the database.
func (s *StoreSink) Record(ctx context.Context, event Event) error {
	if err := s.store.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to log audit event",
			slog.String("correlation_id", event.CorrelationID),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.DebugContext(ctx, "audit event logged (db)",
		slog.String("secret_id", event.SecretID),
		slog.String("outcome", event.Outcome),
		slog.String("correlation_id", event.CorrelationID),
	)
	return nil
}

// Close releases the database connection, if one was supplied.
func (s *StoreSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
