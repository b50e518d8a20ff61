package observability

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records a database query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
	}

	m.queryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// TraceDB wraps sql.DB with tracing
type TraceDB struct {
	db      *sql.DB
	system  string
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper. system is the db.system
// attribute value, e.g. "postgresql" or "sqlite".
func NewTraceDB(db *sql.DB, system string) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:      db,
		system:  system,
		metrics: metrics,
	}, nil
}

func (t *TraceDB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.operation", sqlOperation(query)),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := t.startSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))
	t.metrics.RecordQuery(ctx, sqlOperation(query), duration, err)

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := t.startSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))
	t.metrics.RecordQuery(ctx, sqlOperation(query), duration, err)

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := t.startSpan(ctx, "DB QueryRow", query)
	// Note: span.End() should be called after scanning the row
	// This is a limitation of the sql.Row interface

	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.metrics.RecordQuery(ctx, sqlOperation(query), time.Since(start), row.Err())
	span.End()
	return row
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	query = strings.TrimSpace(query)
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// sqlOperation returns the leading SQL keyword, e.g. SELECT or INSERT
func sqlOperation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

// ConflictMetrics holds metrics of the conflict engine
type ConflictMetrics struct {
	conflictsDetected metric.Int64Counter
	detectorFailures  metric.Int64Counter
	persistFailures   metric.Int64Counter
	resolutions       metric.Int64Counter
	runDuration       metric.Float64Histogram
}

// NewConflictMetrics creates conflict engine metrics instruments
func NewConflictMetrics() (*ConflictMetrics, error) {
	meter := otel.Meter(instrumentationName)

	conflictsDetected, err := meter.Int64Counter(
		"hotelpms.conflicts.detected",
		metric.WithDescription("Conflicts produced by detection passes"),
		metric.WithUnit("{conflicts}"),
	)
	if err != nil {
		return nil, err
	}

	detectorFailures, err := meter.Int64Counter(
		"hotelpms.conflicts.detector_failures",
		metric.WithDescription("Detector passes that failed to read their data source"),
		metric.WithUnit("{failures}"),
	)
	if err != nil {
		return nil, err
	}

	persistFailures, err := meter.Int64Counter(
		"hotelpms.conflicts.persist_failures",
		metric.WithDescription("Conflicts that could not be written to the store"),
		metric.WithUnit("{failures}"),
	)
	if err != nil {
		return nil, err
	}

	resolutions, err := meter.Int64Counter(
		"hotelpms.conflicts.resolutions",
		metric.WithDescription("Conflicts resolved or ignored"),
		metric.WithUnit("{conflicts}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"hotelpms.conflicts.detection.duration",
		metric.WithDescription("Detection pass duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &ConflictMetrics{
		conflictsDetected: conflictsDetected,
		detectorFailures:  detectorFailures,
		persistFailures:   persistFailures,
		resolutions:       resolutions,
		runDuration:       runDuration,
	}, nil
}

// RecordConflictDetected records one detected conflict
func (m *ConflictMetrics) RecordConflictDetected(ctx context.Context, propertyID, conflictType, severity string) {
	if m == nil {
		return
	}
	m.conflictsDetected.Add(ctx, 1, metric.WithAttributes(
		PropertyID(propertyID),
		attribute.String("conflict_type", conflictType),
		attribute.String("severity", severity),
	))
}

// RecordDetectorFailure records a failed detector pass
func (m *ConflictMetrics) RecordDetectorFailure(ctx context.Context, propertyID, detector string) {
	if m == nil {
		return
	}
	m.detectorFailures.Add(ctx, 1, metric.WithAttributes(PropertyID(propertyID), Detector(detector)))
}

// RecordPersistFailure records a conflict that could not be stored
func (m *ConflictMetrics) RecordPersistFailure(ctx context.Context, propertyID string) {
	if m == nil {
		return
	}
	m.persistFailures.Add(ctx, 1, metric.WithAttributes(PropertyID(propertyID)))
}

// RecordResolution records a conflict leaving the detected state
func (m *ConflictMetrics) RecordResolution(ctx context.Context, action, status string, automatic bool) {
	if m == nil {
		return
	}
	m.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
		attribute.Bool("automatic", automatic),
	))
}

// RecordDetectionRun records the duration of a detection pass
func (m *ConflictMetrics) RecordDetectionRun(ctx context.Context, propertyID string, duration time.Duration, partial bool) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		PropertyID(propertyID),
		attribute.Bool("partial", partial),
	))
}
