package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/vmgatelabs/vmgate/eventstore"
	"github.com/vmgatelabs/vmgate/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventTableName          = "events"
	logMsgBuildSelectQueryFailed   = "failed to build select query"
	logMsgDBQueryFailed            = "database query execution failed"
	logMsgCloseRowsFailed          = "failed to close database rows"
	logMsgScanRowFailed            = "failed to scan database row"
	logMsgBuildStorableEventFailed = "failed to build storable event from database row"
	logMsgBuildInsertQueryFailed   = "failed to build insert query"
	logMsgDBExecFailed             = "database execution failed during event append"
	logMsgRowsAffectedFailed       = "failed to get rows affected count"
	logMsgSingleEventSQLFailed     = "failed to convert single event insert statement to SQL"
	logMsgMultiEventSQLFailed      = "failed to convert multiple events insert statement to SQL"
	logMsgReadBackVersionFailed    = "failed to read back stream version after conflict"
	logMsgStreamLoaded             = "stream loaded"
	logMsgEventsAppended           = "events appended"
	logMsgConcurrencyConflict      = "concurrency conflict detected"
	logAttrError                   = "error"
	logAttrAggregateID             = "aggregate_id"
	logAttrEventType               = "event_type"
	logAttrEventCount              = "event_count"
	logAttrExpectedVersion         = "expected_version"
	logAttrActualVersion           = "actual_version"
	logAttrNewVersion              = "new_version"
	logAttrRowsAffected            = "rows_affected"
	logActionLoad                  = "load"
	logActionAppend                = "append"
	logActionAggregateIDs          = "aggregate ids"
	logActionStreamVersion         = "stream version"
	colAggregateID                 = "aggregate_id"
	colVersion                     = "version"
	colEventType                   = "event_type"
	colOccurredAt                  = "occurred_at"
	colPayload                     = "payload"
	colMetadata                    = "metadata"
	colVersionOffset               = "version_offset"
	cteStream                      = "stream"
	cteVals                        = "vals"
	aliasStreamLength              = "stream_length"
	dialectPostgres                = "postgres"
	castBigint                     = "?::bigint"
	castText                       = "?::text"
	castTimestamp                  = "?::timestamp with time zone"
	castJsonb                      = "?::jsonb"

	// unknownStreamVersion marks a conflict whose actual version could not be read back.
	unknownStreamVersion = -1
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// EventStore persists per-aggregate event streams in a single Postgres table.
//
// Each stream is the ordered slice of rows sharing one aggregate_id; the version
// column is the 0-based position within that stream and the stream's current
// version equals its length. Optimistic concurrency is enforced by a conditional
// INSERT whose guard compares the stream length against the caller's expected
// version, backed by the (aggregate_id, version) primary key.
type EventStore struct {
	db               adapters.DBAdapter
	eventTableName   string
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
}

type queryResultRow struct {
	eventType  string
	payload    []byte
	metadata   []byte
	occurredAt time.Time
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStoreWithAdapter(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromPGXPoolWithReplica creates a new EventStore using a primary pgx Pool
// for writes and a replica pool for reads that opt into eventual consistency
// via eventstore.WithEventualConsistency.
func NewEventStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (EventStore, error) {
	if db == nil || replica == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStoreWithAdapter(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStoreWithAdapter(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStoreWithAdapter(adapters.NewSQLXAdapter(db), options...)
}

func newEventStoreWithAdapter(db adapters.DBAdapter, options ...Option) (EventStore, error) {
	es := EventStore{
		db:             db,
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(&es); err != nil {
			return EventStore{}, err
		}
	}

	return es, nil
}

// Load retrieves the full event stream of one aggregate, ordered by stream position,
// and returns it together with the stream's current version.
//
// A stream that does not exist yet is not an error: Load returns an empty slice
// and version 0, which is exactly the expected version a first Append must use.
func (es EventStore) Load(ctx context.Context, aggregateID string) (
	eventstore.StorableEvents,
	eventstore.StreamVersionInt,
	error,
) {

	var empty eventstore.StorableEvents

	if aggregateID == "" {
		return empty, 0, eventstore.ErrEmptyAggregateID
	}

	sqlQuery, buildQueryErr := es.buildLoadQuery(aggregateID)
	if buildQueryErr != nil {
		es.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr, logAttrAggregateID, aggregateID)
		return empty, 0, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionLoad, duration)

	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrAggregateID, aggregateID)
		return empty, 0, errors.Join(eventstore.ErrLoadingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	eventStream, scanErr := es.processLoadResults(ctx, rows)
	if scanErr != nil {
		return empty, 0, scanErr
	}

	currentVersion := len(eventStream)

	es.recordDuration(eventstore.LoadDurationMetric, duration)
	es.logOperation(ctx, logMsgStreamLoaded,
		logAttrAggregateID, aggregateID,
		logAttrEventCount, len(eventStream),
	)

	return eventStream, currentVersion, nil
}

// processLoadResults scans database rows and converts them to storable events.
func (es EventStore) processLoadResults(ctx context.Context, rows adapters.DBRows) (
	eventstore.StorableEvents,
	error,
) {

	var empty eventstore.StorableEvents
	result := queryResultRow{}
	eventStream := make(eventstore.StorableEvents, 0)

	for rows.Next() {
		rowScanErr := rows.Scan(&result.eventType, &result.occurredAt, &result.payload, &result.metadata)
		if rowScanErr != nil {
			es.logError(ctx, logMsgScanRowFailed, rowScanErr)
			return empty, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		event, buildStorableErr := eventstore.BuildStorableEvent(result.eventType, result.occurredAt, result.payload, result.metadata)
		if buildStorableErr != nil {
			es.logError(ctx, logMsgBuildStorableEventFailed, buildStorableErr, logAttrEventType, result.eventType)
			return empty, errors.Join(eventstore.ErrBuildingStorableEventFailed, buildStorableErr)
		}

		eventStream = append(eventStream, event)
	}

	return eventStream, nil
}

// Append attempts to append one or multiple eventstore.StorableEvent(s) onto one aggregate's
// stream, enforcing optimistic concurrency: the append only succeeds if the stream's current
// version still equals expectedVersion, i.e. no other writer advanced the stream since the
// caller loaded it.
//
// On success, it returns the stream's new version (expectedVersion plus the number of events
// appended). On a version mismatch, it returns an *eventstore.ConcurrencyConflictError
// carrying the stream's actual version; the error matches eventstore.ErrConcurrencyConflict
// via errors.Is. ActualVersion is unknownStreamVersion (-1) when it could not be read back.
//
// The insert query to append multiple events atomically is heavier than the one built to
// append a single event. In event-sourced applications, one command should typically only
// produce one event. Only supply multiple events if you are sure you need to append
// multiple events at once!
func (es EventStore) Append(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.StreamVersionInt,
	events ...eventstore.StorableEvent,
) (eventstore.StreamVersionInt, error) {

	if aggregateID == "" {
		return 0, eventstore.ErrEmptyAggregateID
	}

	if len(events) == 0 {
		return 0, eventstore.ErrNoEventsToAppend
	}

	if expectedVersion < 0 {
		return 0, eventstore.ErrNegativeExpectedVersion
	}

	sqlQuery, buildQueryErr := es.buildAppendQuery(ctx, aggregateID, expectedVersion, events)
	if buildQueryErr != nil {
		return 0, buildQueryErr
	}

	rowsAffected, duration, execErr := es.executeAppendQuery(ctx, sqlQuery)
	if execErr != nil {
		return 0, execErr
	}

	if rowsAffected < int64(len(events)) {
		return 0, es.buildConcurrencyConflictError(ctx, aggregateID, expectedVersion, rowsAffected)
	}

	newVersion := expectedVersion + len(events)

	es.recordDuration(eventstore.AppendDurationMetric, duration)
	es.logOperation(ctx, logMsgEventsAppended,
		logAttrAggregateID, aggregateID,
		logAttrEventCount, len(events),
		logAttrNewVersion, newVersion,
	)

	return newVersion, nil
}

// AggregateIDs returns the distinct aggregate ids of all streams in the store,
// in lexical order. It exists for full replays: projection rebuilds iterate the
// ids and Load each stream in turn.
func (es EventStore) AggregateIDs(ctx context.Context) ([]string, error) {
	sqlQuery, buildQueryErr := es.buildAggregateIDsQuery()
	if buildQueryErr != nil {
		es.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		return nil, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAggregateIDs, duration)

	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr)
		return nil, errors.Join(eventstore.ErrLoadingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	aggregateIDs := make([]string, 0)

	for rows.Next() {
		var aggregateID string

		if rowScanErr := rows.Scan(&aggregateID); rowScanErr != nil {
			es.logError(ctx, logMsgScanRowFailed, rowScanErr)
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		aggregateIDs = append(aggregateIDs, aggregateID)
	}

	return aggregateIDs, nil
}

// buildAppendQuery builds the appropriate SQL query for single or multiple events.
func (es EventStore) buildAppendQuery(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.StreamVersionInt,
	events eventstore.StorableEvents,
) (sqlQueryString, error) {

	var sqlQuery sqlQueryString
	var buildQueryErr error

	switch len(events) {
	case 1:
		sqlQuery, buildQueryErr = es.buildInsertQueryForSingleEvent(ctx, aggregateID, expectedVersion, events[0])

	default:
		sqlQuery, buildQueryErr = es.buildInsertQueryForMultipleEvents(ctx, aggregateID, expectedVersion, events)
	}

	if buildQueryErr != nil {
		es.logError(ctx, logMsgBuildInsertQueryFailed, buildQueryErr, logAttrEventCount, len(events))
		return "", buildQueryErr
	}

	return sqlQuery, nil
}

// executeAppendQuery executes the SQL append query and returns rows affected and duration.
func (es EventStore) executeAppendQuery(ctx context.Context, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	tag, execErr := es.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, duration)

	if execErr != nil {
		es.logError(ctx, logMsgDBExecFailed, execErr)
		return 0, duration, errors.Join(eventstore.ErrAppendingEventsFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := tag.RowsAffected()
	if rowsAffectedErr != nil {
		es.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, duration, errors.Join(eventstore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// buildConcurrencyConflictError reads back the stream's actual version and builds the typed error.
func (es EventStore) buildConcurrencyConflictError(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.StreamVersionInt,
	rowsAffected int64,
) error {

	es.recordConcurrencyConflict()

	actualVersion, readBackErr := es.currentStreamVersion(ctx, aggregateID)
	if readBackErr != nil {
		es.logError(ctx, logMsgReadBackVersionFailed, readBackErr, logAttrAggregateID, aggregateID)
		actualVersion = unknownStreamVersion
	}

	es.logOperation(ctx, logMsgConcurrencyConflict,
		logAttrAggregateID, aggregateID,
		logAttrExpectedVersion, expectedVersion,
		logAttrActualVersion, actualVersion,
		logAttrRowsAffected, rowsAffected,
	)

	return &eventstore.ConcurrencyConflictError{
		AggregateID:     aggregateID,
		ExpectedVersion: expectedVersion,
		ActualVersion:   actualVersion,
	}
}

// currentStreamVersion queries the current length of one aggregate's stream.
func (es EventStore) currentStreamVersion(ctx context.Context, aggregateID string) (
	eventstore.StreamVersionInt,
	error,
) {

	sqlQuery, buildQueryErr := es.buildStreamVersionQuery(aggregateID)
	if buildQueryErr != nil {
		return 0, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionStreamVersion, duration)

	if queryErr != nil {
		return 0, errors.Join(eventstore.ErrLoadingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	var streamLength int64

	if rows.Next() {
		if rowScanErr := rows.Scan(&streamLength); rowScanErr != nil {
			return 0, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}
	}

	return int(streamLength), nil
}

// closeRows safely closes database rows and logs any errors.
func (es EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func (es EventStore) buildLoadQuery(aggregateID string) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colEventType, colOccurredAt, colPayload, colMetadata).
		Where(goqu.Ex{colAggregateID: aggregateID}).
		Order(goqu.I(colVersion).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildAggregateIDsQuery() (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		SelectDistinct(colAggregateID).
		Order(goqu.I(colAggregateID).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildStreamVersionQuery(aggregateID string) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(goqu.COUNT(goqu.Star()).As(aliasStreamLength)).
		Where(goqu.Ex{colAggregateID: aggregateID})

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// streamLengthCTE builds the CTE that measures the current length of the aggregate's stream.
// The guard in the insert queries compares this length against the expected version.
func (es EventStore) streamLengthCTE(aggregateID string) *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(goqu.COUNT(goqu.Star()).As(aliasStreamLength)).
		Where(goqu.Ex{colAggregateID: aggregateID})
}

func (es EventStore) buildInsertQueryForSingleEvent(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.StreamVersionInt,
	event eventstore.StorableEvent,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	// The new event lands exactly at position stream_length; the WHERE guard
	// makes the insert a no-op when another writer advanced the stream.
	selectStmt := builder.
		From(cteStream).
		Select(
			goqu.V(aggregateID),
			goqu.C(aliasStreamLength),
			goqu.V(event.EventType),
			goqu.V(event.OccurredAt),
			goqu.V(event.PayloadJSON),
			goqu.V(event.MetadataJSON),
		).
		Where(goqu.C(aliasStreamLength).Eq(goqu.V(expectedVersion)))

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colAggregateID, colVersion, colEventType, colOccurredAt, colPayload, colMetadata).
		FromQuery(selectStmt).
		With(cteStream, es.streamLengthCTE(aggregateID))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(ctx, logMsgSingleEventSQLFailed, toSQLErr, logAttrEventType, event.EventType)
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es EventStore) buildInsertQueryForMultipleEvents(
	ctx context.Context,
	aggregateID string,
	expectedVersion eventstore.StreamVersionInt,
	events eventstore.StorableEvents,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)

	// Create individual SELECT statements for each event, carrying its offset within the batch
	unionStatements := make([]*goqu.SelectDataset, len(events))
	for i, event := range events {
		unionStatements[i] = builder.
			Select(
				goqu.L(castBigint, i).As(colVersionOffset),
				goqu.L(castText, event.EventType).As(colEventType),
				goqu.L(castTimestamp, event.OccurredAt).As(colOccurredAt),
				goqu.L(castJsonb, event.PayloadJSON).As(colPayload),
				goqu.L(castJsonb, event.MetadataJSON).As(colMetadata),
			)
	}

	// Combine all SELECT statements with UNION ALL
	valuesStmt := unionStatements[0]
	for i := 1; i < len(unionStatements); i++ {
		valuesStmt = valuesStmt.UnionAll(unionStatements[i])
	}

	// Finalize the full INSERT query: each event's position is the guarded
	// stream length plus its offset within the batch, so the whole batch
	// lands contiguously or not at all.
	valsVersionOffset := fmt.Sprintf("%s.%s", cteVals, colVersionOffset)
	valsEventType := fmt.Sprintf("%s.%s", cteVals, colEventType)
	valsOccurredAt := fmt.Sprintf("%s.%s", cteVals, colOccurredAt)
	valsPayload := fmt.Sprintf("%s.%s", cteVals, colPayload)
	valsMetadata := fmt.Sprintf("%s.%s", cteVals, colMetadata)

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(colAggregateID, colVersion, colEventType, colOccurredAt, colPayload, colMetadata).
		With(cteStream, es.streamLengthCTE(aggregateID)).
		With(cteVals, valuesStmt).
		FromQuery(
			builder.From(cteStream, cteVals).
				Select(
					goqu.V(aggregateID),
					goqu.L(fmt.Sprintf("%s.%s + %s", cteStream, aliasStreamLength, valsVersionOffset)),
					goqu.I(valsEventType),
					goqu.I(valsOccurredAt),
					goqu.I(valsPayload),
					goqu.I(valsMetadata),
				).
				Where(goqu.C(aliasStreamLength).Eq(goqu.V(expectedVersion))),
		)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(ctx, logMsgMultiEventSQLFailed, toSQLErr, logAttrEventCount, len(events))
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
