package metrics

// Metric name constants following Prometheus naming conventions
// Format: schemaui_{component}_{metric}_{unit}

// Store metrics
const (
	MetricStoreSlices           = "schemaui_store_slices"
	MetricStoreCommandsTotal    = "schemaui_store_commands_total"
	MetricStoreSavesTotal       = "schemaui_store_saves_total"
	MetricStoreSaveDuration     = "schemaui_store_save_duration_seconds"
	MetricStoreLoadsTotal       = "schemaui_store_loads_total"
	MetricStoreLoadDuration     = "schemaui_store_load_duration_seconds"
	MetricStorePushesTotal      = "schemaui_store_pushes_total"
	MetricStoreConflictsTotal   = "schemaui_store_conflicts_total"
	MetricStoreStaleTotal       = "schemaui_store_stale_results_total"
	MetricStoreValidationsTotal = "schemaui_store_validation_failures_total"
)

// Transport metrics
const (
	MetricBackendRequestsTotal   = "schemaui_backend_requests_total"
	MetricBackendRequestDuration = "schemaui_backend_request_duration_seconds"
	MetricWSQueryReconnectsTotal = "schemaui_wsquery_reconnects_total"
	MetricWSQueryDeltasTotal     = "schemaui_wsquery_deltas_total"
	MetricWSQueryState           = "schemaui_wsquery_state"
)

// Node-level metrics
const (
	MetricAPIRequestsTotal   = "schemaui_api_requests_total"
	MetricAPIRequestDuration = "schemaui_api_request_duration_seconds"
	MetricHubClients         = "schemaui_hub_clients"
	MetricHubBroadcastsTotal = "schemaui_hub_broadcasts_total"
	MetricSchemaLoadsTotal   = "schemaui_schema_loads_total"
	MetricSchemaVersion      = "schemaui_schema_version"
)

// Label name constants
const (
	LabelModel     = "model"
	LabelCommand   = "command"
	LabelAction    = "action"
	LabelOutcome   = "outcome"
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelMethod    = "method"
	LabelEndpoint  = "endpoint"
	LabelChannel   = "channel"
	LabelSource    = "source"
)
