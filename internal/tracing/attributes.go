package tracing

// Span attribute keys following OpenTelemetry semantic conventions
const (
	// Engine attributes
	AttrModel      = "schemaui.model"
	AttrXPath      = "schemaui.xpath"
	AttrObjectID   = "schemaui.object.id"
	AttrGeneration = "schemaui.generation"
	AttrMode       = "schemaui.mode"

	// Save and merge attributes
	AttrSaveAction   = "schemaui.save.action"
	AttrChangeCount  = "schemaui.change.count"
	AttrMergeOutcome = "schemaui.merge.outcome"
	AttrConflicts    = "schemaui.conflict.count"

	// Query channel attributes
	AttrChannel = "schemaui.channel"
	AttrAttempt = "schemaui.attempt"

	// Operation attributes
	AttrOperation = "schemaui.operation"
	AttrStatus    = "schemaui.status"
	AttrError     = "schemaui.error"

	// RPC attributes
	AttrRPCMethod = "rpc.method"
	AttrRPCStatus = "rpc.grpc.status_code"

	// HTTP attributes (OpenTelemetry semantic conventions)
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPURL        = "http.url"
)
