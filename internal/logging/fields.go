package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. "asset_hash_failed").
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldNamespace is the bundle namespace an asset or collection belongs to.
	FieldNamespace = "namespace"
	// FieldCategory is the asset category name.
	FieldCategory = "category"
	// FieldPath is a filesystem path.
	FieldPath = "path"
	// FieldSocketID identifies a graphic client connection.
	FieldSocketID = "socket_id"
	// FieldPathName is the browser path of a graphic page.
	FieldPathName = "path_name"
	// FieldBundle is the bundle name.
	FieldBundle = "bundle"
)
