package core

import "strings"

// SchemaVersion tags every persisted graph with the metadata schema it was
// written under. Bump on incompatible schema changes.
const SchemaVersion = "1.1.0"

// Platform identifies the database platform a data source runs on.
type Platform string

// Platform constants.
const (
	PlatformPostgres  Platform = "postgres"
	PlatformMySQL     Platform = "mysql"
	PlatformSnowflake Platform = "snowflake"
	PlatformBigQuery  Platform = "bigquery"
	PlatformRedshift  Platform = "redshift"
	PlatformMSSQL     Platform = "mssql"
	PlatformOracle    Platform = "oracle"
	PlatformSQLite    Platform = "sqlite"
	PlatformTableau   Platform = "tableau"
	PlatformPowerBI   Platform = "powerbi"
	PlatformLooker    Platform = "looker"
	PlatformDBT       Platform = "dbt"
	PlatformGeneric   Platform = "generic"
)

// Dialect returns the SQL dialect tag for the platform. Generic and
// unknown platforms fall back to ANSI.
func (p Platform) Dialect() string {
	switch p {
	case PlatformPostgres, PlatformMySQL, PlatformSnowflake, PlatformBigQuery,
		PlatformRedshift, PlatformMSSQL, PlatformOracle, PlatformSQLite:
		return string(p)
	}
	return "ansi"
}

// Valid reports whether the platform is a known value.
func (p Platform) Valid() bool {
	switch p {
	case PlatformPostgres, PlatformMySQL, PlatformSnowflake, PlatformBigQuery,
		PlatformRedshift, PlatformMSSQL, PlatformOracle, PlatformSQLite,
		PlatformTableau, PlatformPowerBI, PlatformLooker, PlatformDBT,
		PlatformGeneric:
		return true
	}
	return false
}

// ObjectType represents the semantic type of a data object.
type ObjectType string

// Object type constants.
const (
	ObjectTypeTable            ObjectType = "table"
	ObjectTypeView             ObjectType = "view"
	ObjectTypeMaterializedView ObjectType = "materialized_view"
	ObjectTypeProcedure        ObjectType = "procedure"
	ObjectTypeFunction         ObjectType = "function"
	ObjectTypeDashboard        ObjectType = "dashboard"
	ObjectTypeDataset          ObjectType = "dataset"
	ObjectTypeExternal         ObjectType = "external"
	ObjectTypeUnknown          ObjectType = "unknown"
)

// DataSource represents a database or warehouse that objects belong to.
type DataSource struct {
	// Name is the logical source name (unique per deployment)
	Name string
	// Platform is the database platform
	Platform Platform
	// Host is the connection host (informational)
	Host string
	// Port is the connection port (informational)
	Port int
	// Database is the default database/catalog on the source
	Database string
	// Description is a human-readable description
	Description string
	// Metadata is a free-form metadata payload
	Metadata map[string]any
}

// DataObject represents a table, view, or other relation whose lineage is
// tracked. This contains the core identity fields only; persistence fields
// (ID, timestamps, stale flag) belong in PersistedObject.
type DataObject struct {
	// SourceName is the owning data source
	SourceName string
	// Database is the database/catalog component of the name
	Database string
	// Schema is the schema component of the name
	Schema string
	// Name is the object name
	Name string
	// Type is the object type (table, view, ...)
	Type ObjectType
	// SQL is the defining statement for derived objects (views, CTAS)
	SQL string
	// Description is a human-readable description
	Description string
	// Tags are metadata labels for filtering
	Tags []string
	// Metadata is a free-form metadata payload
	Metadata map[string]any
	// Columns are the object's known columns
	Columns []Column
	// References are qualified names of objects this one references
	// without deriving data from them (foreign keys and the like)
	References []string
}

// QualifiedName returns the dot-joined identity of the object, skipping
// empty components: database.schema.name, schema.name, or name.
func (o *DataObject) QualifiedName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{o.Database, o.Schema, o.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// Column represents a column on a data object.
type Column struct {
	Name        string
	Type        string
	Ordinal     int
	Nullable    bool
	PrimaryKey  bool
	Description string
	Metadata    map[string]any
}
