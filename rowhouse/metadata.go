package rowhouse

// Well-known header and URL parameter names used by the ClickHouse HTTP
// interface.
const (
	HeaderUser          = "X-ClickHouse-User"
	HeaderKey           = "X-ClickHouse-Key"
	HeaderExceptionCode = "X-ClickHouse-Exception-Code"

	ParamDatabase = "database"
	ParamReadonly = "readonly"
	ParamQuery    = "query"
	ParamCompress = "compress"
)
