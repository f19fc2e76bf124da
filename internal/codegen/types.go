package codegen

import (
	"strings"
)

// goType maps a database column type to the Go type of the model field.
// Nullable scalars become pointers; slices and raw JSON are already nilable.
func goType(dbType string, nullable bool) (typ, importPath string) {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	t = strings.TrimSpace(strings.TrimSuffix(t, "unsigned"))

	switch {
	case t == "bigint" || t == "int8" || t == "bigserial":
		typ = "int64"
	case t == "integer" || t == "int" || t == "int4" || t == "serial" || t == "mediumint":
		typ = "int32"
	case t == "smallint" || t == "int2" || t == "smallserial" || t == "tinyint":
		typ = "int16"
	case t == "boolean" || t == "bool" || t == "bit":
		typ = "bool"
	case t == "real" || t == "float4" || t == "float":
		typ = "float32"
	case t == "double precision" || t == "double" || t == "float8" || t == "numeric" || t == "decimal":
		typ = "float64"
	case t == "date" || t == "datetime" || strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "time"):
		typ, importPath = "time.Time", "time"
	case t == "json" || t == "jsonb":
		return "json.RawMessage", "encoding/json"
	case t == "bytea" || t == "binary" || t == "varbinary" || strings.HasSuffix(t, "blob"):
		return "[]byte", ""
	default:
		typ = "string"
	}

	if nullable {
		typ = "*" + typ
	}

	return typ, importPath
}
