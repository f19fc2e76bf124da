package schema

// TablesResponse is the body of GET /gen/tables
type TablesResponse struct {
	Tables       []SchemaTable `json:"tables"`
	IgnoreFields []string      `json:"ignoreFields"`
}

// SchemaTable describes one table of the target database
type SchemaTable struct {
	Name    string         `json:"name"`
	Comment string         `json:"comment"`
	Columns []SchemaColumn `json:"columns"`
}

// SchemaColumn describes one column of the target database
type SchemaColumn struct {
	CamelCaseName string `json:"camelCaseName"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsNullable    bool   `json:"isNullable"`
	Comment       string `json:"comment"`
	Chinese       string `json:"chinese"`
	Length        *int64 `json:"length"`
}

// GenRequest is the body of POST /gen/tables
type GenRequest struct {
	Tables []GenTable `json:"tables"`
}

// GenTable is a selected table with its flags inlined
type GenTable struct {
	ID        string `json:"id"`
	IsTable   bool   `json:"isTable"`
	TableName string `json:"tableName"`
	Comment   string `json:"comment"`
	Flags
	Children []GenColumn `json:"children"`
}

// GenColumn is the projection of a selected column; it never carries flags
type GenColumn struct {
	Field      string `json:"field"`
	Chinese    string `json:"chinese"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Length     *int64 `json:"length"`
	IsNullable bool   `json:"isNullable"`
}

// GenResult is the body returned by POST /gen/tables
type GenResult struct {
	Files  []string `json:"files"`
	Tables int      `json:"tables"`
}
