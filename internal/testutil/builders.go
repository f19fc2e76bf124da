package testutil

import (
	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/schema"
)

// AccountOption is a functional option for configuring test account forms
type AccountOption func(*account.Form)

// WithName sets the display name
func WithName(name string) AccountOption {
	return func(f *account.Form) {
		f.Name = name
	}
}

// WithMobile sets the mobile number
func WithMobile(mobile string) AccountOption {
	return func(f *account.Form) {
		f.Mobile = mobile
	}
}

// WithEmail overrides the generated email
func WithEmail(email string) AccountOption {
	return func(f *account.Form) {
		f.Email = email
	}
}

// WithPassword overrides the default password
func WithPassword(password string) AccountOption {
	return func(f *account.Form) {
		f.Password = password
	}
}

// Disabled marks the account as disabled
func Disabled() AccountOption {
	return func(f *account.Form) {
		f.Enabled = false
	}
}

// NewAccountForm creates a valid, enabled account form for login
func NewAccountForm(login string, opts ...AccountOption) account.Form {
	f := account.Form{
		Account:  login,
		Password: TestPassword,
		Email:    login + "@" + TestEmailDomain,
		Enabled:  true,
	}

	for _, opt := range opts {
		opt(&f)
	}

	return f
}

// TableOption is a functional option for configuring test schema tables
type TableOption func(*schema.SchemaTable)

// WithComment sets the table comment
func WithComment(comment string) TableOption {
	return func(t *schema.SchemaTable) {
		t.Comment = comment
	}
}

// WithColumn appends a column; camel is its generated field name
func WithColumn(name, camel, dbType string) TableOption {
	return func(t *schema.SchemaTable) {
		t.Columns = append(t.Columns, schema.SchemaColumn{CamelCaseName: camel, Name: name, Type: dbType})
	}
}

// WithLabeledColumn appends a nullable column with a display label
func WithLabeledColumn(name, camel, dbType, label string) TableOption {
	return func(t *schema.SchemaTable) {
		t.Columns = append(t.Columns, schema.SchemaColumn{
			CamelCaseName: camel,
			Name:          name,
			Type:          dbType,
			IsNullable:    true,
			Chinese:       label,
		})
	}
}

// NewTable creates a schema table with no columns unless options add them
func NewTable(name string, opts ...TableOption) schema.SchemaTable {
	t := schema.SchemaTable{Name: name, Columns: []schema.SchemaColumn{}}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

// SampleTables is a small shop schema: users(id, nick_name, email) and
// orders(id, total)
func SampleTables() []schema.SchemaTable {
	return []schema.SchemaTable{
		NewTable("users",
			WithComment("Registered users"),
			WithColumn("id", "id", "bigint"),
			WithLabeledColumn("nick_name", "nickName", "varchar", "Nickname"),
			WithColumn("email", "email", "varchar"),
		),
		NewTable("orders",
			WithColumn("id", "id", "bigint"),
			WithColumn("total", "total", "numeric"),
		),
	}
}
