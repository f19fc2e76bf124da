package codegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/kenshaw/snaker"

	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/schema"
)

// Generated file names inside each table directory
const (
	ModelFile = "model.go"
	PageFile  = "page.json"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var modelTemplate = template.Must(template.New("model").Parse(`// Code generated by gen-console. DO NOT EDIT.

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
// {{.Struct}}{{if .Comment}} {{.Comment}}{{else}} is a row of {{.Table}}{{end}}
type {{.Struct}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} ` + "`" + `json:"{{.JSON}}" db:"{{.Column}}"` + "`" + `{{if .Label}} // {{.Label}}{{end}}
{{- end}}
}

// TableName returns the table backing {{.Struct}}
func ({{.Struct}}) TableName() string { return "{{.Table}}" }
`))

type modelData struct {
	Package string
	Imports []string
	Struct  string
	Comment string
	Table   string
	Fields  []modelField
}

type modelField struct {
	Name   string
	Type   string
	JSON   string
	Column string
	Label  string
}

// PageManifest describes the list/edit page to build for one table
type PageManifest struct {
	Table    string       `json:"table"`
	Title    string       `json:"title"`
	Model    string       `json:"model"`
	Flags    schema.Flags `json:"flags"`
	Features []string     `json:"features"`
	EditMode string       `json:"editMode"`
	Columns  []PageColumn `json:"columns"`
}

// PageColumn is one column of a page manifest
type PageColumn struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Column   string `json:"column"`
	Type     string `json:"type"`
	Length   *int64 `json:"length,omitempty"`
	Nullable bool   `json:"nullable"`
}

// Generator renders a model and a page manifest per selected table
type Generator struct {
	outputDir string
	logger    *logging.Logger
}

// New returns a generator writing under outputDir
func New(outputDir string) *Generator {
	return &Generator{
		outputDir: outputDir,
		logger:    logging.GetLogger().WithField("component", "codegen"),
	}
}

// Generate writes <table>/model.go and <table>/page.json for every table of
// req. Files are reported relative to the output directory.
func (g *Generator) Generate(ctx context.Context, req schema.GenRequest) (*schema.GenResult, error) {
	result := &schema.GenResult{Files: []string{}}

	for _, table := range req.Tables {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeClosed, "generation cancelled")
		}

		files, err := g.generateTable(table)
		if err != nil {
			return nil, err
		}

		result.Files = append(result.Files, files...)
		result.Tables++
	}

	sort.Strings(result.Files)

	g.logger.WithFields(map[string]interface{}{
		"tables": result.Tables,
		"files":  len(result.Files),
	}).Info("Generation completed")

	return result, nil
}

func (g *Generator) generateTable(table schema.GenTable) ([]string, error) {
	if !identPattern.MatchString(table.TableName) {
		return nil, errors.NewValidationError("tableName", "must be a plain identifier: "+table.TableName)
	}

	model, err := RenderModel(table)
	if err != nil {
		return nil, err
	}

	page, err := json.MarshalIndent(BuildPage(table), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to encode page manifest")
	}

	dir := filepath.Join(g.outputDir, table.TableName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeFileSystem, "failed to create output directory").
			WithSuggestion("Check server.output_dir and its permissions")
	}

	outputs := map[string][]byte{
		ModelFile: model,
		PageFile:  append(page, '\n'),
	}

	files := make([]string, 0, len(outputs))

	for name, content := range outputs {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			return nil, errors.Wrapf(err, errors.ErrTypeFileSystem, "failed to write %s", name)
		}

		files = append(files, path.Join(table.TableName, name))
	}

	g.logger.WithField("table", table.TableName).Debug("Rendered table")

	return files, nil
}

// RenderModel renders the gofmt'd Go model for one table
func RenderModel(table schema.GenTable) ([]byte, error) {
	data := modelData{
		Package: packageName(table.TableName),
		Struct:  snaker.ForceCamelIdentifier(table.TableName),
		Comment: oneLine(table.Comment),
		Table:   table.TableName,
	}

	imports := map[string]bool{}
	fieldOwner := map[string]string{}

	for _, col := range table.Children {
		if !identPattern.MatchString(col.Name) {
			return nil, errors.NewValidationError("name", "column must be a plain identifier: "+col.Name)
		}

		jsonName := col.Field
		if jsonName == "" {
			jsonName = snaker.ForceLowerCamelIdentifier(col.Name)
		}

		if !identPattern.MatchString(jsonName) {
			return nil, errors.NewValidationError("field", "must be a plain identifier: "+jsonName)
		}

		typ, imp := goType(col.Type, col.IsNullable)
		if imp != "" {
			imports[imp] = true
		}

		name := snaker.ForceCamelIdentifier(col.Name)
		if other, ok := fieldOwner[name]; ok {
			return nil, errors.NewValidationError("name",
				fmt.Sprintf("columns %s and %s both map to Go field %s", other, col.Name, name))
		}

		fieldOwner[name] = col.Name

		data.Fields = append(data.Fields, modelField{
			Name:   name,
			Type:   typ,
			JSON:   jsonName,
			Column: col.Name,
			Label:  oneLine(col.Chinese),
		})
	}

	for imp := range imports {
		data.Imports = append(data.Imports, imp)
	}

	sort.Strings(data.Imports)

	var buf bytes.Buffer
	if err := modelTemplate.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to render model")
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeInternal, "generated model for %s does not parse", table.TableName)
	}

	return formatted, nil
}

// BuildPage derives the page manifest of one table
func BuildPage(table schema.GenTable) PageManifest {
	page := PageManifest{
		Table:    table.TableName,
		Title:    oneLine(table.Comment),
		Model:    snaker.ForceCamelIdentifier(table.TableName),
		Flags:    table.Flags,
		Features: []string{},
		EditMode: "none",
		Columns:  []PageColumn{},
	}

	if page.Title == "" {
		page.Title = page.Model
	}

	for _, f := range table.Flags.Enabled() {
		page.Features = append(page.Features, f.String())
	}

	switch {
	case table.ModalEdit:
		page.EditMode = "modal"
	case table.PageEdit:
		page.EditMode = "page"
	}

	for _, col := range table.Children {
		label := col.Chinese
		if label == "" {
			label = col.Field
		}

		page.Columns = append(page.Columns, PageColumn{
			Field:    col.Field,
			Label:    label,
			Column:   col.Name,
			Type:     col.Type,
			Length:   col.Length,
			Nullable: col.IsNullable,
		})
	}

	return page
}

func packageName(table string) string {
	name := strings.ToLower(strings.ReplaceAll(table, "_", ""))
	if name == "" || token.IsKeyword(name) || unicode.IsDigit(rune(name[0])) {
		name = "model" + name
	}

	return name
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
