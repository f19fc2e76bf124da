package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/schema"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatLong  OutputFormat = "long"
	FormatShort OutputFormat = "short"
)

// ParseFormat maps a flag value to an OutputFormat, defaulting to short
func ParseFormat(s string) OutputFormat {
	if OutputFormat(strings.ToLower(s)) == FormatLong {
		return FormatLong
	}

	return FormatShort
}

var tagColors = map[string]color.Attribute{
	"orange":   color.FgYellow,
	"gold":     color.FgHiYellow,
	"lime":     color.FgHiGreen,
	"green":    color.FgGreen,
	"cyan":     color.FgCyan,
	"blue":     color.FgBlue,
	"geekblue": color.FgHiBlue,
	"red":      color.FgRed,
	"purple":   color.FgMagenta,
	"gray":     color.FgHiBlack,
}

// Formatter renders explorer trees, accounts and generation results
type Formatter struct {
	colorize bool
}

// NewFormatter creates a formatter that colors output unless color is
// disabled for the terminal (NO_COLOR, not a tty)
func NewFormatter() *Formatter {
	return &Formatter{colorize: !color.NoColor}
}

// NewPlainFormatter creates a formatter that never emits ANSI codes
func NewPlainFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) paint(name, text string) string {
	attr, ok := tagColors[name]
	if !ok {
		return text
	}

	c := color.New(attr)
	if f.colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	return c.Sprint(text)
}

// FormatTag renders one flag as "[+label]" in its color when on, or
// "[-label]" in gray when off
func (f *Formatter) FormatTag(flag schema.Flag, on bool) string {
	if on {
		return f.paint(flag.Color(), "[+"+flag.Label()+"]")
	}

	return f.paint(schema.DisabledColor, "[-"+flag.Label()+"]")
}

// FormatTags renders every flag of a row in display order
func (f *Formatter) FormatTags(flags schema.Flags) string {
	parts := make([]string, 0, len(schema.AllFlags))
	for _, flag := range schema.AllFlags {
		parts = append(parts, f.FormatTag(flag, flags.Get(flag)))
	}

	return strings.Join(parts, " ")
}

// FormatTree renders the table tree. Short form lists tables with their
// tags; long form adds every column with its editable field and label.
func (f *Formatter) FormatTree(tree *schema.Tree, sel schema.Selection, format OutputFormat) string {
	rows := tree.Rows()
	if len(rows) == 0 {
		return "No tables loaded."
	}

	var lines []string

	for i, row := range rows {
		header := fmt.Sprintf("%s %d. %s", marker(sel.Has(row.Key())), i+1, row.Name)
		if row.Comment != "" {
			header += "  " + row.Comment
		}

		lines = append(lines, header, "      "+f.FormatTags(row.Flags))

		if format != FormatLong {
			continue
		}

		for _, col := range row.Columns {
			lines = append(lines, fmt.Sprintf("      %s %s  field=%s  label=%q  %s%s%s",
				marker(sel.Has(col.Key())), col.Key(), col.Field, col.Chinese,
				col.Type, formatLength(col.Length), nullable(col.IsNullable)))
		}
	}

	return strings.Join(lines, "\n")
}

// FormatSummary is a one-line count of tables and selected keys
func (f *Formatter) FormatSummary(tree *schema.Tree, sel schema.Selection) string {
	tables, columns := 0, 0

	for _, key := range sel.Keys() {
		if key.IsTable() {
			tables++
		} else {
			columns++
		}
	}

	return fmt.Sprintf("%d tables loaded, %d tables and %d columns selected", tree.Len(), tables, columns)
}

// FormatGenResult renders the response of a generation request
func (f *Formatter) FormatGenResult(res *schema.GenResult) string {
	if res == nil || res.Tables == 0 {
		return "Nothing generated (empty selection)."
	}

	lines := []string{fmt.Sprintf("Generated %d tables, %d files:", res.Tables, len(res.Files))}
	for _, file := range res.Files {
		lines = append(lines, "  "+file)
	}

	return strings.Join(lines, "\n")
}

// FormatAccount renders one account record
func (f *Formatter) FormatAccount(rec account.Record, format OutputFormat) string {
	if format != FormatLong {
		return f.formatAccountShort(rec)
	}

	lines := []string{
		"ID: " + rec.ID,
		"Account: " + rec.Account,
		"Name: " + orDash(rec.Name),
		"Mobile: " + orDash(rec.Mobile),
		"Email: " + rec.Email,
		"Enabled: " + strconv.FormatBool(rec.Enabled),
		"Created: " + f.humanizeAge(rec.CreatedAt),
		"Updated: " + f.humanizeAge(rec.UpdatedAt),
	}

	return strings.Join(lines, "\n")
}

func (f *Formatter) formatAccountShort(rec account.Record) string {
	status := f.paint("green", "enabled")
	if !rec.Enabled {
		status = f.paint("gray", "disabled")
	}

	return fmt.Sprintf("%s  %s <%s>  %s", rec.ID, rec.Account, rec.Email, status)
}

// FormatAccounts renders a page of accounts, one short line each
func (f *Formatter) FormatAccounts(records []account.Record) string {
	if len(records) == 0 {
		return "No accounts."
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, f.formatAccountShort(rec))
	}

	return strings.Join(lines, "\n")
}

// FormatForm renders the editor form; the password is always masked
func (f *Formatter) FormatForm(title string, form account.Form) string {
	password := "-"
	if form.Password != "" {
		password = "******"
	}

	lines := []string{
		title,
		"  account:  " + orDash(form.Account),
		"  password: " + password,
		"  name:     " + orDash(form.Name),
		"  mobile:   " + orDash(form.Mobile),
		"  email:    " + orDash(form.Email),
		"  enabled:  " + strconv.FormatBool(form.Enabled),
	}

	return strings.Join(lines, "\n")
}

func marker(selected bool) string {
	if selected {
		return "[x]"
	}

	return "[ ]"
}

func nullable(n bool) string {
	if n {
		return "  nullable"
	}

	return ""
}

func formatLength(n *int64) string {
	if n == nil {
		return ""
	}

	return "(" + strconv.FormatInt(*n, 10) + ")"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

// humanizeAge converts a time to a human-readable age string
func (f *Formatter) humanizeAge(t time.Time) string {
	if t.IsZero() {
		return "?"
	}

	days := int(time.Since(t).Hours() / 24)

	switch {
	case days < 1:
		return "today"
	case days == 1:
		return "1 day ago"
	case days < 30:
		return fmt.Sprintf("%d days ago", days)
	case days < 365:
		months := days / 30
		if months == 1 {
			return "1 month ago"
		}

		return fmt.Sprintf("%d months ago", months)
	}

	years := days / 365
	if years == 1 {
		return "1 year ago"
	}

	return fmt.Sprintf("%d years ago", years)
}
