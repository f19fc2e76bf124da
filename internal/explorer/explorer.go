// Package explorer drives the schema explorer screen: it fetches table
// metadata for a database URL, keeps the editable tree and the selection, and
// submits the selected tables for generation.
package explorer

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/kyleking/gen-console/internal/api"
	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/prefs"
	"github.com/kyleking/gen-console/internal/schema"
)

// DBURLKey is the preference key holding the last database URL typed in.
// It is shared by every user of the machine.
const DBURLKey = "GEN_DB_URL"

const tablesPath = "/gen/tables"

var (
	// ErrInFlight is returned when a fetch or generate is already running
	ErrInFlight = errors.New(errors.ErrTypeBusy, "a request is already in flight")
	// ErrClosed is returned once Close has been called
	ErrClosed = errors.New(errors.ErrTypeClosed, "explorer is closed")
)

// Form holds the explorer's input fields
type Form struct {
	DBURL string `json:"dbUrl"`
}

// Options wires an Explorer to its collaborators
type Options struct {
	Client api.Client
	Prefs  prefs.Store
	Logger *logging.Logger
	// OnLoading is called with true when a request starts and false when it ends
	OnLoading func(loading bool)
	// OnChange is called after any visible state change with the new revision
	OnChange func(revision uint64)
}

// Snapshot is a consistent copy of the explorer state for rendering
type Snapshot struct {
	Form      Form
	Rows      []schema.TableRow
	Selection schema.Selection
	Loading   bool
	Revision  uint64
}

// Explorer is the schema explorer controller. It is safe for concurrent use,
// but requests are serialised: one fetch or generate at a time.
type Explorer struct {
	client    api.Client
	prefs     prefs.Store
	logger    *logging.Logger
	onLoading func(bool)
	onChange  func(uint64)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	form     Form
	tree     *schema.Tree
	sel      schema.Selection
	loading  bool
	closed   bool
	revision uint64
}

// New creates an explorer with an empty tree
func New(opts Options) *Explorer {
	ctx, cancel := context.WithCancel(context.Background())

	store := opts.Prefs
	if store == nil {
		store = prefs.NewMemoryStore()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Explorer{
		client:    opts.Client,
		prefs:     store,
		logger:    logger.WithField("component", "explorer"),
		onLoading: opts.OnLoading,
		onChange:  opts.OnChange,
		ctx:       ctx,
		cancel:    cancel,
		sel:       schema.NewSelection(),
	}
}

// Mount restores the last database URL from preferences and, when one is
// stored, fetches its tables right away. It reports whether a fetch ran.
func (e *Explorer) Mount(ctx context.Context) (bool, error) {
	dbURL, ok, err := e.prefs.Get(DBURLKey)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrTypeFileSystem, "failed to read stored database url")
	}

	if !ok || dbURL == "" {
		return false, nil
	}

	e.mu.Lock()
	e.form.DBURL = dbURL
	e.mu.Unlock()

	return true, e.Submit(ctx, Form{DBURL: dbURL})
}

// ChangeDBURL records an edit of the database URL input. The value is
// persisted on every change, whether or not it is ever submitted.
func (e *Explorer) ChangeDBURL(value string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	e.form.DBURL = value
	e.mu.Unlock()

	if err := e.prefs.Set(DBURLKey, value); err != nil {
		return errors.Wrap(err, errors.ErrTypeFileSystem, "failed to store database url")
	}

	return nil
}

// Form returns the current input values
func (e *Explorer) Form() Form {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.form
}

// Submit fetches the tables of form.DBURL and replaces the tree and the
// selection. On failure the previous tree and selection stay in place.
func (e *Explorer) Submit(ctx context.Context, form Form) error {
	if strings.TrimSpace(form.DBURL) == "" {
		return errors.NewValidationError("dbUrl", "database url is required")
	}

	reqCtx, done, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	e.mu.Lock()
	e.form = form
	e.mu.Unlock()

	var resp schema.TablesResponse

	err = e.logger.Track("fetch tables", func() error {
		return e.client.Get(reqCtx, tablesPath, url.Values{"dbUrl": {form.DBURL}}, &resp)
	})
	if err != nil {
		return err
	}

	tree, sel, err := schema.Load(resp)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeAPI, "backend returned an invalid table list")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	e.tree, e.sel = tree, sel
	rev := e.bumpLocked()
	e.mu.Unlock()

	e.logger.WithFields(map[string]interface{}{
		"tables":   tree.Len(),
		"selected": len(sel),
	}).Info("tables loaded")
	e.changed(rev)

	return nil
}

// Generate posts the selected tables, with only their selected columns, for
// generation and returns the backend's result.
func (e *Explorer) Generate(ctx context.Context) (*schema.GenResult, error) {
	reqCtx, done, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	e.mu.Lock()
	req := schema.BuildGenRequest(e.tree, e.sel)
	e.mu.Unlock()

	var result schema.GenResult

	err = e.logger.Track("generate", func() error {
		return e.client.Post(reqCtx, tablesPath, req, &result)
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"tables": result.Tables,
		"files":  strings.Join(result.Files, ","),
	}).Info("generation finished")

	return &result, nil
}

// begin claims the in-flight slot and derives a request context that is
// cancelled by either the caller or Close.
func (e *Explorer) begin(ctx context.Context) (context.Context, func(), error) {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return nil, nil, ErrClosed
	case e.loading:
		e.mu.Unlock()
		return nil, nil, ErrInFlight
	}

	e.loading = true
	e.mu.Unlock()

	e.notifyLoading(true)

	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)

	done := func() {
		stop()
		cancel()

		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()

		e.notifyLoading(false)
	}

	return reqCtx, done, nil
}

// Toggle applies a tag click on one of a table's flags
func (e *Explorer) Toggle(table string, flag schema.Flag) (schema.Flags, error) {
	e.mu.Lock()
	flags, err := e.tree.Toggle(table, flag)
	if err != nil {
		e.mu.Unlock()
		return schema.Flags{}, err
	}

	rev := e.bumpLocked()
	e.mu.Unlock()

	e.changed(rev)

	return flags, nil
}

// SetField commits an edit of a column's generated identifier
func (e *Explorer) SetField(key schema.RowKey, value string) error {
	return e.edit(func(t *schema.Tree) error { return t.SetField(key, value) })
}

// SetChinese commits an edit of a column's display label
func (e *Explorer) SetChinese(key schema.RowKey, value string) error {
	return e.edit(func(t *schema.Tree) error { return t.SetChinese(key, value) })
}

func (e *Explorer) edit(fn func(*schema.Tree) error) error {
	e.mu.Lock()
	if err := fn(e.tree); err != nil {
		e.mu.Unlock()
		return err
	}

	rev := e.bumpLocked()
	e.mu.Unlock()

	e.changed(rev)

	return nil
}

// Select adds loaded rows to the selection
func (e *Explorer) Select(keys ...schema.RowKey) error {
	return e.changeSelection(keys, func(s schema.Selection) { s.Add(keys...) })
}

// Deselect removes rows from the selection
func (e *Explorer) Deselect(keys ...schema.RowKey) error {
	return e.changeSelection(keys, func(s schema.Selection) { s.Remove(keys...) })
}

// SetSelection replaces the whole selection, as the row-selection widget does
func (e *Explorer) SetSelection(sel schema.Selection) error {
	keys := sel.Keys()

	return e.changeSelection(keys, func(s schema.Selection) {
		clear(s)
		s.Add(keys...)
	})
}

func (e *Explorer) changeSelection(keys []schema.RowKey, apply func(schema.Selection)) error {
	e.mu.Lock()
	for _, k := range keys {
		if !e.tree.Has(k) {
			e.mu.Unlock()
			return errors.Newf(errors.ErrTypeNotFound, "%s is not a loaded row", k)
		}
	}

	apply(e.sel)
	rev := e.bumpLocked()
	e.mu.Unlock()

	e.changed(rev)

	return nil
}

// Resolve maps operator input such as "users" or "users.email" to a row key
func (e *Explorer) Resolve(s string) (schema.RowKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tree.Resolve(s)
}

// Rows returns copies of the loaded rows
func (e *Explorer) Rows() []schema.TableRow {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tree.Rows()
}

// Selection returns a copy of the selection
func (e *Explorer) Selection() schema.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sel.Clone()
}

// Loading reports whether a request is in flight
func (e *Explorer) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.loading
}

// Revision increases with every visible change
func (e *Explorer) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.revision
}

// Snapshot returns a consistent copy of everything a renderer needs
func (e *Explorer) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Form:      e.form,
		Rows:      e.tree.Rows(),
		Selection: e.sel.Clone(),
		Loading:   e.loading,
		Revision:  e.revision,
	}
}

// Close cancels any in-flight request. Responses arriving afterwards are
// dropped and every later call fails with ErrClosed.
func (e *Explorer) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
}

func (e *Explorer) bumpLocked() uint64 {
	e.revision++
	return e.revision
}

func (e *Explorer) changed(rev uint64) {
	if e.onChange != nil {
		e.onChange(rev)
	}
}

func (e *Explorer) notifyLoading(loading bool) {
	if e.onLoading != nil {
		e.onLoading(loading)
	}
}
