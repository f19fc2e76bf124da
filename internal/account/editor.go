package account

import (
	"context"
	"net/url"
	"sync"

	"github.com/kyleking/gen-console/internal/api"
	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/logging"
)

const resourcePath = "/user-center"

// Success tips shown after a save
const (
	CreatedTip = "created successfully"
	UpdatedTip = "updated successfully"
)

// State is the editor's lifecycle state
type State int

const (
	Closed State = iota
	Loading
	Ready
	Submitting
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	default:
		return "unknown"
	}
}

var (
	// ErrInFlight is returned while the initial fetch or a save is running
	ErrInFlight = errors.New(errors.ErrTypeBusy, "a request is already in flight")
	// ErrNotOpen is returned by operations that need an open editor
	ErrNotOpen = errors.New(errors.ErrTypeClosed, "account editor is not open")
	// ErrAlreadyOpen is returned by Open on an editor that is already open
	ErrAlreadyOpen = errors.New(errors.ErrTypeConflict, "account editor is already open")
)

// Options wires an Editor to its collaborators
type Options struct {
	Client api.Client
	Logger *logging.Logger
	// OnOK is the parent's completion callback, called after a successful save
	OnOK func(Record)
	// Notify shows a success tip to the operator
	Notify func(tip string)
	// OnStateChange observes every state transition
	OnStateChange func(State)
}

// Editor is the create/edit account modal. Open starts a session; Close
// ends it and cancels whatever request is still running.
type Editor struct {
	client   api.Client
	logger   *logging.Logger
	onOK     func(Record)
	notify   func(string)
	onChange func(State)

	mu      sync.Mutex
	state   State
	id      string
	form    Form
	initial Form
	session uint64
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewEditor returns a closed editor
func NewEditor(opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Editor{
		client:   opts.Client,
		logger:   logger.WithField("component", "account-editor"),
		onOK:     opts.OnOK,
		notify:   opts.Notify,
		onChange: opts.OnStateChange,
	}
}

// Open starts editing. An empty id opens an empty create form; otherwise the
// account is fetched once and the form filled from it, password left blank.
func (e *Editor) Open(ctx context.Context, id string) error {
	e.mu.Lock()
	switch e.state {
	case Loading:
		e.mu.Unlock()
		return ErrInFlight
	case Ready, Submitting:
		e.mu.Unlock()
		return ErrAlreadyOpen
	}

	e.session++
	session := e.session
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.id = id
	e.form = Form{ID: id}
	e.initial = e.form

	if id == "" {
		e.state = Ready
		e.mu.Unlock()
		e.changed(Ready)

		return nil
	}

	e.state = Loading
	lifetime := e.ctx
	e.mu.Unlock()
	e.changed(Loading)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(lifetime, cancel)
	defer stop()

	var rec Record

	err := e.logger.Track("fetch account", func() error {
		return e.client.Get(reqCtx, resourcePath+"/"+url.PathEscape(id), nil, &rec)
	})

	e.mu.Lock()
	if e.session != session || e.state != Loading {
		e.mu.Unlock()
		return ErrNotOpen
	}

	if err == nil {
		e.form = FormFromRecord(rec)
		e.form.ID = id
		e.initial = e.form
	}
	e.mu.Unlock()

	e.transition(session, Ready)

	return err
}

// Title is the modal heading for the current mode
func (e *Editor) Title() string {
	if e.IsEdit() {
		return "Edit account"
	}

	return "Add account"
}

// IsEdit reports whether the open session edits an existing account
func (e *Editor) IsEdit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.id != ""
}

// State returns the current state
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Form returns the current form values
func (e *Editor) Form() Form {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.form
}

// SetForm replaces the form values. The hidden id cannot be changed.
func (e *Editor) SetForm(f Form) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireReadyLocked(); err != nil {
		return err
	}

	f.ID = e.id
	e.form = f

	return nil
}

// Reset restores the form to what it was right after Open
func (e *Editor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireReadyLocked(); err != nil {
		return err
	}

	e.form = e.initial

	return nil
}

func (e *Editor) requireReadyLocked() error {
	switch e.state {
	case Closed:
		return ErrNotOpen
	case Loading, Submitting:
		return ErrInFlight
	default:
		return nil
	}
}

// Submit validates and saves the form: PUT with the hidden id in edit mode,
// POST in create mode. Success closes the editor and calls OnOK; failure
// returns to ready with the form untouched.
func (e *Editor) Submit(ctx context.Context) (*Record, error) {
	e.mu.Lock()
	if err := e.requireReadyLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	form := e.form
	if err := Validate(form); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	session := e.session
	lifetime := e.ctx
	edit := e.id != ""
	e.state = Submitting
	e.mu.Unlock()
	e.changed(Submitting)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(lifetime, cancel)
	defer stop()

	var rec Record

	err := e.logger.WithField("form", form.String()).Track("save account", func() error {
		if edit {
			return e.client.Put(reqCtx, resourcePath, form, &rec)
		}

		form.ID = ""

		return e.client.Post(reqCtx, resourcePath, form, &rec)
	})

	if err != nil {
		if e.transition(session, Ready) {
			return nil, err
		}

		return nil, ErrNotOpen
	}

	if rec.ID == "" {
		rec = Record{ID: form.ID, Account: form.Account, Name: form.Name, Mobile: form.Mobile, Email: form.Email, Enabled: form.Enabled}
	}

	if !e.transition(session, Closed) {
		return nil, ErrNotOpen
	}

	if e.onOK != nil {
		e.onOK(rec)
	}

	if e.notify != nil {
		tip := CreatedTip
		if edit {
			tip = UpdatedTip
		}

		e.notify(tip)
	}

	return &rec, nil
}

// Close dismisses the editor and cancels its in-flight request, if any.
// A late response is then discarded.
func (e *Editor) Close() {
	e.mu.Lock()
	cancel := e.cancel
	wasOpen := e.state != Closed
	e.state = Closed
	e.session++
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if wasOpen {
		e.changed(Closed)
	}
}

// transition moves to next unless the session ended meanwhile
func (e *Editor) transition(session uint64, next State) bool {
	e.mu.Lock()
	if e.session != session {
		e.mu.Unlock()
		return false
	}

	e.state = next
	cancel := e.cancel

	if next == Closed {
		e.cancel = nil
	}
	e.mu.Unlock()

	if next == Closed && cancel != nil {
		cancel()
	}

	e.changed(next)

	return true
}

func (e *Editor) changed(s State) {
	if e.onChange != nil {
		e.onChange(s)
	}
}
