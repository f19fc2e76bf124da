package account

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gen-console/internal/api"
	"github.com/kyleking/gen-console/internal/errors"
)

type request struct {
	method string
	path   string
	body   Form
}

// fakeClient serves account records and can block saves until released
type fakeClient struct {
	mu       sync.Mutex
	requests []request
	record   Record
	getErr   error
	saveErr  error
	gate     chan struct{}
	entered  chan struct{}
}

func (f *fakeClient) add(r request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()
}

func (f *fakeClient) snapshot() []request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]request(nil), f.requests...)
}

func (f *fakeClient) hold(ctx context.Context) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}

	if f.gate == nil {
		return nil
	}

	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeClient) Get(ctx context.Context, path string, _ url.Values, resp interface{}) error {
	f.add(request{method: http.MethodGet, path: path})

	if err := f.hold(ctx); err != nil {
		return err
	}

	if f.getErr != nil {
		return f.getErr
	}

	*resp.(*Record) = f.record

	return nil
}

func (f *fakeClient) save(ctx context.Context, method, path string, body, resp interface{}) error {
	form := body.(Form)
	f.add(request{method: method, path: path, body: form})

	if err := f.hold(ctx); err != nil {
		return err
	}

	if f.saveErr != nil {
		return f.saveErr
	}

	id := form.ID
	if id == "" {
		id = "new-id"
	}

	*resp.(*Record) = Record{ID: id, Account: form.Account, Email: form.Email, Enabled: form.Enabled}

	return nil
}

func (f *fakeClient) Post(ctx context.Context, path string, body, resp interface{}) error {
	return f.save(ctx, http.MethodPost, path, body, resp)
}

func (f *fakeClient) Put(ctx context.Context, path string, body, resp interface{}) error {
	return f.save(ctx, http.MethodPut, path, body, resp)
}

func (f *fakeClient) Delete(context.Context, string, interface{}) error {
	panic("unexpected DELETE")
}

type observer struct {
	ok     []Record
	tips   []string
	states []State
}

func newEditor(client api.Client) (*Editor, *observer) {
	obs := &observer{}

	e := NewEditor(Options{
		Client:        client,
		OnOK:          func(r Record) { obs.ok = append(obs.ok, r) },
		Notify:        func(tip string) { obs.tips = append(obs.tips, tip) },
		OnStateChange: func(s State) { obs.states = append(obs.states, s) },
	})

	return e, obs
}

func TestCreateModeIssuesNoGet(t *testing.T) {
	client := &fakeClient{}
	e, obs := newEditor(client)

	require.NoError(t, e.Open(context.Background(), ""))

	assert.Empty(t, client.snapshot())
	assert.Equal(t, Ready, e.State())
	assert.Equal(t, Form{}, e.Form())
	assert.Equal(t, "Add account", e.Title())
	assert.Equal(t, []State{Ready}, obs.states)
}

func TestEditModeFetchesOnce(t *testing.T) {
	client := &fakeClient{record: Record{ID: "42", Account: "bob", Email: "bob@example.com", Mobile: "13900139000", Enabled: true}}
	e, obs := newEditor(client)

	require.NoError(t, e.Open(context.Background(), "42"))

	reqs := client.snapshot()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].method)
	assert.Equal(t, "/user-center/42", reqs[0].path)

	form := e.Form()
	assert.Equal(t, "42", form.ID)
	assert.Equal(t, "bob", form.Account)
	assert.Empty(t, form.Password, "password is never prefilled")
	assert.Equal(t, "Edit account", e.Title())
	assert.Equal(t, []State{Loading, Ready}, obs.states)
}

func TestEditModeAgainstHTTPBackend(t *testing.T) {
	var gets atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/user-center/42" {
			gets.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"42","account":"bob","email":"bob@example.com","enabled":true}`)

			return
		}

		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := api.NewClient(api.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	e, _ := newEditor(client)
	require.NoError(t, e.Open(context.Background(), "42"))

	_, err = e.Submit(context.Background())
	require.Error(t, err, "password is required before saving")

	assert.Equal(t, int32(1), gets.Load())
}

func TestOpenWhileLoadingDoesNotFetchAgain(t *testing.T) {
	client := &fakeClient{record: Record{ID: "42"}, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	e, _ := newEditor(client)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Open(context.Background(), "42") }()

	<-client.entered
	assert.ErrorIs(t, e.Open(context.Background(), "42"), ErrInFlight)

	_, err := e.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInFlight, "no submission before the fetch completes")

	close(client.gate)
	require.NoError(t, <-errCh)
	assert.Len(t, client.snapshot(), 1)
}

func TestSubmitCreate(t *testing.T) {
	client := &fakeClient{}
	e, obs := newEditor(client)

	require.NoError(t, e.Open(context.Background(), ""))
	require.NoError(t, e.SetForm(validForm()))

	rec, err := e.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-id", rec.ID)

	reqs := client.snapshot()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/user-center", reqs[0].path)
	assert.Empty(t, reqs[0].body.ID)

	assert.Equal(t, Closed, e.State())
	assert.Len(t, obs.ok, 1)
	assert.Equal(t, []string{CreatedTip}, obs.tips)
	assert.Equal(t, []State{Ready, Submitting, Closed}, obs.states)
}

func TestSubmitEditSendsHiddenID(t *testing.T) {
	client := &fakeClient{record: Record{ID: "42", Account: "bob", Email: "bob@example.com"}}
	e, obs := newEditor(client)

	require.NoError(t, e.Open(context.Background(), "42"))

	form := e.Form()
	form.ID = "tampered"
	form.Password = "new-pass"
	require.NoError(t, e.SetForm(form))
	assert.Equal(t, "42", e.Form().ID)

	_, err := e.Submit(context.Background())
	require.NoError(t, err)

	reqs := client.snapshot()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPut, reqs[1].method)
	assert.Equal(t, "/user-center", reqs[1].path)
	assert.Equal(t, "42", reqs[1].body.ID)
	assert.Equal(t, []string{UpdatedTip}, obs.tips)
}

func TestSecondSubmitWhileInFlightIsNoop(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	e, _ := newEditor(client)

	require.NoError(t, e.Open(context.Background(), ""))
	require.NoError(t, e.SetForm(validForm()))

	errCh := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background())
		errCh <- err
	}()

	<-client.entered
	assert.Equal(t, Submitting, e.State())

	_, err := e.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(client.gate)
	require.NoError(t, <-errCh)
	assert.Len(t, client.snapshot(), 1, "no duplicate request")
}

func TestSubmitFailureReturnsToReady(t *testing.T) {
	client := &fakeClient{saveErr: errors.New(errors.ErrTypeConflict, "account already exists")}
	e, obs := newEditor(client)

	require.NoError(t, e.Open(context.Background(), ""))
	require.NoError(t, e.SetForm(validForm()))

	_, err := e.Submit(context.Background())
	require.Error(t, err)

	assert.Equal(t, Ready, e.State())
	assert.Equal(t, validForm(), e.Form(), "form survives a failed save")
	assert.Empty(t, obs.ok)
	assert.Empty(t, obs.tips)
}

func TestSubmitValidationFailureSendsNothing(t *testing.T) {
	client := &fakeClient{}
	e, _ := newEditor(client)

	require.NoError(t, e.Open(context.Background(), ""))

	_, err := e.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Empty(t, client.snapshot())
	assert.Equal(t, Ready, e.State())
}

func TestReset(t *testing.T) {
	client := &fakeClient{record: Record{ID: "42", Account: "bob", Email: "bob@example.com"}}
	e, _ := newEditor(client)

	require.NoError(t, e.Open(context.Background(), "42"))
	initial := e.Form()

	changed := initial
	changed.Account = "robert"
	require.NoError(t, e.SetForm(changed))
	require.NoError(t, e.Reset())

	assert.Equal(t, initial, e.Form())
}

func TestCloseCancelsInFlightSave(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	e, obs := newEditor(client)

	require.NoError(t, e.Open(context.Background(), ""))
	require.NoError(t, e.SetForm(validForm()))

	errCh := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background())
		errCh <- err
	}()

	<-client.entered
	e.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrNotOpen)
	case <-time.After(2 * time.Second):
		t.Fatal("close did not cancel the save")
	}

	assert.Equal(t, Closed, e.State())
	assert.Empty(t, obs.ok, "a late response never reaches the parent")
}

func TestOperationsOnClosedEditor(t *testing.T) {
	e, _ := newEditor(&fakeClient{})

	_, err := e.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, e.SetForm(validForm()), ErrNotOpen)
	assert.ErrorIs(t, e.Reset(), ErrNotOpen)

	require.NoError(t, e.Open(context.Background(), ""))
	assert.ErrorIs(t, e.Open(context.Background(), ""), ErrAlreadyOpen)
}

func TestOpenFetchFailureLeavesEditableForm(t *testing.T) {
	client := &fakeClient{getErr: errors.New(errors.ErrTypeNotFound, "account not found")}
	e, _ := newEditor(client)

	err := e.Open(context.Background(), "404")
	require.Error(t, err)
	assert.Equal(t, Ready, e.State())
	assert.Equal(t, "404", e.Form().ID)
}

func TestRecordJSONHasNoPassword(t *testing.T) {
	data, err := json.Marshal(Record{ID: "1", Account: "a"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}
