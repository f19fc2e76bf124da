package explorer

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/prefs"
	"github.com/kyleking/gen-console/internal/schema"
)

type call struct {
	method string
	path   string
	query  url.Values
	body   interface{}
}

// fakeClient answers from canned JSON and can hold requests until released
type fakeClient struct {
	mu      sync.Mutex
	calls   []call
	getBody string
	getErr  error
	postRes string
	postErr error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeClient) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeClient) wait(ctx context.Context) error {
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
		return errors.Wrap(ctx.Err(), errors.ErrTypeClosed, "cancelled")
	}
}

func (f *fakeClient) Get(ctx context.Context, path string, query url.Values, resp interface{}) error {
	f.record(call{method: "GET", path: path, query: query})

	if err := f.wait(ctx); err != nil {
		return err
	}

	if f.getErr != nil {
		return f.getErr
	}

	return json.Unmarshal([]byte(f.getBody), resp)
}

func (f *fakeClient) Post(ctx context.Context, path string, body, resp interface{}) error {
	f.record(call{method: "POST", path: path, body: body})

	if err := f.wait(ctx); err != nil {
		return err
	}

	if f.postErr != nil {
		return f.postErr
	}

	return json.Unmarshal([]byte(f.postRes), resp)
}

func (f *fakeClient) Put(context.Context, string, interface{}, interface{}) error {
	panic("unexpected PUT")
}

func (f *fakeClient) Delete(context.Context, string, interface{}) error {
	panic("unexpected DELETE")
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

const tablesBody = `{
  "tables": [
    {"name": "T1", "comment": "users", "columns": [
      {"camelCaseName": "c1", "name": "c1", "type": "varchar", "length": 32, "isNullable": false, "comment": "", "chinese": "Name"},
      {"camelCaseName": "c2", "name": "c2", "type": "bigint", "length": null, "isNullable": true, "comment": "", "chinese": ""}
    ]}
  ],
  "ignoreFields": ["c2"]
}`

func newExplorer(t *testing.T, client *fakeClient) (*Explorer, *prefs.MemoryStore) {
	t.Helper()

	store := prefs.NewMemoryStore()
	e := New(Options{Client: client, Prefs: store})
	t.Cleanup(e.Close)

	return e, store
}

func TestSubmitLoadsTreeAndSelection(t *testing.T) {
	client := &fakeClient{getBody: tablesBody}

	var loading []bool
	var revisions []uint64

	e := New(Options{
		Client:    client,
		OnLoading: func(l bool) { loading = append(loading, l) },
		OnChange:  func(r uint64) { revisions = append(revisions, r) },
	})
	defer e.Close()

	require.NoError(t, e.Submit(context.Background(), Form{DBURL: "postgres://db/app"}))

	require.Len(t, client.calls, 1)
	assert.Equal(t, "/gen/tables", client.calls[0].path)
	assert.Equal(t, "postgres://db/app", client.calls[0].query.Get("dbUrl"))

	sel := e.Selection()
	assert.True(t, sel.Has(schema.TableKey("T1")))
	assert.True(t, sel.Has(schema.ColumnKey("T1", "c1")))
	assert.False(t, sel.Has(schema.ColumnKey("T1", "c2")))

	rows := e.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "c2", rows[0].Columns[1].Chinese)

	assert.Equal(t, []bool{true, false}, loading)
	assert.Equal(t, []uint64{1}, revisions)
	assert.False(t, e.Loading())
	assert.Equal(t, "postgres://db/app", e.Form().DBURL)
}

func TestSubmitRequiresDBURL(t *testing.T) {
	client := &fakeClient{}
	e, _ := newExplorer(t, client)

	err := e.Submit(context.Background(), Form{DBURL: "  "})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Zero(t, client.callCount())
}

func TestSubmitFailureKeepsPreviousState(t *testing.T) {
	client := &fakeClient{getBody: tablesBody}
	e, _ := newExplorer(t, client)

	require.NoError(t, e.Submit(context.Background(), Form{DBURL: "postgres://db/app"}))
	require.NoError(t, e.Deselect(schema.ColumnKey("T1", "c1")))
	before := e.Snapshot()

	client.getErr = errors.New(errors.ErrTypeAPI, "database unreachable")

	err := e.Submit(context.Background(), Form{DBURL: "postgres://other/app"})
	require.Error(t, err)

	after := e.Snapshot()
	assert.Equal(t, before.Rows, after.Rows)
	assert.Equal(t, before.Selection, after.Selection)
	assert.Equal(t, before.Revision, after.Revision)
	assert.False(t, after.Loading, "loading is cleared even on failure")
}

func TestSecondFetchWhileInFlightIsNoop(t *testing.T) {
	client := &fakeClient{getBody: tablesBody, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	e, _ := newExplorer(t, client)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Submit(context.Background(), Form{DBURL: "postgres://db/app"}) }()

	<-client.entered
	assert.True(t, e.Loading())

	err := e.Submit(context.Background(), Form{DBURL: "postgres://db/app"})
	assert.ErrorIs(t, err, ErrInFlight)

	_, err = e.Generate(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(client.gate)
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, client.callCount())
}

func TestCloseCancelsAndDiscardsLateResponse(t *testing.T) {
	client := &fakeClient{getBody: tablesBody, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	e := New(Options{Client: client})

	errCh := make(chan error, 1)
	go func() { errCh <- e.Submit(context.Background(), Form{DBURL: "postgres://db/app"}) }()

	<-client.entered
	e.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("close did not cancel the in-flight request")
	}

	assert.Empty(t, e.Rows())
	assert.ErrorIs(t, e.Submit(context.Background(), Form{DBURL: "x"}), ErrClosed)
	assert.ErrorIs(t, e.ChangeDBURL("x"), ErrClosed)
}

func TestChangeDBURLPersistsEveryChange(t *testing.T) {
	client := &fakeClient{}
	e, store := newExplorer(t, client)

	require.NoError(t, e.ChangeDBURL("postgres://a"))
	require.NoError(t, e.ChangeDBURL("postgres://ab"))

	v, ok, err := store.Get(DBURLKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "postgres://ab", v)
	assert.Zero(t, client.callCount(), "changing the input never fetches")
}

func TestMount(t *testing.T) {
	t.Run("no stored url", func(t *testing.T) {
		client := &fakeClient{getBody: tablesBody}
		e, _ := newExplorer(t, client)

		fetched, err := e.Mount(context.Background())
		require.NoError(t, err)
		assert.False(t, fetched)
		assert.Zero(t, client.callCount())
	})

	t.Run("empty stored url", func(t *testing.T) {
		client := &fakeClient{getBody: tablesBody}
		e, store := newExplorer(t, client)
		require.NoError(t, store.Set(DBURLKey, ""))

		fetched, err := e.Mount(context.Background())
		require.NoError(t, err)
		assert.False(t, fetched)
	})

	t.Run("stored url auto-submits", func(t *testing.T) {
		client := &fakeClient{getBody: tablesBody}
		e, store := newExplorer(t, client)
		require.NoError(t, store.Set(DBURLKey, "mysql://root@db/app"))

		fetched, err := e.Mount(context.Background())
		require.NoError(t, err)
		assert.True(t, fetched)
		assert.Equal(t, "mysql://root@db/app", e.Form().DBURL)
		require.Equal(t, 1, client.callCount())
		assert.Equal(t, "mysql://root@db/app", client.calls[0].query.Get("dbUrl"))
		assert.Len(t, e.Rows(), 1)
	})
}

func TestToggleAndEditsBumpRevision(t *testing.T) {
	client := &fakeClient{getBody: tablesBody}
	e, _ := newExplorer(t, client)
	require.NoError(t, e.Submit(context.Background(), Form{DBURL: "postgres://db/app"}))

	flags, err := e.Toggle("T1", schema.PageEdit)
	require.NoError(t, err)
	assert.True(t, flags.PageEdit)
	assert.False(t, flags.ModalEdit)

	require.NoError(t, e.SetField(schema.ColumnKey("T1", "c1"), "userName"))
	require.NoError(t, e.SetChinese(schema.ColumnKey("T1", "c1"), "User"))
	assert.Equal(t, uint64(4), e.Revision())

	_, err = e.Toggle("missing", schema.Add)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.Equal(t, uint64(4), e.Revision())
}

func TestSelectionChanges(t *testing.T) {
	client := &fakeClient{getBody: tablesBody}
	e, _ := newExplorer(t, client)
	require.NoError(t, e.Submit(context.Background(), Form{DBURL: "postgres://db/app"}))

	require.NoError(t, e.Select(schema.ColumnKey("T1", "c2")))
	assert.True(t, e.Selection().Has(schema.ColumnKey("T1", "c2")))

	require.NoError(t, e.Deselect(schema.TableKey("T1")))
	assert.False(t, e.Selection().Has(schema.TableKey("T1")))
	assert.True(t, e.Selection().Has(schema.ColumnKey("T1", "c1")), "columns stay selected on their own")

	require.NoError(t, e.SetSelection(schema.NewSelection(schema.TableKey("T1"))))
	assert.Equal(t, []schema.RowKey{schema.TableKey("T1")}, e.Selection().Keys())

	err := e.Select(schema.ColumnKey("T1", "ghost"))
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	key, err := e.Resolve("T1.c2")
	require.NoError(t, err)
	assert.Equal(t, schema.ColumnKey("T1", "c2"), key)
}

func TestGeneratePostsProjectedSelection(t *testing.T) {
	client := &fakeClient{getBody: tablesBody, postRes: `{"files":["t1/model.go","t1/page.json"],"tables":1}`}
	e, _ := newExplorer(t, client)
	require.NoError(t, e.Submit(context.Background(), Form{DBURL: "postgres://db/app"}))

	result, err := e.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tables)
	assert.Len(t, result.Files, 2)

	require.Equal(t, 2, client.callCount())
	post := client.calls[1]
	assert.Equal(t, "POST", post.method)
	assert.Equal(t, "/gen/tables", post.path)

	req, ok := post.body.(schema.GenRequest)
	require.True(t, ok)
	require.Len(t, req.Tables, 1)
	require.Len(t, req.Tables[0].Children, 1)
	assert.Equal(t, "c1", req.Tables[0].Children[0].Name)
}

func TestGenerateEmptySelectionPostsEmptyList(t *testing.T) {
	client := &fakeClient{postRes: `{"files":[],"tables":0}`}
	e, _ := newExplorer(t, client)

	_, err := e.Generate(context.Background())
	require.NoError(t, err)

	req := client.calls[0].body.(schema.GenRequest)
	assert.NotNil(t, req.Tables)
	assert.Empty(t, req.Tables)
}

func TestGenerateFailureClearsLoading(t *testing.T) {
	client := &fakeClient{postErr: errors.New(errors.ErrTypeAPI, "boom")}
	e, _ := newExplorer(t, client)

	_, err := e.Generate(context.Background())
	require.Error(t, err)
	assert.False(t, e.Loading())
}
