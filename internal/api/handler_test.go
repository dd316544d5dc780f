package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/bandtree/internal/api"
	"github.com/gyaneshwarpardhi/bandtree/internal/catalog"
	"github.com/gyaneshwarpardhi/bandtree/internal/command"
	"github.com/gyaneshwarpardhi/bandtree/internal/config"
	"github.com/gyaneshwarpardhi/bandtree/internal/editor"
	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
	"github.com/gyaneshwarpardhi/bandtree/internal/validation"
)

func newServer(t *testing.T, cfgPath string) *httptest.Server {
	t.Helper()
	loader, err := config.NewLoader(cfgPath)
	require.NoError(t, err)
	cfg := loader.Config()

	ctx, cancel := context.WithCancel(context.Background())
	ed := editor.New(ctx, catalog.New(cfg.Bands), cfg.Editor)
	srv := httptest.NewServer(api.New(ed, loader))
	t.Cleanup(func() {
		srv.Close()
		ed.Shutdown()
		cancel()
	})
	return srv
}

func do(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// createTree opens a tree and returns its id and root id.
func createTree(t *testing.T, srv *httptest.Server) (string, string) {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/trees", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap editor.Snapshot
	decode(t, resp, &snap)
	require.Len(t, snap.Projection.Nodes, 1)
	return snap.TreeID, snap.Projection.Nodes[0].ID
}

func applyCmd(t *testing.T, srv *httptest.Server, treeID string, cmd command.Command) editor.Outcome {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/trees/"+treeID+"/commands", cmd)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out editor.Outcome
	decode(t, resp, &out)
	return out
}

func TestHealthAndReady(t *testing.T) {
	srv := newServer(t, "")

	resp := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "ready", body["status"])

	resp = do(t, http.MethodGet, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTreeLifecycle(t *testing.T) {
	srv := newServer(t, "")
	id, root := createTree(t, srv)

	applyCmd(t, srv, id, command.Command{Kind: command.SetQuestion, NodeID: root, Text: "Is it managing?"})
	out := applyCmd(t, srv, id, command.Command{Kind: command.AddChild, NodeID: root, Direction: tree.Yes})
	require.NotNil(t, out.Node)
	child := out.Node.ID
	assert.NotEmpty(t, out.Command.ID, "command ids are assigned")

	applyCmd(t, srv, id, command.Command{Kind: command.SetQuestion, NodeID: child, Text: "Budget?"})
	applyCmd(t, srv, id, command.Command{Kind: command.SetBand, NodeID: child, Direction: tree.Yes, BandID: "band-1"})
	applyCmd(t, srv, id, command.Command{Kind: command.SetBand, NodeID: child, Direction: tree.No, BandID: "band-2"})
	out = applyCmd(t, srv, id, command.Command{Kind: command.SetBand, NodeID: root, Direction: tree.No, BandID: "band-3"})
	assert.True(t, out.Snapshot.Validation.Valid)
	assert.Equal(t, uint64(6), out.Snapshot.Revision)

	resp := do(t, http.MethodGet, srv.URL+"/v1/trees/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Nodes []tree.Node `json:"nodes"`
	}
	decode(t, resp, &got)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, root, got.Nodes[0].ID)
	assert.Equal(t, child, got.Nodes[0].Yes.NodeID)

	resp = do(t, http.MethodGet, srv.URL+"/v1/trees/"+id+"/projection", nil)
	var proj struct {
		Revision uint64 `json:"revision"`
		Nodes    []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
			Level int    `json:"level"`
		} `json:"nodes"`
		Edges []struct {
			ID string `json:"id"`
		} `json:"edges"`
	}
	decode(t, resp, &proj)
	assert.Equal(t, uint64(6), proj.Revision)
	require.Len(t, proj.Nodes, 2)
	assert.Equal(t, 1, proj.Nodes[1].Level)
	require.Len(t, proj.Edges, 1)
	assert.Equal(t, fmt.Sprintf("edge-%s-yes-%s", root, child), proj.Edges[0].ID)

	resp = do(t, http.MethodGet, srv.URL+"/v1/trees/"+id+"/validation", nil)
	var res validation.Result
	decode(t, resp, &res)
	assert.True(t, res.Valid)

	resp = do(t, http.MethodGet, srv.URL+"/v1/trees/"+id+"/leaves", nil)
	var leaves struct {
		Leaves []tree.Node `json:"leaves"`
	}
	decode(t, resp, &leaves)
	require.Len(t, leaves.Leaves, 1)
	assert.Equal(t, child, leaves.Leaves[0].ID)

	resp = do(t, http.MethodDelete, srv.URL+"/v1/trees/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, srv.URL+"/v1/trees/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommandErrors(t *testing.T) {
	srv := newServer(t, "")
	id, root := createTree(t, srv)
	url := srv.URL + "/v1/trees/" + id + "/commands"

	cases := []struct {
		name string
		body interface{}
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"unknown kind", command.Command{Kind: "rename", NodeID: root}, http.StatusBadRequest},
		{"bad direction", command.Command{Kind: command.AddChild, NodeID: root, Direction: "up"}, http.StatusBadRequest},
		{"missing node", command.Command{Kind: command.AddChild, NodeID: "ghost", Direction: tree.Yes}, http.StatusNotFound},
		{"root delete", command.Command{Kind: command.DeleteSubtree, NodeID: root}, http.StatusUnprocessableEntity},
		{"unknown band", command.Command{Kind: command.SetBand, NodeID: root, Direction: tree.Yes, BandID: "band-9"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, url, tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
			var e struct {
				Error string `json:"error"`
			}
			decode(t, resp, &e)
			assert.NotEmpty(t, e.Error)
		})
	}

	resp := do(t, http.MethodPost, srv.URL+"/v1/trees/nope/commands", command.Command{Kind: command.DeleteSubtree, NodeID: root})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBatch(t *testing.T) {
	srv := newServer(t, "")
	id, root := createTree(t, srv)
	url := srv.URL + "/v1/trees/" + id + "/commands/batch"

	resp := do(t, http.MethodPost, url, []command.Command{
		{Kind: command.SetQuestion, NodeID: root, Text: "Q"},
		{Kind: command.DeleteSubtree, NodeID: root},
		{Kind: command.SetQuestion, NodeID: root, Text: "never"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var failed struct {
		Index    int              `json:"index"`
		Applied  int              `json:"applied"`
		Snapshot *editor.Snapshot `json:"snapshot"`
	}
	decode(t, resp, &failed)
	assert.Equal(t, 1, failed.Index)
	assert.Equal(t, 1, failed.Applied)
	assert.Equal(t, "Q", failed.Snapshot.Projection.Nodes[0].Label)

	resp = do(t, http.MethodPost, url, []command.Command{
		{Kind: command.SetBand, NodeID: root, Direction: tree.Yes, BandID: "band-1"},
		{Kind: command.SetBand, NodeID: root, Direction: tree.No, BandID: "band-2"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ok struct {
		Applied  int              `json:"applied"`
		Snapshot *editor.Snapshot `json:"snapshot"`
	}
	decode(t, resp, &ok)
	assert.Equal(t, 2, ok.Applied)
	assert.True(t, ok.Snapshot.Validation.Valid)

	resp = do(t, http.MethodPost, url, []command.Command{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	big := make([]command.Command, 101)
	for i := range big {
		big[i] = command.Command{Kind: command.SetQuestion, NodeID: root, Text: "x"}
	}
	resp = do(t, http.MethodPost, url, big)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExport(t *testing.T) {
	srv := newServer(t, "")
	id, root := createTree(t, srv)
	url := srv.URL + "/v1/trees/" + id + "/export"

	resp := do(t, http.MethodGet, url+"?require_valid=true", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var refused struct {
		Error      string            `json:"error"`
		Validation validation.Result `json:"validation"`
	}
	decode(t, resp, &refused)
	assert.Equal(t, validation.MsgUnbandedLeaf, refused.Error)
	assert.True(t, refused.Validation.Has(root, validation.UnbandedLeaf))

	resp = do(t, http.MethodGet, url+"?format=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	var nodes []tree.Node
	decode(t, resp, &nodes)
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].IsRoot)

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp2.StatusCode)

	resp = do(t, http.MethodGet, url+"?format=yaml", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Equal(t, etag, resp.Header.Get("ETag"), "fingerprint does not depend on format")
}

func TestImport(t *testing.T) {
	srv := newServer(t, "")

	doc := `{
		"_id": "banding_decision_tree",
		"version": "1.0",
		"root": {
			"question": "Managing?",
			"yes": {"bandId": "band-1"},
			"no": {"question": "Budget?", "yes": {"bandId": "band-2"}, "no": {"bandId": "band-3"}}
		}
	}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/trees?format=nested", doc)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap editor.Snapshot
	decode(t, resp, &snap)
	assert.Len(t, snap.Projection.Nodes, 2)
	assert.True(t, snap.Validation.Valid)

	twoRoots := `[{"id":"a","question":"","isRoot":true,"yes":{"nodeId":null,"bandId":null},"no":{"nodeId":null,"bandId":null}},
		{"id":"b","question":"","isRoot":true,"yes":{"nodeId":null,"bandId":null},"no":{"nodeId":null,"bandId":null}}]`
	resp = do(t, http.MethodPost, srv.URL+"/v1/trees", twoRoots)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/v1/trees?format=xml", "<tree/>")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/trees", nil)
	var list struct {
		Trees []string `json:"trees"`
	}
	decode(t, resp, &list)
	assert.Equal(t, []string{snap.TreeID}, list.Trees)
}

func TestFlushDraft(t *testing.T) {
	srv := newServer(t, "")
	id, root := createTree(t, srv)

	applyCmd(t, srv, id, command.Command{Kind: command.DraftQuestion, NodeID: root, Text: "Drafted"})
	resp := do(t, http.MethodPost, srv.URL+"/v1/trees/"+id+"/drafts/"+root+"/flush", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Flushed  bool             `json:"flushed"`
		Snapshot *editor.Snapshot `json:"snapshot"`
	}
	decode(t, resp, &body)
	assert.True(t, body.Flushed)
	assert.Equal(t, "Drafted", body.Snapshot.Projection.Nodes[0].Label)
}

func TestBands(t *testing.T) {
	srv := newServer(t, "")

	resp := do(t, http.MethodGet, srv.URL+"/v1/bands", nil)
	var all struct {
		Count int            `json:"count"`
		Bands []catalog.Band `json:"bands"`
	}
	decode(t, resp, &all)
	assert.Equal(t, 3, all.Count)

	resp = do(t, http.MethodGet, srv.URL+"/v1/bands?q=C", nil)
	var some struct {
		Bands []catalog.Band `json:"bands"`
	}
	decode(t, resp, &some)
	require.Len(t, some.Bands, 1)
	assert.Equal(t, "band-3", some.Bands[0].ID)
}

func TestReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\nbands:\n  - id: x\n    name: Band X\n"), 0o644))
	srv := newServer(t, path)

	require.NoError(t, os.WriteFile(path, []byte("version: v2\nbands:\n  - id: x\n    name: Band X\n  - id: y\n    name: Band Y\n"), 0o644))
	resp := do(t, http.MethodPost, srv.URL+"/v1/config/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "v2", body["version"])
	assert.EqualValues(t, 2, body["bands_count"])

	id, root := createTree(t, srv)
	applyCmd(t, srv, id, command.Command{Kind: command.SetBand, NodeID: root, Direction: tree.Yes, BandID: "y"})

	require.NoError(t, os.WriteFile(path, []byte("bands:\n  - id: x\n    name: Band X\n"), 0o644))
	resp = do(t, http.MethodPost, srv.URL+"/v1/config/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "missing version is rejected")
}

func TestStream(t *testing.T) {
	srv := newServer(t, "")
	id, root := createTree(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/trees/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	type frame struct {
		Type      string           `json:"type"`
		CommandID string           `json:"command_id"`
		Error     string           `json:"error"`
		Snapshot  *editor.Snapshot `json:"snapshot"`
	}
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "snapshot", f.Type)
	assert.Equal(t, uint64(0), f.Snapshot.Revision)

	require.NoError(t, conn.WriteJSON(command.Command{Kind: command.SetQuestion, NodeID: root, Text: "Streamed"}))
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "snapshot", f.Type)
	assert.Equal(t, uint64(1), f.Snapshot.Revision)
	assert.Equal(t, "Streamed", f.Snapshot.Projection.Nodes[0].Label)

	require.NoError(t, conn.WriteJSON(command.Command{ID: "c-9", Kind: command.DeleteSubtree, NodeID: root}))
	f = frame{}
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "c-9", f.CommandID)
	assert.Contains(t, f.Error, "root")

	// Changes made over HTTP are pushed too.
	applyCmd(t, srv, id, command.Command{Kind: command.AddChild, NodeID: root, Direction: tree.No})
	f = frame{}
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, uint64(2), f.Snapshot.Revision)
	assert.Len(t, f.Snapshot.Projection.Nodes, 2)

	resp := do(t, http.MethodDelete, srv.URL+"/v1/trees/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestStream_UnknownTree(t *testing.T) {
	srv := newServer(t, "")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/trees/nope/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
