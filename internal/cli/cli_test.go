package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/roomlink/internal/api"
	"github.com/sgerhart/roomlink/internal/model"
)

func fakeCoordinator(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.RoomsResponse{
			Rooms: map[string]api.RoomInfo{
				"roomb": {Address: "10.0.0.6:42096", Name: "Room B"},
				"rooma": {Address: "10.0.0.5:42096", Name: "Room A"},
			},
			Total: 2,
		})
	})
	mux.HandleFunc("POST /commands/{verb}", func(w http.ResponseWriter, r *http.Request) {
		var req api.CommandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		verb := model.Verb(r.PathValue("verb"))
		if req.Room != "" {
			json.NewEncoder(w).Encode(model.Outcome{Status: model.OutcomeResolved, Verb: verb, Target: "rooma", Remote: true})
			return
		}
		json.NewEncoder(w).Encode(model.Proposal{
			Correlation: "c-1",
			Verb:        verb,
			Warning:     "A session may already be in use",
			Targets: []model.Target{
				{ID: "local", Label: "Main Room", Token: string(verb) + ":local"},
				{ID: "rooma", Label: "Room A", Token: string(verb) + ":rooma"},
			},
		})
	})
	mux.HandleFunc("POST /selections", func(w http.ResponseWriter, r *http.Request) {
		var sel model.Selection
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sel))
		if sel.Correlation != "c-1" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(model.Outcome{Status: model.OutcomeStale, Message: "selection is no longer pending"})
			return
		}
		json.NewEncoder(w).Encode(model.Outcome{Status: model.OutcomeResolved, Verb: model.VerbOpen, Target: "local"})
	})
	mux.HandleFunc("DELETE /rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func executeCLI(t *testing.T, coordinator string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ROOMCTL_COORDINATOR_URL", coordinator)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

func TestRooms(t *testing.T) {
	srv := fakeCoordinator(t)

	stdout, err := executeCLI(t, srv.URL, "rooms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rooms: 2")
	assert.Less(t, bytes.Index([]byte(stdout), []byte("rooma")), bytes.Index([]byte(stdout), []byte("roomb")))
}

func TestRooms_JSON(t *testing.T) {
	srv := fakeCoordinator(t)

	stdout, err := executeCLI(t, srv.URL, "rooms", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
}

func TestOpen_Proposes(t *testing.T) {
	srv := fakeCoordinator(t)

	stdout, err := executeCLI(t, srv.URL, "open", "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, stdout, "warning: A session may already be in use")
	assert.Contains(t, stdout, "open:local\tMain Room")
	assert.Contains(t, stdout, "roomctl select c-1 <token>")
}

func TestCreate_Direct(t *testing.T) {
	srv := fakeCoordinator(t)

	stdout, err := executeCLI(t, srv.URL, "create", "--room", "Room A")
	require.NoError(t, err)
	assert.Contains(t, stdout, "resolved create on rooma (remote)")
}

func TestSelect(t *testing.T) {
	srv := fakeCoordinator(t)

	stdout, err := executeCLI(t, srv.URL, "select", "c-1", "open:local")
	require.NoError(t, err)
	assert.Contains(t, stdout, "resolved open on local (local)")

	_, err = executeCLI(t, srv.URL, "select", "c-2", "open:local")
	assert.ErrorContains(t, err, "status 409")
}

func TestRemove(t *testing.T) {
	srv := fakeCoordinator(t)

	stdout, err := executeCLI(t, srv.URL, "remove", "rooma")
	require.NoError(t, err)
	assert.Equal(t, "Removed rooma\n", stdout)
}

func TestOpen_RequiresURL(t *testing.T) {
	srv := fakeCoordinator(t)

	_, err := executeCLI(t, srv.URL, "open")
	assert.Error(t, err)
}
