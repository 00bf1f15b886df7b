package wakeonlan

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/wolgate/internal/recon"
	"github.com/HerbHall/wolgate/internal/server"
	"github.com/HerbHall/wolgate/internal/testutil"
	"github.com/HerbHall/wolgate/pkg/models"
)

func (f *moduleFixture) handler() http.Handler {
	mux := http.NewServeMux()
	for _, r := range f.module.Routes() {
		mux.HandleFunc(r.Method+" "+r.Path, r.Handler)
	}
	return mux
}

func (f *moduleFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.handler().ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) server.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var p server.Problem
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	return p
}

func pingFixture(t *testing.T) *moduleFixture {
	t.Helper()
	return newModuleFixture(t, moduleOptions{
		settings:  map[string]any{"devices": []string{macOne, macTwo}, "check_ping": true},
		neighbors: []recon.Neighbor{neighborOne()},
	})
}

func TestHandleListDevices(t *testing.T) {
	f := pingFixture(t)

	rr := f.do(t, http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var devices []models.Device
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.Equal(t, idOne, devices[0].ID)
	assert.Equal(t, "WoL (AA:BB:CC:DD:EE:01)", devices[0].Title)
	assert.Equal(t, models.ThingContext, devices[0].Context)
}

func TestHandleListDevices_Empty(t *testing.T) {
	f := newModuleFixture(t, moduleOptions{})

	rr := f.do(t, http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestHandleGetDevice(t *testing.T) {
	f := pingFixture(t)

	rr := f.do(t, http.MethodGet, "/devices/"+idOne, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var d models.Device
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&d))
	assert.Equal(t, "AA:BB:CC:DD:EE:01", d.MACAddress)
	assert.Equal(t, "10.0.0.5", d.IPAddress)
	assert.Equal(t, models.ReachabilityUnreachable, d.Reachability)

	rr = f.do(t, http.MethodGet, "/devices/"+idTwo, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, server.ProblemTypeNotFound, decodeProblem(t, rr).Type)
}

func TestHandleProperty(t *testing.T) {
	f := pingFixture(t)
	f.checker.Set("10.0.0.5", true)
	require.NoError(t, f.module.Adapter().HandleProbeResult(idOne, true))

	rr := f.do(t, http.MethodGet, "/devices/"+idOne+"/properties/on", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"on": true}`, rr.Body.String())

	rr = f.do(t, http.MethodPut, "/devices/"+idOne+"/properties/on", `{"on": false}`)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET", rr.Header().Get("Allow"))
	p := decodeProblem(t, rr)
	assert.Equal(t, server.ProblemTypeMethodNotAllowed, p.Type)
	assert.Equal(t, ErrReadOnlyProperty.Error(), p.Detail)

	rr = f.do(t, http.MethodGet, "/devices/"+idOne+"/properties/on", "")
	assert.JSONEq(t, `{"on": true}`, rr.Body.String(), "write attempt must not change the value")

	rr = f.do(t, http.MethodGet, "/devices/"+idOne+"/properties/level", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleProperty_PingDisabled(t *testing.T) {
	f := newModuleFixture(t, moduleOptions{
		settings:  map[string]any{"devices": []string{macOne}},
		neighbors: []recon.Neighbor{neighborOne()},
	})

	rr := f.do(t, http.MethodGet, "/devices/"+idOne+"/properties/on", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleWake(t *testing.T) {
	f := pingFixture(t)

	rr := f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/wake", "")
	require.Equal(t, http.StatusAccepted, rr.Code)

	var rec models.ActionRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.ActionCompleted, rec.Status)
	assert.Equal(t, SourceHTTP, rec.Source)
	assert.NotNil(t, rec.CompletedAt)
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:01"}, f.sender.Sent())

	completed := f.events.EventsFor(TopicActionCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, rec.ID, completed[0].Payload.(*ActionEvent).Action.ID)
}

func TestHandleWake_TransmissionFailure(t *testing.T) {
	f := pingFixture(t)
	f.sender.Fail(errors.New("sendto: network is unreachable"))
	before := f.module.Adapter().Devices()[0].Snapshot()

	rr := f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/wake", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	p := decodeProblem(t, rr)
	assert.Contains(t, p.Detail, "network is unreachable")
	assert.Len(t, f.sender.Sent(), 1)

	failed := f.events.EventsFor(TopicActionFailed)
	require.Len(t, failed, 1)
	rec := failed[0].Payload.(*ActionEvent).Action
	assert.Equal(t, models.ActionError, rec.Status)
	assert.NotEmpty(t, rec.Error)
	assert.Empty(t, f.events.EventsFor(TopicActionCompleted))

	after := f.module.Adapter().Devices()[0].Snapshot()
	assert.Equal(t, before.Reachability, after.Reachability, "failed wake leaves device state unchanged")
}

func TestHandleWake_RateLimited(t *testing.T) {
	f := newModuleFixture(t, moduleOptions{
		settings:  map[string]any{"devices": []string{macOne}, "wake_rate": 0.001, "wake_burst": 1},
		neighbors: []recon.Neighbor{neighborOne()},
	})

	rr := f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/wake", "")
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/wake", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Equal(t, server.ProblemTypeRateLimited, decodeProblem(t, rr).Type)
	assert.Len(t, f.sender.Sent(), 1, "limited requests never reach the network")
}

func TestHandleAction_Errors(t *testing.T) {
	f := pingFixture(t)

	rr := f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/reboot", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/devices/"+idTwo+"/actions/wake", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.Empty(t, f.sender.Sent())
}

func TestHandleListActions(t *testing.T) {
	for _, noStore := range []bool{false, true} {
		name := "store"
		if noStore {
			name = "memory"
		}
		t.Run(name, func(t *testing.T) {
			f := newModuleFixture(t, moduleOptions{
				settings:  map[string]any{"devices": []string{macOne}},
				neighbors: []recon.Neighbor{neighborOne()},
				noStore:   noStore,
			})
			f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/wake", "")
			f.sender.Fail(errors.New("boom"))
			f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/wake", "")

			rr := f.do(t, http.MethodGet, "/devices/"+idOne+"/actions?limit=10", "")
			require.Equal(t, http.StatusOK, rr.Code)
			var recs []models.ActionRecord
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&recs))
			require.Len(t, recs, 2)
			statuses := []models.ActionStatus{recs[0].Status, recs[1].Status}
			assert.ElementsMatch(t, []models.ActionStatus{models.ActionCompleted, models.ActionError}, statuses)

			rr = f.do(t, http.MethodGet, "/devices/"+idOne+"/actions?limit=1", "")
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&recs))
			assert.Len(t, recs, 1)

			rr = f.do(t, http.MethodGet, "/devices/"+idTwo+"/actions", "")
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}
}

func TestHandleHistory(t *testing.T) {
	f := pingFixture(t)
	require.NoError(t, f.module.Adapter().HandleProbeResult(idOne, true))

	rr := f.do(t, http.MethodGet, "/devices/"+idOne+"/history", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var transitions []models.Transition
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&transitions))
	require.Len(t, transitions, 2)
	tos := []models.Reachability{transitions[0].To, transitions[1].To}
	assert.ElementsMatch(t, []models.Reachability{models.ReachabilityReachable, models.ReachabilityUnreachable}, tos)
}

func TestHandleHistory_NoStore(t *testing.T) {
	f := newModuleFixture(t, moduleOptions{
		settings:  map[string]any{"devices": []string{macOne}, "check_ping": true},
		neighbors: []recon.Neighbor{neighborOne()},
		noStore:   true,
	})

	rr := f.do(t, http.MethodGet, "/devices/"+idOne+"/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleDeleteDevice(t *testing.T) {
	f := pingFixture(t)

	rr := f.do(t, http.MethodDelete, "/devices/"+idOne, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, f.module.Adapter().Sweeping())
	require.Len(t, f.events.EventsFor(TopicDeviceRemoved), 1)

	rr = f.do(t, http.MethodDelete, "/devices/"+idOne, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Len(t, f.events.EventsFor(TopicDeviceRemoved), 1)
}

func TestHandleDiscover(t *testing.T) {
	f := pingFixture(t)
	f.scanner.Then(
		neighborOne(),
		testutil.NewNeighbor(testutil.WithNeighborMAC(macTwo), testutil.WithNeighborIP("10.0.0.6"), testutil.WithNeighborName("desk")),
	)

	rr := f.do(t, http.MethodPost, "/discover", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Added   []models.Device `json:"added"`
		Pending []string        `json:"pending"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Added, 1)
	assert.Equal(t, "desk", body.Added[0].Title)
	assert.Empty(t, body.Pending)
	assert.Len(t, f.module.Adapter().Devices(), 2)
}

func TestHandleDiscover_ScanFailure(t *testing.T) {
	f := pingFixture(t)
	f.scanner.ThenFail(errors.New("arp unavailable"))

	rr := f.do(t, http.MethodPost, "/discover", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, server.ProblemTypeBadGateway, decodeProblem(t, rr).Type)
}

func TestHandleWake_Timestamps(t *testing.T) {
	clock := testutil.NewClock()
	f := newModuleFixture(t, moduleOptions{
		settings:  map[string]any{"devices": []string{macOne}},
		neighbors: []recon.Neighbor{neighborOne()},
		clock:     clock,
	})
	requested := clock.Now()

	rr := f.do(t, http.MethodPost, "/devices/"+idOne+"/actions/wake", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	var rec models.ActionRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.True(t, rec.RequestedAt.Equal(requested))
	require.NotNil(t, rec.CompletedAt)
	assert.True(t, rec.CompletedAt.Equal(requested))

	completed := f.events.EventsFor(TopicActionCompleted)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Timestamp.Equal(requested))
}
