package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mholloway/switchback/internal/schedule"
)

func TestStatusEndpoints(t *testing.T) {
	dir := t.TempDir()
	src := testSource(t, dir)
	w := testWindow(t)

	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	e := NewEngine(stubWindows{w: w}, src, &stubSetter{}, nil, schedule.WakeConfig{
		Fallback: 5 * time.Minute,
	}, m)

	_, err := e.Step(context.Background(), w.Start.Add(time.Minute))
	require.NoError(t, err)

	srv := httptest.NewServer(newStatusServer(":0", e, reg).srv.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "morning", st.Period)
	assert.Equal(t, src[schedule.Morning], st.Image)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "switchback_wallpaper_sets_total 1")
	assert.Contains(t, string(body), "switchback_loop_wakes_total 1")
}
