package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFetch(t *testing.T) {
	r := New()
	r.ObserveFetch("xai", "ok", 12, 300*time.Millisecond)
	r.ObserveFetch("xai", "ok", 14, 200*time.Millisecond)
	r.ObserveFetch("nvidia", "failed", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetches.WithLabelValues("xai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetches.WithLabelValues("nvidia", "failed")))
	assert.Equal(t, 14.0, testutil.ToFloat64(r.models.WithLabelValues("xai")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.fetchSeconds))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveDocument(DocumentUpdated)
	r.ObserveDocument(DocumentUnchanged)
	r.ObserveDocument(DocumentUpdated)
	r.Finish(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "modelsync.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `modelsync_documents_total{result="updated"} 2`)
	assert.Contains(t, out, `modelsync_documents_total{result="unchanged"} 1`)
	assert.True(t, strings.Contains(out, "\nmodelsync_last_run_timestamp_seconds 1.7e+09\n"), out)
}

func TestWriteTextfileBadDir(t *testing.T) {
	err := New().WriteTextfile(filepath.Join(t.TempDir(), "missing", "m.prom"))
	assert.Error(t, err)
}
