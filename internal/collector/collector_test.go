package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeVision/internal/model"
)

const sampleCSV = csvHeader +
	`2023-01-03,118.47,118.8,104.64,108.1,231402800,LONG,"[105.2, 104.9]",[120.5]` + "\n" +
	`2023-01-04,109.11,114.59,107.52,113.64,180389000,SHORT,,` + "\n"

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stock.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectorReload(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	c := NewCollector(&FileSource{Path: path}, "TSLA", ParseOptions{}, nil)

	assert.True(t, c.Current().Empty(), "nothing published before the first reload")

	var hooked []*model.Dataset
	c.OnLoaded(func(ds *model.Dataset) { hooked = append(hooked, ds) })

	ds := c.Reload(context.Background())
	require.Empty(t, ds.Error)
	assert.Len(t, ds.Points, 2)
	assert.Equal(t, sampleCSV, ds.Raw, "raw text is kept verbatim")
	assert.Equal(t, "TSLA", ds.Symbol)
	assert.Equal(t, "file:"+path, ds.Source)
	assert.Same(t, ds, c.Current())
	require.Len(t, hooked, 1)
	assert.Same(t, ds, hooked[0])
}

func TestCollectorReloadFailurePublishesEmpty(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	c := NewCollector(&FileSource{Path: path}, "TSLA", ParseOptions{}, nil)
	require.False(t, c.Reload(context.Background()).Empty())

	require.NoError(t, os.Remove(path))
	ds := c.Reload(context.Background())
	assert.True(t, ds.Empty())
	assert.False(t, ds.HasRaw(), "a failed load must not keep the previous raw text")
	assert.Contains(t, ds.Error, "read csv")
	assert.Same(t, ds, c.Current())
}

func TestCollectRawAndPointsStayPaired(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	c := NewCollector(&FileSource{Path: path}, "TSLA", ParseOptions{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Reload(context.Background())
		}()
		go func() {
			defer wg.Done()
			ds := c.Current()
			if ds.HasRaw() {
				points, _ := Parse(ds.Raw, ParseOptions{})
				assert.Len(t, ds.Points, len(points))
			}
		}()
	}
	wg.Wait()
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tsla.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/tsla.csv", "")
	c := NewCollector(src, "TSLA", ParseOptions{}, nil)
	ds, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Points, 2)
	assert.Equal(t, srv.URL+"/tsla.csv", ds.Source)

	_, err = NewHTTPSource(srv.URL+"/missing.csv", "").Fetch(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestFileSourceHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&FileSource{Path: writeCSV(t, sampleCSV)}).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
