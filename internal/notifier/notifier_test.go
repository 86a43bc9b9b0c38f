package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeVision/internal/model"
)

func newTestNotifier(srv *httptest.Server) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.APIBase = srv.URL
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv).Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>hi</b>", got["text"])
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"ok":false}`, http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv).SendWithRetry(context.Background(), "x", 2))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendWithRetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTestNotifier(srv).SendWithRetry(context.Background(), "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestStartPolling(t *testing.T) {
	var (
		mu      sync.Mutex
		sent    []string
		served  atomic.Bool
		handled []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if served.Swap(true) {
				<-r.Context().Done()
				return
			}
			w.Write([]byte(`{"ok":true,"result":[
				{"update_id":7,"message":{"text":" /summary ","chat":{"id":42}}},
				{"update_id":8,"message":{"text":"/reload","chat":{"id":99}}}
			]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var p map[string]string
			json.NewDecoder(r.Body).Decode(&p)
			mu.Lock()
			sent = append(sent, p["text"])
			mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	n := newTestNotifier(srv)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			mu.Lock()
			handled = append(handled, cmd)
			mu.Unlock()
			return "reply to " + cmd
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sent) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"/summary"}, handled, "commands from other chats are ignored")
	assert.Equal(t, []string{"reply to /summary"}, sent)
}

func TestFormatForecast(t *testing.T) {
	msg := FormatForecast("TSLA", &model.TrendForecast{TrendPrediction: "Up <soon> & strong", ConfidenceLevel: "70%"})
	assert.Contains(t, msg, "<b>TSLA trend forecast</b>")
	assert.Contains(t, msg, "Up &lt;soon&gt; &amp; strong")
	assert.Contains(t, msg, "<b>70%</b> ▰▰▰▰▰▰▰▱▱▱")
}

func TestFormatAnswer(t *testing.T) {
	msg := FormatAnswer("Is 5 > 3?", &model.Answer{Answer: "Yes"})
	assert.Equal(t, "❓ <i>Is 5 &gt; 3?</i>\n\nYes", msg)
}

func TestFormatSummary(t *testing.T) {
	assert.Contains(t, FormatSummary(model.Summary{Symbol: "TSLA"}), "No TSLA data loaded")

	s := model.Summary{
		Symbol: "TSLA", Points: 3,
		Start: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), End: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
		LastClose: 110.34, HighestHigh: 118.8, HighestDate: "2023-01-03",
		LongCount: 1, ShortCount: 1, UnknownCount: 1, Position: 0.5,
	}
	msg := FormatSummary(s)
	assert.Contains(t, msg, "2023-01-03 ~ 2023-01-05")
	assert.Contains(t, msg, "Highest high: 118.80 (2023-01-03)")
	assert.Contains(t, msg, "position 50%")
	assert.Contains(t, msg, "LONG 1 | SHORT 1 | None 0 | unlabeled 1")
}

func TestFormatLoad(t *testing.T) {
	ds := model.EmptyDataset("TSLA", "file:data.csv")
	ds.Error = "open data.csv: no such file"
	assert.Contains(t, FormatLoad(ds), "Reload failed")

	ds = model.EmptyDataset("TSLA", "file:data.csv")
	ds.Stats.RowsRead, ds.Stats.RowsKept = 3, 2
	ds.Stats.Dropped[model.DropEmptyTimestamp] = 1
	msg := FormatLoad(ds)
	assert.Contains(t, msg, "Rows kept: 2 / 3")
	assert.Contains(t, msg, "Dropped: 1")
	assert.NotContains(t, msg, "Level warnings")
}
