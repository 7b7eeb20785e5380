package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/fetch"
	"github.com/Ruscigno/marketsum/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned markup per page.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[int]string
	errs   map[int]error
	called []int
	onCall func(page int)
}

func (f *fakeFetcher) FetchPage(_ context.Context, page int) (string, error) {
	f.mu.Lock()
	f.called = append(f.called, page)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(page)
	}
	if err, ok := f.errs[page]; ok {
		return "", err
	}
	return f.pages[page], nil
}

type recorder struct {
	progress []int
	errs     []string
	records  []model.Record
	finished []Completion
}

func (r *recorder) Progress(p int)              { r.progress = append(r.progress, p) }
func (r *recorder) Error(msg string)            { r.errs = append(r.errs, msg) }
func (r *recorder) Records(recs []model.Record) { r.records = recs }

func (r *recorder) Finished(count int, elapsed float64) {
	r.finished = append(r.finished, Completion{Count: count, ElapsedSeconds: elapsed})
}

func TestRun_EndToEnd(t *testing.T) {
	pages := map[string]string{
		"1": testutil.DefaultPage(
			testutil.StockRow("삼성전자", "4,000,000", "4,500,000", "900,000", "55.10", "12.50", "1.30"),
			testutil.StockRow("SK하이닉스", "1,000,000", "1,000,000", "400,000", "50.00", "8.00", "1.80"),
			testutil.StockRow("LG에너지솔루션", "900,000", "50,000", "20,000", "3.00", "90.00", "4.20"),
		),
		"2": testutil.DefaultPage(
			testutil.StockRow("NAVER", "300,000", "35,000", "7,000", "45.00", "30.00", "1.50"),
			testutil.StockRow("카카오", "N/A", "20,000", "10,000", "30.00", "40.00", "2.10"),
		),
	}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		u := r.URL.Query().Get("returnUrl")
		page := u[len(u)-1:]
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, pages[page])
	}))
	defer srv.Close()

	cfg := fetch.DefaultConfig()
	cfg.BaseURL = srv.URL
	client, err := fetch.NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	rec := &recorder{}
	c := NewCrawler(client, WithPageDelay(0))
	result := c.Run(context.Background(), 2, rec)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, []int{50, 100}, rec.progress)
	assert.Empty(t, rec.errs)
	require.Equal(t, 4, result.Count)
	require.Len(t, rec.finished, 1)
	assert.Equal(t, 4, rec.finished[0].Count)
	assert.Equal(t, result.Records, rec.records)

	names := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"삼성전자", "SK하이닉스", "LG에너지솔루션", "NAVER"}, names)
	assert.InDelta(t, 80.0, result.Records[0].EquityRatio, 1e-9)
	assert.InDelta(t, 60.0, result.Records[1].EquityRatio, 1e-9)
	assert.InDelta(t, 60.0, result.Records[2].EquityRatio, 1e-9)
	assert.InDelta(t, 80.0, result.Records[3].EquityRatio, 1e-9)
	assert.Equal(t, 1, result.RowsSkipped)
	assert.Zero(t, result.PagesFailed)
	assert.False(t, result.Cancelled)
}

func TestRun_FailedPageDoesNotStopLaterPages(t *testing.T) {
	f := &fakeFetcher{
		pages: map[int]string{
			1: testutil.DefaultPage(testutil.StockRow("A", "1", "10", "5", "1", "1", "1")),
			3: testutil.DefaultPage(testutil.StockRow("C", "3", "10", "2", "1", "1", "1")),
		},
		errs: map[int]error{
			2: &errors.NetworkError{Page: 2, StatusCode: 503, Cause: fmt.Errorf("status 503 after 6 attempts")},
		},
	}
	rec := &recorder{}
	result := NewCrawler(f, WithPageDelay(0)).Run(context.Background(), 3, rec)

	assert.Equal(t, []int{1, 2, 3}, f.called)
	assert.Equal(t, []int{33, 66, 100}, rec.progress)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, "page 2: status 503 after 6 attempts", rec.errs[0])
	assert.Equal(t, 1, result.PagesFailed)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, "A", result.Records[0].Name)
	assert.Equal(t, "C", result.Records[1].Name)
}

func TestRun_ParseErrorIsReported(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{1: "<html><body>blocked</body></html>"}}
	rec := &recorder{}
	result := NewCrawler(f, WithPageDelay(0)).Run(context.Background(), 1, rec)

	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0], "page 1: parse error")
	assert.Equal(t, []int{100}, rec.progress)
	assert.Zero(t, result.Count)
	assert.NotNil(t, result.Records)
}

func TestRun_SkipsIncompleteRows(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{
		1: testutil.DefaultPage(
			testutil.StockRow("A", "1", "10", "5", "1", "1", "1"),
			testutil.StockRow("B", "1", "10", "5", "1", "N/A", "1"),
			testutil.StockRow("C", "1", "10", "bad", "1", "1", "1"),
		),
	}}
	rec := &recorder{}
	result := NewCrawler(f, WithPageDelay(0)).Run(context.Background(), 1, rec)

	assert.Empty(t, rec.errs, "row drops are not error notifications")
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 2, result.RowsSkipped)
}

func TestRun_ProgressMonotonic(t *testing.T) {
	const n = 7
	f := &fakeFetcher{pages: map[int]string{}}
	for i := 1; i <= n; i++ {
		f.pages[i] = testutil.DefaultPage(testutil.StockRow("S"+strconv.Itoa(i), "1", "1", "0", "1", "1", "1"))
	}
	rec := &recorder{}
	NewCrawler(f, WithPageDelay(0)).Run(context.Background(), n, rec)

	require.Len(t, rec.progress, n)
	for i := 1; i < n; i++ {
		assert.GreaterOrEqual(t, rec.progress[i], rec.progress[i-1])
	}
	assert.Equal(t, 100, rec.progress[n-1])
}

func TestRun_PausesBetweenPagesOnly(t *testing.T) {
	var stamps []time.Time
	f := &fakeFetcher{
		pages:  map[int]string{1: testutil.DefaultPage(), 2: testutil.DefaultPage()},
		onCall: func(int) { stamps = append(stamps, time.Now()) },
	}
	const delay = 50 * time.Millisecond

	start := time.Now()
	NewCrawler(f, WithPageDelay(delay)).Run(context.Background(), 2, nil)
	total := time.Since(start)

	require.Len(t, stamps, 2)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), delay)
	assert.Less(t, total, 2*delay, "no pause after the last page")
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{pages: map[int]string{1: testutil.DefaultPage()}}
	rec := &recorder{}
	result := NewCrawler(f, WithPageDelay(0)).Run(ctx, 5, rec)

	assert.True(t, result.Cancelled)
	assert.Empty(t, f.called)
	assert.Empty(t, rec.progress)
	require.Len(t, rec.finished, 1)
	assert.Zero(t, rec.finished[0].Count)
}

func TestRun_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{pages: map[int]string{
		1: testutil.DefaultPage(testutil.StockRow("S", "1", "1", "0", "1", "1", "1")),
	}}
	f.onCall = func(int) { time.AfterFunc(20*time.Millisecond, cancel) }

	rec := &recorder{}
	result := NewCrawler(f, WithPageDelay(time.Hour)).Run(ctx, 3, rec)

	assert.True(t, result.Cancelled)
	assert.Equal(t, []int{1}, f.called)
	assert.Equal(t, 1, result.Count, "completed pages are kept")
	assert.Equal(t, []int{33}, rec.progress)
}

func TestStart_ChannelObserver(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{
		1: testutil.DefaultPage(testutil.StockRow("A", "1", "10", "5", "1", "1", "1")),
		2: testutil.DefaultPage(testutil.StockRow("B", "1", "10", "5", "1", "1", "1")),
	}}
	obs := NewChannelObserver(2)

	done := NewCrawler(f, WithPageDelay(0)).Start(context.Background(), 2, obs)
	result := <-done

	var progress []int
	for p := range obs.ProgressC {
		progress = append(progress, p)
	}
	assert.Equal(t, []int{50, 100}, progress)

	records := <-obs.RecordsC
	assert.Len(t, records, 2)

	fin := <-obs.FinishedC
	assert.Equal(t, 2, fin.Count)
	assert.Equal(t, result.Count, fin.Count)

	_, open := <-done
	assert.False(t, open)
}
