package paginate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohawk/internal/logging"
	"autohawk/internal/scraper/extract"
	"autohawk/internal/scraper/query"
	"autohawk/internal/scraper/session"
	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// scriptedLoader serves pages by URL; listed errors are returned in order before succeeding
type scriptedLoader struct {
	errs   map[string][]error
	always error
	calls  []string
	onLoad func(n int)
}

func (l *scriptedLoader) Load(ctx context.Context, url string) (*session.PageHandle, error) {
	l.calls = append(l.calls, url)
	if l.onLoad != nil {
		l.onLoad(len(l.calls))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.always != nil {
		return nil, l.always
	}
	if queue := l.errs[url]; len(queue) > 0 {
		l.errs[url] = queue[1:]
		return nil, queue[0]
	}
	return session.NewPageHandle(url, url), nil
}

// scriptedExtractor maps page URLs to outcomes
type scriptedExtractor struct {
	pages map[string]*extract.Outcome
	errs  map[string]error
}

func (e *scriptedExtractor) Extract(page *session.PageHandle) (*extract.Outcome, error) {
	if err, ok := e.errs[page.URL()]; ok {
		return nil, err
	}
	if out, ok := e.pages[page.URL()]; ok {
		return out, nil
	}
	return &extract.Outcome{}, nil
}

func records(prefix string, n int) []models.ListingRecord {
	out := make([]models.ListingRecord, n)
	for i := range out {
		out[i] = models.ListingRecord{ID: fmt.Sprintf("%s-%d", prefix, i), Make: "Toyota", Model: "Camry", Year: 2018, Price: 20000 + i}
	}
	return out
}

func target() query.QueryTarget {
	return query.QueryTarget{Label: "t", URL: "https://cars.test/results?q=1", PageParam: "page"}
}

func newController(e Extractor) *Controller {
	return New(e, WithLogger(logging.NewLogger(logging.ErrorLevel)))
}

var defaultLimits = Limits{MaxPages: 10, MaxResults: 100, MaxConsecutiveFailures: 3}

func TestCollectDeduplicatesFirstWins(t *testing.T) {
	tg := target()
	page1 := records("a", 2)
	dup := page1[0]
	dup.Price = 1
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		tg.URL:        {Records: page1, HasNextPage: true},
		tg.PageURL(2): {Records: append([]models.ListingRecord{dup}, records("b", 1)...)},
	}}

	result, err := newController(e).Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{tg}, defaultLimits)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	assert.Equal(t, 20000, result.Records[0].Price)
	assert.Equal(t, 2, result.PagesVisited)
	assert.False(t, result.Truncated())
}

func TestCollectFifteenRecordScenario(t *testing.T) {
	tg := target()
	page1 := records("p1", 10)
	page2 := append(records("p2", 5), page1[3])
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		tg.URL:        {Records: page1, HasNextPage: true},
		tg.PageURL(2): {Records: page2, HasNextPage: false},
	}}

	result, err := newController(e).Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{tg}, defaultLimits)
	require.NoError(t, err)
	assert.Len(t, result.Records, 15)
	assert.Equal(t, models.TruncationNone, result.TruncationReason)
	assert.Equal(t, 2, result.PagesVisited)
}

func TestCollectFailureThreshold(t *testing.T) {
	loader := &scriptedLoader{always: utils.NewNavigationError("x", errors.New("connection refused"))}
	c := newController(&scriptedExtractor{})

	result, err := c.Collect(context.Background(), loader, []query.QueryTarget{target()}, defaultLimits)
	require.NoError(t, err)
	assert.Equal(t, models.TruncationFailureThreshold, result.TruncationReason)
	assert.LessOrEqual(t, len(loader.calls), defaultLimits.MaxConsecutiveFailures+1)
	assert.Empty(t, result.Records)
	assert.Len(t, result.PageFailures, defaultLimits.MaxConsecutiveFailures)
	assert.True(t, errors.Is(c.LastFailure(), utils.ErrNavigation))
}

func TestCollectRetriesSamePageOnce(t *testing.T) {
	tg := target()
	loader := &scriptedLoader{errs: map[string][]error{
		tg.URL: {utils.NewBlockedError(tg.URL, "g-recaptcha")},
	}}
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{tg.URL: {Records: records("a", 3)}}}

	result, err := newController(e).Collect(context.Background(), loader, []query.QueryTarget{tg}, defaultLimits)
	require.NoError(t, err)
	assert.Equal(t, []string{tg.URL, tg.URL}, loader.calls)
	assert.Len(t, result.Records, 3)
	assert.Len(t, result.PageFailures, 1)
	assert.Equal(t, "blocked", result.PageFailures[0].Kind)
	assert.False(t, result.Truncated())
}

func TestCollectAdvancesAfterFailedRetry(t *testing.T) {
	tg := target()
	navErr := utils.NewNavigationError(tg.URL, errors.New("reset"))
	loader := &scriptedLoader{errs: map[string][]error{tg.URL: {navErr, navErr}}}
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{tg.PageURL(2): {Records: records("b", 2)}}}

	limits := defaultLimits
	limits.MaxConsecutiveFailures = 5
	result, err := newController(e).Collect(context.Background(), loader, []query.QueryTarget{tg}, limits)
	require.NoError(t, err)
	assert.Equal(t, []string{tg.URL, tg.URL, tg.PageURL(2)}, loader.calls)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 1, result.PagesVisited)
}

func TestCollectSchemaErrorIsNotRetried(t *testing.T) {
	tg := target()
	e := &scriptedExtractor{
		errs:  map[string]error{tg.URL: utils.NewExtractionSchemaError(tg.URL, "no cards")},
		pages: map[string]*extract.Outcome{tg.PageURL(2): {Records: records("b", 1)}},
	}
	loader := &scriptedLoader{}

	result, err := newController(e).Collect(context.Background(), loader, []query.QueryTarget{tg}, defaultLimits)
	require.NoError(t, err)
	assert.Equal(t, []string{tg.URL, tg.PageURL(2)}, loader.calls)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, "extraction_schema", result.PageFailures[0].Kind)
}

func TestCollectSuccessResetsFailureCounter(t *testing.T) {
	tg := target()
	schema := func(u string) error { return utils.NewExtractionSchemaError(u, "bad") }
	e := &scriptedExtractor{
		errs: map[string]error{
			tg.URL:        schema(tg.URL),
			tg.PageURL(3): schema(tg.PageURL(3)),
		},
		pages: map[string]*extract.Outcome{
			tg.PageURL(2): {Records: records("b", 1), HasNextPage: true},
			tg.PageURL(4): {Records: records("d", 1)},
		},
	}

	limits := defaultLimits
	limits.MaxConsecutiveFailures = 2
	result, err := newController(e).Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{tg}, limits)
	require.NoError(t, err)
	assert.Equal(t, models.TruncationNone, result.TruncationReason)
	assert.Len(t, result.Records, 2)
}

func TestCollectPageCap(t *testing.T) {
	tg := target()
	pages := map[string]*extract.Outcome{}
	for i := 1; i <= 5; i++ {
		pages[tg.PageURL(i)] = &extract.Outcome{Records: records(fmt.Sprint(i), 1), HasNextPage: true}
	}
	pages[tg.URL] = pages[tg.PageURL(1)]

	limits := defaultLimits
	limits.MaxPages = 2
	result, err := newController(&scriptedExtractor{pages: pages}).Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{tg}, limits)
	require.NoError(t, err)
	assert.Equal(t, models.TruncationPageCap, result.TruncationReason)
	assert.Equal(t, 2, result.PagesVisited)
}

func TestCollectResultCap(t *testing.T) {
	tg := target()
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		tg.URL: {Records: records("a", 8), HasNextPage: true},
	}}

	limits := defaultLimits
	limits.MaxResults = 5
	result, err := newController(e).Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{tg}, limits)
	require.NoError(t, err)
	assert.Equal(t, models.TruncationResultCap, result.TruncationReason)
	assert.Len(t, result.Records, 5)
}

func TestCollectHasNextTakesPriorityOverCaps(t *testing.T) {
	tg := target()
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		tg.URL: {Records: records("a", 5), HasNextPage: false},
	}}

	limits := Limits{MaxPages: 1, MaxResults: 5, MaxConsecutiveFailures: 3}
	result, err := newController(e).Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{tg}, limits)
	require.NoError(t, err)
	assert.Equal(t, models.TruncationNone, result.TruncationReason)
}

func TestCollectStopsOnCycle(t *testing.T) {
	tg := target()
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		tg.URL:        {Records: records("a", 1), HasNextPage: true, NextURL: tg.PageURL(2)},
		tg.PageURL(2): {Records: records("b", 1), HasNextPage: true, NextURL: tg.URL},
	}}
	loader := &scriptedLoader{}

	result, err := newController(e).Collect(context.Background(), loader, []query.QueryTarget{tg}, defaultLimits)
	require.NoError(t, err)
	assert.Len(t, loader.calls, 2)
	assert.Len(t, result.Records, 2)
	assert.False(t, result.Truncated())
}

func TestCollectMultipleTargets(t *testing.T) {
	a := target()
	b := query.QueryTarget{Label: "b", URL: "https://cars.test/results?q=2", PageParam: "page"}
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		a.URL: {Records: records("a", 2)},
		b.URL: {Records: append(records("a", 1), records("b", 2)...)},
	}}

	result, err := newController(e).Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{a, b}, defaultLimits)
	require.NoError(t, err)
	assert.Len(t, result.Records, 4)
	assert.Equal(t, 2, result.PagesVisited)
}

func TestCollectCancelled(t *testing.T) {
	tg := target()
	ctx, cancel := context.WithCancel(context.Background())
	loader := &scriptedLoader{onLoad: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		tg.URL: {Records: records("a", 4), HasNextPage: true},
	}}

	result, err := newController(e).Collect(ctx, loader, []query.QueryTarget{tg}, defaultLimits)
	require.NoError(t, err)
	assert.Equal(t, models.TruncationCancelled, result.TruncationReason)
	assert.Len(t, result.Records, 4)
}

func TestCollectTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	result, err := newController(&scriptedExtractor{}).Collect(ctx, &scriptedLoader{}, []query.QueryTarget{target()}, defaultLimits)
	require.NoError(t, err)
	assert.Equal(t, models.TruncationTimeout, result.TruncationReason)
}

func TestCollectPropagatesClosedSession(t *testing.T) {
	loader := &scriptedLoader{always: utils.NewSessionClosedError("load")}

	result, err := newController(&scriptedExtractor{}).Collect(context.Background(), loader, []query.QueryTarget{target()}, defaultLimits)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrSessionClosed))
	require.NotNil(t, result)
	assert.Len(t, loader.calls, 1)
}

func TestCursorNormalizesVisitedURLs(t *testing.T) {
	c := NewPageCursor(target())
	c.MarkVisited()
	assert.True(t, c.Visited("https://cars.test/results?q=1#top"))
	assert.False(t, c.Follow("https://cars.test/results?q=1"))
	assert.True(t, c.Follow(""))
	assert.Equal(t, 2, c.Page)
	assert.Equal(t, target().PageURL(2), c.URL)
}

func TestCollectFilteredRecordsDoNotCountTowardResultCap(t *testing.T) {
	tg := target()
	page1 := records("a", 4)
	page1[0].Accidents = models.AccidentReported
	page1[2].Accidents = models.AccidentReported
	page2 := append([]models.ListingRecord{page1[0]}, records("b", 2)...)
	e := &scriptedExtractor{pages: map[string]*extract.Outcome{
		tg.URL:        {Records: page1, HasNextPage: true},
		tg.PageURL(2): {Records: page2, HasNextPage: true},
	}}

	keep := func(r models.ListingRecord) bool { return r.Accidents != models.AccidentReported }
	c := New(e, WithLogger(logging.NewLogger(logging.ErrorLevel)), WithFilter(keep))

	limits := Limits{MaxPages: 10, MaxResults: 3, MaxConsecutiveFailures: 3}
	result, err := c.Collect(context.Background(), &scriptedLoader{}, []query.QueryTarget{tg}, limits)
	require.NoError(t, err)

	ids := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a-1", "a-3", "b-0"}, ids)
	assert.Equal(t, 2, result.Filtered)
	assert.Equal(t, 2, result.PagesVisited)
	assert.Equal(t, models.TruncationResultCap, result.TruncationReason)
}
