package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohawk/internal/config"
	"autohawk/pkg/models"
)

func params() models.SearchParameters {
	return models.NewSearchParameters("Land Rover", "Range Rover Sport", 2015, 2020, "90210", 100, true)
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder(config.DefaultSite())

	first := b.Build(params())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, b.Build(params()))
	}
	// a fresh builder agrees too
	assert.Equal(t, first, NewBuilder(config.DefaultSite()).Build(params()))
}

func TestBuildEncodesSiteParameters(t *testing.T) {
	targets := NewBuilder(config.DefaultSite()).Build(params())
	require.Len(t, targets, 1)

	target := targets[0]
	assert.Equal(t, "cars.com", target.Site)
	assert.Equal(t, "Land Rover Range Rover Sport 2015-2020", target.Label)

	u, err := url.Parse(target.URL)
	require.NoError(t, err)
	assert.Equal(t, "www.cars.com", u.Host)

	q := u.Query()
	assert.Equal(t, "land_rover", q.Get("makes[]"))
	assert.Equal(t, "land_rover-range_rover_sport", q.Get("models[]"))
	assert.Equal(t, "2015", q.Get("year_min"))
	assert.Equal(t, "2020", q.Get("year_max"))
	assert.Equal(t, "90210", q.Get("zip"))
	assert.Equal(t, "100", q.Get("maximum_distance"))
	assert.Equal(t, "20", q.Get("page_size"))
	assert.Equal(t, "no_accidents", q.Get("vehicle_history[]"))
	assert.Equal(t, "used", q.Get("stock_type"))
}

func TestBuildOmitsAccidentFilterWhenNotRequested(t *testing.T) {
	p := params()
	p.NoAccidentsOnly = false
	targets := NewBuilder(config.DefaultSite()).Build(p)

	u, err := url.Parse(targets[0].URL)
	require.NoError(t, err)
	_, present := u.Query()["vehicle_history[]"]
	assert.False(t, present)
}

func TestRadiusSnapsToSupportedOption(t *testing.T) {
	b := NewBuilder(config.DefaultSite())

	testCases := map[int]string{
		1:    "10",
		10:   "10",
		11:   "20",
		60:   "75",
		500:  "500",
		501:  "all",
		9999: "all",
	}
	for miles, want := range testCases {
		assert.Equal(t, want, b.radius(miles), miles)
	}
}

func TestYearRangeSplitsIntoChunks(t *testing.T) {
	site := config.DefaultSite()
	site.YearSpanPerTarget = 2
	p := params()
	p.YearMin, p.YearMax = 2015, 2019

	targets := NewBuilder(site).Build(p)
	require.Len(t, targets, 3)

	var spans [][2]string
	for _, target := range targets {
		u, err := url.Parse(target.URL)
		require.NoError(t, err)
		spans = append(spans, [2]string{u.Query().Get("year_min"), u.Query().Get("year_max")})
	}
	assert.Equal(t, [][2]string{{"2015", "2016"}, {"2017", "2018"}, {"2019", "2019"}}, spans)
}

func TestPageURL(t *testing.T) {
	target := NewBuilder(config.DefaultSite()).Build(params())[0]

	u, err := url.Parse(target.PageURL(3))
	require.NoError(t, err)
	assert.Equal(t, "3", u.Query().Get("page"))
	assert.Equal(t, "land_rover", u.Query().Get("makes[]"))

	assert.Equal(t, "::bad", QueryTarget{URL: "::bad", PageParam: "page"}.PageURL(2))
}

func TestSlugs(t *testing.T) {
	assert.Equal(t, "mercedes_benz", MakeSlug("Mercedes-Benz"))
	assert.Equal(t, "toyota", MakeSlug("  Toyota "))
	assert.Equal(t, "toyota-camry", ModelSlug("toyota", "Camry"))
	assert.Equal(t, "bmw-3_series", ModelSlug("bmw", "3 Series"))
}

func TestFingerprint(t *testing.T) {
	b := NewBuilder(config.DefaultSite())
	a := Fingerprint(b.Build(params()))

	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint(b.Build(params())))

	other := params()
	other.LocationCode = "10001"
	assert.NotEqual(t, a, Fingerprint(b.Build(other)))
}
