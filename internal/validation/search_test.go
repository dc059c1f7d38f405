package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

func validParams() models.SearchParameters {
	return models.NewSearchParameters("Toyota", "Camry", 2015, 2020, "90210", 100, true)
}

func TestValidateParameters(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(p *models.SearchParameters)
		wantErr string
	}{
		{name: "valid", mutate: func(p *models.SearchParameters) {}},
		{name: "equal years", mutate: func(p *models.SearchParameters) { p.YearMin = 2018; p.YearMax = 2018 }},
		{name: "year range inverted", mutate: func(p *models.SearchParameters) { p.YearMin = 2021 }, wantErr: "year_max must be greater than or equal to year_min"},
		{name: "zero year", mutate: func(p *models.SearchParameters) { p.YearMin = 0 }, wantErr: "year_min must be a positive integer"},
		{name: "short zip", mutate: func(p *models.SearchParameters) { p.LocationCode = "1234" }, wantErr: "zip must be exactly 5 digits"},
		{name: "alpha zip", mutate: func(p *models.SearchParameters) { p.LocationCode = "abcde" }, wantErr: "zip must be exactly 5 digits"},
		{name: "negative radius", mutate: func(p *models.SearchParameters) { p.RadiusMiles = -5 }, wantErr: "radius must be a positive integer"},
		{name: "missing make", mutate: func(p *models.SearchParameters) { p.Make = "" }, wantErr: "make is required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.mutate(&p)

			err := ValidateParameters(p)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, utils.ErrValidation))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewSearchParametersDefaultRadius(t *testing.T) {
	p := models.NewSearchParameters("Honda", "Civic", 2010, 2012, "10001", 0, false)
	assert.Equal(t, models.DefaultRadiusMiles, p.RadiusMiles)
	require.NoError(t, ValidateParameters(p))
}

func TestParseYear(t *testing.T) {
	year, err := ParseYear("2020")
	require.NoError(t, err)
	assert.Equal(t, 2020, year)

	for _, bad := range []string{"not_a_year", "-1", "0", ""} {
		_, err := ParseYear(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseZip(t *testing.T) {
	zip, err := ParseZip("12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", zip)

	for _, bad := range []string{"1234", "123456", "abcde", "1234a"} {
		_, err := ParseZip(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRadius(t *testing.T) {
	radius, err := ParseRadius("50")
	require.NoError(t, err)
	assert.Equal(t, 50, radius)

	for _, bad := range []string{"not_a_radius", "-10", "0"} {
		_, err := ParseRadius(bad)
		assert.Error(t, err, bad)
	}
}

func TestStructValidatesRequestOptions(t *testing.T) {
	req := models.SearchRequest{
		SearchParameters: validParams(),
		Options:          &models.SearchOptions{MaxPages: -1},
	}
	err := Struct(&req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_pages")
}
