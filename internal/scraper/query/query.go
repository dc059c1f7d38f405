// Package query turns search parameters into site result-page URLs.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"autohawk/internal/config"
	"autohawk/pkg/models"
)

// QueryTarget is the first result page of one search against the site
type QueryTarget struct {
	Site      string `json:"site"`
	Label     string `json:"label"`
	URL       string `json:"url"`
	PageParam string `json:"page_param"`
}

// PageURL returns the URL of result page n (1-based)
func (t QueryTarget) PageURL(n int) string {
	u, err := url.Parse(t.URL)
	if err != nil || t.PageParam == "" {
		return t.URL
	}
	q := u.Query()
	q.Set(t.PageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// Builder encodes parameters the way the configured site expects
type Builder struct {
	site config.SiteConfig
}

func NewBuilder(site config.SiteConfig) *Builder {
	options := append([]int(nil), site.RadiusOptions...)
	sort.Ints(options)
	site.RadiusOptions = options
	return &Builder{site: site}
}

// Build returns the query targets for params. Identical parameters always
// produce identical targets in the same order. Params must already be valid.
func (b *Builder) Build(params models.SearchParameters) []QueryTarget {
	var targets []QueryTarget
	for _, span := range b.yearSpans(params.YearMin, params.YearMax) {
		targets = append(targets, QueryTarget{
			Site:      b.site.Name,
			Label:     fmt.Sprintf("%s %s %d-%d", params.Make, params.Model, span[0], span[1]),
			URL:       b.encode(params, span[0], span[1]),
			PageParam: b.site.PageParam,
		})
	}
	return targets
}

func (b *Builder) encode(params models.SearchParameters, yearMin, yearMax int) string {
	p := b.site.Params
	makeSlug := MakeSlug(params.Make)

	values := url.Values{}
	for k, v := range p.Fixed {
		values.Set(k, v)
	}
	values.Set(p.Make, makeSlug)
	values.Set(p.Model, ModelSlug(makeSlug, params.Model))
	values.Set(p.YearMin, strconv.Itoa(yearMin))
	values.Set(p.YearMax, strconv.Itoa(yearMax))
	values.Set(p.Zip, params.LocationCode)
	values.Set(p.Radius, b.radius(params.RadiusMiles))
	if p.PageSize != "" && b.site.PageSize > 0 {
		values.Set(p.PageSize, strconv.Itoa(b.site.PageSize))
	}
	if params.NoAccidentsOnly && p.NoAccidents != "" {
		values.Set(p.NoAccidents, p.NoAccValue)
	}

	return b.site.BaseURL + "?" + values.Encode()
}

// radius snaps up to the nearest supported distance
func (b *Builder) radius(miles int) string {
	if len(b.site.RadiusOptions) == 0 {
		return strconv.Itoa(miles)
	}
	for _, option := range b.site.RadiusOptions {
		if miles <= option {
			return strconv.Itoa(option)
		}
	}
	return b.site.RadiusAllValue
}

func (b *Builder) yearSpans(yearMin, yearMax int) [][2]int {
	span := b.site.YearSpanPerTarget
	if span <= 0 || yearMax-yearMin+1 <= span {
		return [][2]int{{yearMin, yearMax}}
	}

	var spans [][2]int
	for start := yearMin; start <= yearMax; start += span {
		end := start + span - 1
		if end > yearMax {
			end = yearMax
		}
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

// MakeSlug lowercases the make and joins words with underscores
func MakeSlug(carMake string) string {
	s := strings.ToLower(strings.TrimSpace(carMake))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}

// ModelSlug is the make slug followed by the lowercased model
func ModelSlug(makeSlug, model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	return makeSlug + "-" + strings.Join(strings.Fields(m), "_")
}

// Fingerprint identifies a set of targets; equal searches share a fingerprint
func Fingerprint(targets []QueryTarget) string {
	h := sha256.New()
	for _, t := range targets {
		h.Write([]byte(t.URL))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
