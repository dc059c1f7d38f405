package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

var printer = message.NewPrinter(language.English)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func printParameters(out io.Writer, params models.SearchParameters) {
	t := newTable(out)
	t.SetTitle("AutoHawk Search Parameters")
	t.AppendHeader(table.Row{"Parameter", "Value"})
	t.AppendRows([]table.Row{
		{"Make", params.Make},
		{"Model", params.Model},
		{"Year range", fmt.Sprintf("%d - %d", params.YearMin, params.YearMax)},
		{"Zip code", params.LocationCode},
		{"Radius", fmt.Sprintf("%d miles", params.RadiusMiles)},
		{"No accidents only", yesNo(params.NoAccidentsOnly)},
	})
	t.Render()
}

func printResult(out io.Writer, result *models.SearchResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	}

	if len(result.Records) > 0 {
		t := newTable(out)
		t.AppendHeader(table.Row{"#", "Year", "Make", "Model", "Price", "Mileage", "Location", "Accidents", "Link"})
		for i, r := range result.Records {
			t.AppendRow(table.Row{i + 1, r.Year, r.Make, r.Model, formatPrice(r.Price), formatMileage(r.Mileage), r.Location, string(r.Accidents), r.SourceURL})
		}
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
		})
		t.Render()
	}
	fmt.Fprintln(out, summary(result))
	return nil
}

// summary is the one-line report printed after the results
func summary(result *models.SearchResult) string {
	line := printer.Sprintf("Found %d listings across %d pages", len(result.Records), result.PagesVisited)
	if result.Filtered > 0 {
		line += printer.Sprintf(", %d hidden by the accident filter", result.Filtered)
	}
	if n := len(result.PageFailures); n > 0 {
		line += printer.Sprintf(", %d page failures", n)
	}
	if result.CacheHit {
		line += " (cached)"
	}
	if result.Truncated() {
		return fmt.Sprintf("%s. Search stopped early: %s.", line, result.TruncationReason)
	}
	return fmt.Sprintf("%s in %s. Search complete.", line, utils.FormatDuration(result.Duration))
}

func formatPrice(price int) string {
	if price <= 0 {
		return "-"
	}
	return printer.Sprintf("$%d", price)
}

func formatMileage(mileage *int) string {
	if mileage == nil {
		return "-"
	}
	return printer.Sprintf("%d mi", *mileage)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
