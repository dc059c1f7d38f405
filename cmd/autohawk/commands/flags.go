package commands

import (
	"fmt"
	"strings"

	"autohawk/internal/validation"
	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// parameters turns the raw flag values into validated search parameters
func (f searchFlags) parameters() (models.SearchParameters, error) {
	required := []struct {
		name  string
		value string
	}{
		{"make", f.carMake},
		{"model", f.model},
		{"year_min", f.yearMin},
		{"year_max", f.yearMax},
		{"zip", f.zip},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, "--"+r.name)
		}
	}
	if len(missing) > 0 {
		return models.SearchParameters{}, utils.NewValidationError("missing required flags: " + strings.Join(missing, ", "))
	}

	yearMin, err := validation.ParseYear(f.yearMin)
	if err != nil {
		return models.SearchParameters{}, err
	}
	yearMax, err := validation.ParseYear(f.yearMax)
	if err != nil {
		return models.SearchParameters{}, err
	}
	if yearMin > yearMax {
		return models.SearchParameters{}, utils.NewValidationError(
			fmt.Sprintf("year_min (%d) must be less than or equal to year_max (%d)", yearMin, yearMax))
	}

	zip, err := validation.ParseZip(strings.TrimSpace(f.zip))
	if err != nil {
		return models.SearchParameters{}, err
	}

	radius := models.DefaultRadiusMiles
	if strings.TrimSpace(f.radius) != "" {
		if radius, err = validation.ParseRadius(f.radius); err != nil {
			return models.SearchParameters{}, err
		}
	}

	params := models.NewSearchParameters(
		strings.TrimSpace(f.carMake),
		strings.TrimSpace(f.model),
		yearMin, yearMax, zip, radius, f.noAccidents,
	)
	if err := validation.ValidateParameters(params); err != nil {
		return models.SearchParameters{}, err
	}
	return params, nil
}

func checkOutput(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return utils.NewValidationError(fmt.Sprintf("invalid output format: %q must be table or json", format))
	}
}
