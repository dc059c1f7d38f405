package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// makeAliases maps abbreviations and spellings to canonical make names.
var makeAliases = map[string]string{
	"chevy":         "Chevrolet",
	"chevrolet":     "Chevrolet",
	"merc":          "Mercedes-Benz",
	"benz":          "Mercedes-Benz",
	"mercedes":      "Mercedes-Benz",
	"mercedes-benz": "Mercedes-Benz",
	"vw":            "Volkswagen",
	"volkswagen":    "Volkswagen",
	"toyota":        "Toyota",
	"honda":         "Honda",
	"ford":          "Ford",
	"bmw":           "BMW",
	"audi":          "Audi",
	"nissan":        "Nissan",
	"hyundai":       "Hyundai",
	"kia":           "Kia",
	"subaru":        "Subaru",
	"mazda":         "Mazda",
	"jeep":          "Jeep",
	"ram":           "RAM",
	"gmc":           "GMC",
	"dodge":         "Dodge",
	"lexus":         "Lexus",
	"acura":         "Acura",
	"tesla":         "Tesla",
	"porsche":       "Porsche",
	"volvo":         "Volvo",
	"buick":         "Buick",
	"cadillac":      "Cadillac",
	"lincoln":       "Lincoln",
	"infiniti":      "INFINITI",
	"genesis":       "Genesis",
	"mitsubishi":    "Mitsubishi",
	"chrysler":      "Chrysler",
	"land rover":    "Land Rover",
	"jaguar":        "Jaguar",
	"alfa romeo":    "Alfa Romeo",
	"aston martin":  "Aston Martin",
	"rolls-royce":   "Rolls-Royce",
	"fiat":          "FIAT",
	"mini":          "MINI",
	"rivian":        "Rivian",
	"lucid":         "Lucid",
	"polestar":      "Polestar",
}

// multiWordModels are models whose names span several words
var multiWordModels = []string{
	"range rover sport", "range rover velar", "range rover evoque", "range rover",
	"grand cherokee", "grand wagoneer", "grand caravan",
	"santa fe", "santa cruz", "land cruiser", "eclipse cross", "outlander sport",
	"model 3", "model y", "model s", "model x",
	"2 series", "3 series", "4 series", "5 series", "7 series", "8 series",
	"amg gt", "hummer ev", "ioniq 5", "ioniq 6", "polestar 2", "polestar 3",
	"mx-5 miata", "id.4",
}

// aliasesByLength lists alias keys longest first so multi-word makes win
var aliasesByLength = func() []string {
	keys := make([]string, 0, len(makeAliases))
	for k := range makeAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

var (
	titleYearRe     = regexp.MustCompile(`^((?:19|20)\d{2})\s+(.+)$`)
	conditionPrefix = regexp.MustCompile(`(?i)^(used|new|certified(\s+pre-owned)?|cpo)\s+`)
	digitsRe        = regexp.MustCompile(`\d[\d,]*`)
)

// Title is the year, make and model read from a listing heading
type Title struct {
	Year  int
	Make  string
	Model string
}

// ParseTitle reads headings like "Used 2018 Toyota Camry SE". The model is
// a known multi-word name or else the first word after the make; trims are dropped.
func ParseTitle(raw string) (Title, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	for {
		stripped := conditionPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	m := titleYearRe.FindStringSubmatch(s)
	if m == nil {
		return Title{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return Title{}, false
	}

	rest := m[2]
	lower := strings.ToLower(rest)
	for _, alias := range aliasesByLength {
		if !strings.HasPrefix(lower, alias) {
			continue
		}
		tail := rest[len(alias):]
		if tail != "" && tail[0] != ' ' {
			continue
		}
		model, ok := parseModel(tail)
		if !ok {
			return Title{}, false
		}
		return Title{Year: year, Make: makeAliases[alias], Model: model}, true
	}

	// unknown make: first word is the make, second the model
	words := strings.Fields(rest)
	if len(words) < 2 {
		return Title{}, false
	}
	return Title{Year: year, Make: words[0], Model: words[1]}, true
}

func parseModel(tail string) (string, bool) {
	words := strings.Fields(tail)
	if len(words) == 0 {
		return "", false
	}
	joined := strings.Join(words, " ")
	lower := strings.ToLower(joined)
	for _, name := range multiWordModels {
		if lower == name || strings.HasPrefix(lower, name+" ") {
			return joined[:len(name)], true
		}
	}
	return words[0], true
}

// ParsePrice reads "$21,500"; anything without digits (e.g. "Not Priced") is missing
func ParsePrice(raw string) (int, bool) {
	return firstNumber(raw)
}

// ParseMileage reads "45,120 mi."; "New" listings have zero miles
func ParseMileage(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, "new") {
		return 0, true
	}
	return firstNumber(s)
}

func firstNumber(raw string) (int, bool) {
	match := digitsRe.FindString(raw)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
