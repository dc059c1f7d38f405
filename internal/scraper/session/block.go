package session

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockDetector recognises bot-detection and captcha interstitials.
// A page is blocked only when none of the expected markers are present and a known signature is.
type BlockDetector struct {
	markers    []string
	signatures []string
}

func NewBlockDetector(markers, signatures []string) *BlockDetector {
	d := &BlockDetector{}
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			d.markers = append(d.markers, m)
		}
	}
	for _, s := range signatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			d.signatures = append(d.signatures, s)
		}
	}
	return d
}

// Detect returns the matching signature when html looks like a block page
func (d *BlockDetector) Detect(html string) (string, bool) {
	if d == nil || len(d.signatures) == 0 {
		return "", false
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		for _, marker := range d.markers {
			if doc.Find(marker).Length() > 0 {
				return "", false
			}
		}
	}

	lower := strings.ToLower(html)
	for _, sig := range d.signatures {
		if strings.Contains(lower, sig) {
			return sig, true
		}
	}

	return "", false
}
