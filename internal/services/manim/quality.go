package manim

import (
	"fmt"
	"strings"
)

// Quality selects the render preset.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality accepts low, medium or high in any case. Blank input yields medium.
func ParseQuality(value string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return QualityMedium, nil
	case string(QualityLow):
		return QualityLow, nil
	case string(QualityMedium):
		return QualityMedium, nil
	case string(QualityHigh):
		return QualityHigh, nil
	default:
		return "", fmt.Errorf("unknown render quality %q (want low, medium or high)", value)
	}
}

// Flag returns the Manim CLI flag for q.
func (q Quality) Flag() string {
	switch q {
	case QualityLow:
		return "-ql"
	case QualityHigh:
		return "-qh"
	default:
		return "-qm"
	}
}
