package domain

import (
	"regexp"
	"strings"
	"time"
)

const (
	ChartActionSave = "save"
	ChartActionGet  = "get"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ChartDataItem is one point of a series. Value and Duration are optional.
type ChartDataItem struct {
	Name     string   `json:"name"`
	Value    *float64 `json:"value,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// ChartData holds the two named series. A nil slice means the series was
// absent from the request; an empty slice is a valid, empty series.
type ChartData struct {
	CallDuration []ChartDataItem `json:"callDuration"`
	SadPath      []ChartDataItem `json:"sadPath"`
}

// Complete reports whether both series are present and every item is named.
func (c *ChartData) Complete() bool {
	if c == nil || c.CallDuration == nil || c.SadPath == nil {
		return false
	}
	return namedItems(c.CallDuration) && namedItems(c.SadPath)
}

func namedItems(items []ChartDataItem) bool {
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return false
		}
	}
	return true
}

// UserChart is the persisted chart record keyed by normalized email.
type UserChart struct {
	Email     string    `json:"email"`
	ChartData ChartData `json:"chart_data"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserChartRequest struct {
	Email     string     `json:"email"`
	Action    string     `json:"action"`
	ChartData *ChartData `json:"chartData"`
}

type UserChartResponse struct {
	Success     bool       `json:"success"`
	ChartData   *ChartData `json:"chartData"`
	Message     string     `json:"message,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
