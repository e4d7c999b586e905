// Package usage turns a raw usage record scraped from a provider portal into
// typed usage figures and summarizes them against the billing cycle.
package usage

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Record is the usage record returned by the portal. Every field is optional;
// Parse reports the first one that is absent or malformed.
type Record struct {
	Used      *Number `json:"used,omitempty"`
	Total     *Number `json:"total,omitempty"`
	Units     *string `json:"units,omitempty"`
	Raw       *Raw    `json:"raw,omitempty"`
	Timestamp *Number `json:"data_timestamp,omitempty"`
}

// Raw is the usage document as served by the portal.
type Raw struct {
	// UsageMonths is nil if the portal omitted it and empty if the portal
	// sent an empty list.
	UsageMonths []Month `json:"usageMonths"`
}

// Month is one billing cycle. Dates are in month/day/year form.
type Month struct {
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`

	HomeUsage      *Number `json:"homeUsage,omitempty"`
	AllowableUsage *Number `json:"allowableUsage,omitempty"`
	UnitOfMeasure  *string `json:"unitOfMeasure,omitempty"`
}

// Last returns the most recent month, or nil if there are none.
func (r *Raw) Last() *Month {
	if r == nil || len(r.UsageMonths) == 0 {
		return nil
	}
	return &r.UsageMonths[len(r.UsageMonths)-1]
}

// Number is the literal text of a number as the portal sent it. Portals are
// inconsistent about quoting numbers, so both 12.5 and "12.5" decode to
// Number("12.5"). Any other JSON value is kept verbatim and fails in Float.
type Number string

// Num is shorthand for building records by hand.
func Num(s string) *Number {
	n := Number(s)
	return &n
}

// Str is shorthand for building records by hand.
func Str(s string) *string {
	return &s
}

var errEmptyNumber = errors.New("usage: empty number")

// Float parses n as a 64-bit float. Surrounding space is ignored. Values
// too large or too small for a float64 become ±Inf or zero.
func (n Number) Float() (float64, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, errEmptyNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if errors.Is(err, strconv.ErrRange) {
		return f, nil
	}
	return f, err
}

func (n Number) String() string { return string(n) }

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(data)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if _, err := n.Float(); err == nil && json.Valid([]byte(n)) {
		return []byte(strings.TrimSpace(string(n))), nil
	}
	return json.Marshal(string(n))
}
