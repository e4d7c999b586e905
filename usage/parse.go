package usage

import (
	"errors"
	"math"
	"time"
)

// DateLayout is the layout of the portal's cycle dates. Parsing also accepts
// months and days without a leading zero.
const DateLayout = "01/02/2006"

const parseLayout = "1/2/2006"

// Errors reported by Parse. The message of each is reported to the user
// as-is.
var (
	ErrMissingUsage     = errors.New("missing usage field")
	ErrInvalidFloat     = errors.New("invalid float for usage")
	ErrMissingMonths    = errors.New("missing usageMonths field")
	ErrNoMonths         = errors.New("no month data found")
	ErrMissingDates     = errors.New("missing start and end date")
	ErrBadDateRange     = errors.New("failed to decode date range")
	ErrMissingTimestamp = errors.New("missing data timestamp")
	ErrBadTimestamp     = errors.New("failed to decode current date")
)

// Usage is a validated usage record.
type Usage struct {
	Used  float64
	Total float64
	Units string

	// CycleStart and CycleEnd are midnight on the first and last days of
	// the most recent billing cycle.
	CycleStart time.Time
	CycleEnd   time.Time

	CapturedAt time.Time
}

// Parse is ParseIn with the local time zone.
func Parse(r *Record) (*Usage, error) {
	return ParseIn(r, time.Local)
}

// ParseIn validates r and converts it to a Usage. Cycle dates and the capture
// time are placed in loc.
//
// Fields are checked in a fixed order (used, total, units, usageMonths, the
// last month's dates, data_timestamp) and the first problem found is
// returned. The returned Usage is nil if and only if the error is non-nil.
func ParseIn(r *Record, loc *time.Location) (*Usage, error) {
	if r == nil {
		return nil, ErrMissingUsage
	}

	used, err := parseAmount(r.Used)
	if err != nil {
		return nil, err
	}
	total, err := parseAmount(r.Total)
	if err != nil {
		return nil, err
	}
	if r.Units == nil {
		return nil, ErrMissingUsage
	}

	if r.Raw == nil || r.Raw.UsageMonths == nil {
		return nil, ErrMissingMonths
	}
	last := r.Raw.Last()
	if last == nil {
		return nil, ErrNoMonths
	}

	if last.StartDate == nil || last.EndDate == nil {
		return nil, ErrMissingDates
	}
	start, err := time.ParseInLocation(parseLayout, *last.StartDate, loc)
	if err != nil {
		return nil, ErrBadDateRange
	}
	end, err := time.ParseInLocation(parseLayout, *last.EndDate, loc)
	if err != nil {
		return nil, ErrBadDateRange
	}

	if r.Timestamp == nil {
		return nil, ErrMissingTimestamp
	}
	captured, err := unixTime(*r.Timestamp)
	if err != nil {
		return nil, ErrBadTimestamp
	}

	return &Usage{
		Used:       used,
		Total:      total,
		Units:      *r.Units,
		CycleStart: start,
		CycleEnd:   end,
		CapturedAt: captured.In(loc),
	}, nil
}

func parseAmount(n *Number) (float64, error) {
	if n == nil {
		return 0, ErrMissingUsage
	}
	f, err := n.Float()
	if err != nil {
		return 0, ErrInvalidFloat
	}
	return f, nil
}

// maxUnix is 9999-12-31T23:59:59Z, the last second the portal's date
// format can express.
const maxUnix = 253402300799

// unixTime converts seconds since the epoch, possibly fractional, to a time.
func unixTime(n Number) (time.Time, error) {
	f, err := n.Float()
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.Abs(f) > maxUnix {
		return time.Time{}, ErrBadTimestamp
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), nil
}
