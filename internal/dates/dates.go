// Package dates turns the assorted date strings found in feeds into UTC instants.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/0x0BSoD/newsSieve/internal/model"
)

var ErrUnparseable = errors.New("unparseable date")

// layouts are tried in order once the generic parser gives up.
var layouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05-0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

// rfc822Zones holds the named zones RFC 822 defines. Go only resolves a zone
// abbreviation against the parse location, so anything else would read as
// UTC.
var rfc822Zones = map[string]string{
	"UT":  "+0000",
	"GMT": "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

var trailingZone = regexp.MustCompile(`\s([A-Z]{2,3})$`)

// numericZone swaps a trailing RFC 822 zone name for its numeric offset.
func numericZone(raw string) string {
	m := trailingZone.FindStringSubmatchIndex(raw)
	if m == nil {
		return raw
	}
	offset, ok := rfc822Zones[raw[m[2]:m[3]]]
	if !ok {
		return raw
	}
	return raw[:m[2]] + offset
}

// Parse resolves raw into an instant. Input without an explicit offset is
// read as UTC.
func Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrUnparseable
	}
	raw = numericZone(raw)

	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, raw)
}

// EntryDate returns the first parsable date among the entry's published,
// pubDate, updated and created fields.
func EntryDate(entry model.Entry) (time.Time, bool) {
	for _, raw := range []string{entry.Published, entry.PubDate, entry.Updated, entry.Created} {
		if t, err := Parse(raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
