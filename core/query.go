package core

import (
	"net/url"
	"strconv"
	"strings"
)

// TimePeriod restricts a leaderboard listing to recent entries. Values are
// the day counts the service expects.
type TimePeriod int

const (
	AllTime   TimePeriod = 0
	Today     TimePeriod = 1
	ThisWeek  TimePeriod = 7
	ThisMonth TimePeriod = 30
	ThisYear  TimePeriod = 365
)

// SortOrder selects the listing order. SortDefault leaves it to the service.
type SortOrder int

const (
	SortDefault SortOrder = iota
	SortDescending
	SortAscending
)

// SearchQuery holds optional listing filters. Zero values mean unset.
type SearchQuery struct {
	Skip       int
	Take       int
	Username   string
	TimePeriod TimePeriod
}

// DefaultQuery has no filters set.
var DefaultQuery = SearchQuery{}

// ChainQuery renders the set filters as "&name=value" pairs in declaration
// order. It returns "" when no filter is set.
func (q SearchQuery) ChainQuery() string {
	var b strings.Builder
	if q.Skip > 0 {
		b.WriteString("&skip=" + strconv.Itoa(q.Skip))
	}
	if q.Take > 0 {
		b.WriteString("&take=" + strconv.Itoa(q.Take))
	}
	if q.Username != "" {
		b.WriteString("&username=" + url.QueryEscape(q.Username))
	}
	if q.TimePeriod != AllTime {
		b.WriteString("&timePeriod=" + strconv.Itoa(int(q.TimePeriod)))
	}
	return b.String()
}
