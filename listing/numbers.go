package listing

import (
	"strconv"
	"strings"
)

// ExtractNumbers returns the integers embedded in free-form text, in order.
// Thousands separators are removed first; tokens that are not made entirely
// of digits are dropped.
func ExtractNumbers(text string) []int {
	text = strings.ReplaceAll(text, ",", "")

	nums := []int{}
	for _, tok := range strings.Fields(text) {
		if !allDigits(tok) {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			// overflow
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// PageSummary is the sequence of integers read from the results summary line.
// By convention index 1 is the number of regular items per page.
type PageSummary []int

// ItemsPerPage returns summary[1].
func (s PageSummary) ItemsPerPage() (int, bool) {
	if len(s) < 2 {
		return 0, false
	}
	return s[1], true
}

// ExpectedTally is the validated-listing count expected after page, allowing
// one promoted item per page on top of the regular quota.
func (s PageSummary) ExpectedTally(page int) (int, bool) {
	return s.ExpectedTallyWith(page, 1)
}

// ExpectedTallyWith is ExpectedTally for a site that promotes a different
// number of items per page.
func (s PageSummary) ExpectedTallyWith(page, promoted int) (int, bool) {
	perPage, ok := s.ItemsPerPage()
	if !ok {
		return 0, false
	}
	return (perPage + promoted) * page, true
}
