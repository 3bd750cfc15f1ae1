package core

import (
	"fmt"
	"regexp"
	"strconv"
)

// Installment is the resolved form of the " (k/n)" title suffix. Stored
// titles remain the only source of group membership; this is the one place
// that parses and formats them.
type Installment struct {
	Base  string
	Index int // 1-based
	Size  int
}

// GroupKey identifies the installment group across its members.
type GroupKey struct {
	Base string
	Size int
}

var installmentSuffix = regexp.MustCompile(`^(.*) \((\d+)/(\d+)\)$`)

// ParseInstallment extracts the installment tag from a title. Titles without
// the suffix, or with an index outside 1..n, are not part of any group.
func ParseInstallment(title string) (Installment, bool) {
	m := installmentSuffix.FindStringSubmatch(title)
	if m == nil {
		return Installment{}, false
	}
	k, err := strconv.Atoi(m[2])
	if err != nil {
		return Installment{}, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return Installment{}, false
	}
	if n < 1 || k < 1 || k > n {
		return Installment{}, false
	}
	return Installment{Base: m[1], Index: k, Size: n}, true
}

// Title renders the tag back to its stored form.
func (i Installment) Title() string {
	return FormatInstallmentTitle(i.Base, i.Index, i.Size)
}

func (i Installment) Key() GroupKey {
	return GroupKey{Base: i.Base, Size: i.Size}
}

func FormatInstallmentTitle(base string, k, n int) string {
	return fmt.Sprintf("%s (%d/%d)", base, k, n)
}
