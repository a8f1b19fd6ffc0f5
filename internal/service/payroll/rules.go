package payroll

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
)

type ruleKey struct {
	postID     string
	categoryID string
}

// RuleBook indexes salary rules by (post, category).
type RuleBook struct {
	rules map[ruleKey][]payroll.SalaryRule
}

// Resolution is the outcome of resolving the rule for one weekday.
type Resolution struct {
	Rule     payroll.SalaryRule
	Found    bool
	Conflict *payroll.RuleConflictError
}

func NewRuleBook(rules []payroll.SalaryRule) *RuleBook {
	b := &RuleBook{rules: make(map[ruleKey][]payroll.SalaryRule)}
	for _, r := range rules {
		k := ruleKey{postID: r.PostID, categoryID: r.CategoryID}
		b.rules[k] = append(b.rules[k], r)
	}
	return b
}

// Candidates returns every rule configured for the post and category.
func (b *RuleBook) Candidates(postID, categoryID string) []payroll.SalaryRule {
	return b.rules[ruleKey{postID: postID, categoryID: categoryID}]
}

// Resolve picks the rule for a weekday: a day-restricted rule covering it wins over the
// unrestricted rule. More than one match on either level is a conflict.
func (b *RuleBook) Resolve(postID, categoryID string, day time.Weekday) Resolution {
	var unrestricted, restricted []payroll.SalaryRule
	for _, r := range b.Candidates(postID, categoryID) {
		if !r.RestrictionsByDays {
			unrestricted = append(unrestricted, r)
			continue
		}
		if r.AppliesOn(day) {
			restricted = append(restricted, r)
		}
	}

	switch {
	case len(unrestricted) > 1:
		return Resolution{Conflict: &payroll.RuleConflictError{PostID: postID, CategoryID: categoryID}}
	case len(restricted) > 1:
		d := day
		return Resolution{Conflict: &payroll.RuleConflictError{PostID: postID, CategoryID: categoryID, Weekday: &d}}
	case len(restricted) == 1:
		return Resolution{Rule: restricted[0], Found: true}
	case len(unrestricted) == 1:
		return Resolution{Rule: unrestricted[0], Found: true}
	}
	return Resolution{}
}

// Check fails on the first ambiguous (post, category) among the given pairs. Pairs are
// visited in sorted order so the reported conflict is stable.
func (b *RuleBook) Check(pairs [][2]string) error {
	keys := make([]ruleKey, 0, len(pairs))
	seen := make(map[ruleKey]bool)
	for _, p := range pairs {
		k := ruleKey{postID: p[0], categoryID: p[1]}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].postID != keys[j].postID {
			return keys[i].postID < keys[j].postID
		}
		return keys[i].categoryID < keys[j].categoryID
	})

	for _, k := range keys {
		for day := time.Sunday; day <= time.Saturday; day++ {
			if res := b.Resolve(k.postID, k.categoryID, day); res.Conflict != nil {
				return res.Conflict
			}
		}
	}
	return nil
}
