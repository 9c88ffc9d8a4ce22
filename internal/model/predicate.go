package model

import (
	"strings"
	"unicode"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"golang.org/x/text/cases"
)

// words splits s into maximal runs of letters and digits.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContainsWordIgnoreCase reports whether word equals one of the words of
// sentence under Unicode case folding. "max" is found in "Max Print" but not
// in "Maximum Print". A blank word, or one with separators in it, never matches.
func ContainsWordIgnoreCase(sentence, word string) bool {
	w := strings.TrimSpace(word)
	if ws := words(w); len(ws) != 1 || ws[0] != w {
		return false
	}
	fold := cases.Fold()
	want := fold.String(w)
	for _, candidate := range words(sentence) {
		if fold.String(candidate) == want {
			return true
		}
	}
	return false
}

// ContainsAnyKeyword matches if any keyword is a whole word of target.
func ContainsAnyKeyword(target string, keywords []string) bool {
	for _, k := range keywords {
		if ContainsWordIgnoreCase(target, k) {
			return true
		}
	}
	return false
}

func JobNameContainsKeywords(keywords []string) func(Job) bool {
	return func(j Job) bool { return ContainsAnyKeyword(j.Name.String(), keywords) }
}

func MachineNameContainsKeywords(keywords []string) func(Machine) bool {
	return func(m Machine) bool { return ContainsAnyKeyword(m.Name.String(), keywords) }
}

func PersonNameContainsKeywords(keywords []string) func(Person) bool {
	return func(p Person) bool { return ContainsAnyKeyword(p.Name.String(), keywords) }
}

func AdminNameContainsKeywords(keywords []string) func(Admin) bool {
	return func(a Admin) bool { return ContainsAnyKeyword(a.Username.String(), keywords) }
}

// JobsOnMachine keeps the jobs of one machine.
func JobsOnMachine(name types.MachineName) func(Job) bool {
	return func(j Job) bool { return j.Machine == name }
}

// JobsWithStatus keeps jobs in any of the given statuses.
func JobsWithStatus(statuses ...types.JobStatus) func(Job) bool {
	return func(j Job) bool {
		for _, s := range statuses {
			if j.Status == s {
				return true
			}
		}
		return false
	}
}
