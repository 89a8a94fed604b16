package bank

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/notch8/viva-sub001/internal/question"
)

// Row is one CSV/XLSX row keyed by header name.
type Row map[string]string

// PairDatum is one LEFT_n/RIGHT_n slot as it appeared in the row. Column
// names are kept so the validator can name the offending columns.
type PairDatum struct {
	Index    int
	LeftCol  string // "" when no LEFT_n header carried this index
	RightCol string // "" when no RIGHT_n header carried this index
	Answer   string
	Correct  []string
}

// RowDatum is the ephemeral parsed form of one row, specific to the
// question type's family.
type RowDatum struct {
	Family question.Family
	Text   string      // markdown family: concatenated prompt
	Pairs  []PairDatum // pair family: slots sorted by index
}

// ParseRow extracts the typed fields for typ out of one row. It never drops
// information silently except pairs whose both sides are blank; anything it
// cannot interpret is reported as a MalformedRowError naming the header.
func ParseRow(row Row, typ question.Type) (RowDatum, error) {
	cfg := typ.Config()
	switch cfg.Family {
	case question.FamilyMarkdown:
		return parseMarkdownRow(row)
	case question.FamilyPair:
		return parsePairRow(row)
	default:
		return RowDatum{}, &MalformedRowError{Problems: []string{
			fmt.Sprintf("question type %q cannot be imported from rows", typ),
		}}
	}
}

func parseMarkdownRow(row Row) (RowDatum, error) {
	var problems []string
	indexed := map[int]string{} // index -> header
	for h := range row {
		if h == "" || h == "TEXT" {
			continue
		}
		if !strings.HasPrefix(h, "TEXT") {
			continue
		}
		n, problem := headerIndex(h, "TEXT")
		if problem != "" {
			problems = append(problems, problem)
			continue
		}
		if prev, dup := indexed[n]; dup {
			problems = append(problems, fmt.Sprintf("headers %q and %q carry the same index %d", prev, h, n))
			continue
		}
		indexed[n] = h
	}
	if len(problems) > 0 {
		return RowDatum{}, &MalformedRowError{Problems: problems}
	}

	ns := make([]int, 0, len(indexed))
	for n := range indexed {
		ns = append(ns, n)
	}
	sort.Ints(ns)

	var parts []string
	if v, ok := row["TEXT"]; ok {
		parts = append(parts, v)
	}
	for _, n := range ns {
		parts = append(parts, row[indexed[n]])
	}
	return RowDatum{
		Family: question.FamilyMarkdown,
		Text:   strings.Join(parts, "\n"),
	}, nil
}

func parsePairRow(row Row) (RowDatum, error) {
	var problems []string
	slots := map[int]*PairDatum{}

	slot := func(n int) *PairDatum {
		if s, ok := slots[n]; ok {
			return s
		}
		s := &PairDatum{Index: n}
		slots[n] = s
		return s
	}

	for h, v := range row {
		if h == "" {
			continue
		}
		var side string
		switch {
		case strings.HasPrefix(h, "LEFT"):
			side = "LEFT"
		case strings.HasPrefix(h, "RIGHT"):
			side = "RIGHT"
		default:
			continue
		}
		n, problem := headerIndex(h, side)
		if problem != "" {
			problems = append(problems, problem)
			continue
		}
		s := slot(n)
		if side == "LEFT" {
			if s.LeftCol != "" {
				problems = append(problems, fmt.Sprintf("headers %q and %q carry the same index %d", s.LeftCol, h, n))
				continue
			}
			s.LeftCol = h
			s.Answer = v
		} else {
			if s.RightCol != "" {
				problems = append(problems, fmt.Sprintf("headers %q and %q carry the same index %d", s.RightCol, h, n))
				continue
			}
			s.RightCol = h
			s.Correct = splitChoices(v)
		}
	}
	if len(problems) > 0 {
		return RowDatum{}, &MalformedRowError{Problems: problems}
	}

	ns := make([]int, 0, len(slots))
	for n := range slots {
		ns = append(ns, n)
	}
	sort.Ints(ns)

	pairs := make([]PairDatum, 0, len(ns))
	for _, n := range ns {
		s := slots[n]
		// a pair blank on both sides is trailing CSV noise, drop it;
		// one-sided pairs survive so the validator can flag them
		if strings.TrimSpace(s.Answer) == "" && len(s.Correct) == 0 {
			continue
		}
		pairs = append(pairs, *s)
	}
	return RowDatum{Family: question.FamilyPair, Pairs: pairs}, nil
}

// headerIndex parses the trailing numeric run of a header carrying prefix,
// tolerating repeated separators ("LEFT__3" -> 3). Anything other than
// separators between the prefix and the index marks an unrelated column,
// reported rather than absorbed ("LEFTOVERS3" is not pair 3).
func headerIndex(h, prefix string) (int, string) {
	i := len(h)
	for i > 0 && h[i-1] >= '0' && h[i-1] <= '9' {
		i--
	}
	if i == len(h) {
		return 0, fmt.Sprintf("header %q: no trailing index", h)
	}
	for _, r := range h[len(prefix):i] {
		if r != '_' && r != '-' {
			return 0, fmt.Sprintf("header %q: unexpected text between %s and index", h, prefix)
		}
	}
	n, err := strconv.Atoi(h[i:])
	if err != nil {
		return 0, fmt.Sprintf("header %q: no trailing index", h)
	}
	return n, ""
}

// splitChoices splits a comma-separated, optionally whitespace-padded
// correct-choice list, trimming each entry and compacting blanks.
func splitChoices(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
