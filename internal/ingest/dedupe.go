package ingest

import (
	"regexp"
	"strconv"
	"time"

	"lca_wages/internal/storage"
)

// Dedupe keeps one row per case number: the latest decision date wins, then the
// latest received date, with missing dates losing to present ones. On a full
// tie the later row wins. Output keeps first-appearance order.
func Dedupe(rows []storage.CaseRow) []storage.CaseRow {
	index := make(map[string]int, len(rows))
	out := make([]storage.CaseRow, 0, len(rows))

	for _, r := range rows {
		i, seen := index[r.CaseNumber]
		if !seen {
			index[r.CaseNumber] = len(out)
			out = append(out, r)
			continue
		}
		if !newer(out[i], r) {
			out[i] = r
		}
	}
	return out
}

// rowKey is the part of a row that decides which duplicate wins.
type rowKey struct {
	decision, received *time.Time
}

// Winners remembers the best row key seen per case number across the batches
// of one file. Rows that lose to an earlier batch are never staged.
type Winners map[string]rowKey

// Admit reports whether r beats every earlier row with its case number, and
// records it when it does. On a full tie the later row is admitted.
func (w Winners) Admit(r storage.CaseRow) bool {
	k := rowKey{decision: r.DecisionDate, received: r.ReceivedDate}
	if prev, seen := w[r.CaseNumber]; seen {
		if newer(storage.CaseRow{DecisionDate: prev.decision, ReceivedDate: prev.received}, r) {
			return false
		}
	}
	w[r.CaseNumber] = k
	return true
}

// Filter keeps the rows of batch that Admit accepts, in order.
func (w Winners) Filter(batch []storage.CaseRow) []storage.CaseRow {
	out := batch[:0]
	for _, r := range batch {
		if w.Admit(r) {
			out = append(out, r)
		}
	}
	return out
}

// newer reports whether a should be kept over b.
func newer(a, b storage.CaseRow) bool {
	if c := compareDates(a.DecisionDate, b.DecisionDate); c != 0 {
		return c > 0
	}
	return compareDates(a.ReceivedDate, b.ReceivedDate) > 0
}

// compareDates orders nil before any date.
func compareDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

var periodRe = regexp.MustCompile(`(?i)FY(\d{4})_Q([1-4])`)

// ParsePeriod extracts the fiscal year and quarter from a disclosure file name
// such as LCA_Disclosure_Data_FY2024_Q2.csv.
func ParsePeriod(name string) (fy, quarter *int) {
	m := periodRe.FindStringSubmatch(name)
	if m == nil {
		return nil, nil
	}
	y, _ := strconv.Atoi(m[1])
	q, _ := strconv.Atoi(m[2])
	return &y, &q
}
