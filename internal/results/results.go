// Package results renders per-student exam result messages from tabular rows.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Row is one student: column name to cell value (string, float64, nil, ...).
type Row map[string]any

type Kind string

const (
	KindVarsity Kind = "varsity"
	KindMedical Kind = "medical"
)

// Derived columns added by Render.
const (
	ColPosition = "Position"
	ColResult   = "Result"
)

const Signature = "— Big Bang Exam Care"

var ErrUnknownKind = errors.New("unknown template type")

// ParseKind accepts the template names used by the upload UI.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "varsity", "engineering", "varsity/engineering":
		return KindVarsity, nil
	case "medical":
		return KindMedical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// ScoreColumn is the column each template ranks on.
func (k Kind) ScoreColumn() string {
	if k == KindMedical {
		return "Marks"
	}
	return "Total"
}

// Render returns copies of rows with Position and Result filled in. The score
// column is coerced to a number (nil when missing or non-numeric). A row that
// cannot be rendered gets an empty Result; the batch never fails on row data.
func Render(rows []Row, kind Kind) ([]Row, error) {
	if kind != KindVarsity && kind != KindMedical {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
	col := kind.ScoreColumn()

	out := make([]Row, len(rows))
	scores := make([]*float64, len(rows))
	for i, r := range rows {
		cp := make(Row, len(r)+2)
		for k, v := range r {
			cp[k] = v
		}
		if s, ok := Number(r[col]); ok {
			scores[i] = &s
			cp[col] = s
		} else {
			cp[col] = nil
		}
		out[i] = cp
	}

	highest := Highest(scores)
	positions := Rank(scores)

	for i, r := range out {
		if positions[i] > 0 {
			r[ColPosition] = positions[i]
		} else {
			r[ColPosition] = nil
		}
		r[ColResult] = renderRow(kind, r, scores[i], positions[i], highest)
	}
	return out, nil
}

// Highest is the maximum score truncated to an integer, 0 when no row has one.
func Highest(scores []*float64) int {
	found := false
	best := 0.0
	for _, s := range scores {
		if s == nil {
			continue
		}
		if !found || *s > best {
			best = *s
			found = true
		}
	}
	if !found {
		return 0
	}
	return int(math.Trunc(best))
}

// Rank computes descending competition ranks: tied scores share the best rank
// and the next distinct score skips ahead (80, 80, 60 -> 1, 1, 3). Rows without
// a score get 0.
func Rank(scores []*float64) []int {
	present := make([]float64, 0, len(scores))
	for _, s := range scores {
		if s != nil {
			present = append(present, *s)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(present)))

	ranks := make([]int, len(scores))
	for i, s := range scores {
		if s == nil {
			continue
		}
		// first index whose value is <= s; everything before it is strictly greater
		ranks[i] = sort.Search(len(present), func(j int) bool { return present[j] <= *s }) + 1
	}
	return ranks
}

func renderRow(kind Kind, r Row, score *float64, position int, highest int) (msg string) {
	defer func() {
		if rec := recover(); rec != nil {
			msg = ""
		}
	}()

	exam, ok1 := field(r, "Exam")
	name, ok2 := field(r, "Name")
	roll, ok3 := field(r, "Roll")
	if !ok1 || !ok2 || !ok3 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ফলাফল: %s\n", exam)
	fmt.Fprintf(&b, "Name: %s, Roll: %s, ", name, roll)

	trail := ".\n"
	if kind == KindMedical {
		trail = ". \n"
	}

	if score == nil || *score == 0 {
		fmt.Fprintf(&b, "Absent, Highest Marks: %d%s", highest, trail)
		b.WriteString(Signature)
		return b.String()
	}

	switch kind {
	case KindVarsity:
		mcq, ok1 := field(r, "MCQ")
		written, ok2 := field(r, "Written")
		if !ok1 || !ok2 {
			return ""
		}
		fmt.Fprintf(&b, "MCQ: %s., Written: %s., Total: %s., ", mcq, written, formatFloat(*score))
	case KindMedical:
		fmt.Fprintf(&b, "Obtained Marks: %s, ", formatFloat(*score))
	}
	fmt.Fprintf(&b, "Position: %d, Highest Marks: %d%s", position, highest, trail)
	b.WriteString(Signature)
	return b.String()
}

// field renders a scalar cell. Nested values (maps, slices) are malformed.
func field(r Row, key string) (string, bool) {
	v, present := r[key]
	if !present || v == nil {
		return "", true
	}
	switch v.(type) {
	case map[string]any, []any:
		return "", false
	}
	return Text(v), true
}

// Text formats a cell value the way it should appear in a message or a phone
// field: integral floats without a decimal point or exponent.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Number coerces a cell to a float. Empty, NaN and non-numeric values are not numbers.
func Number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
