package assert

import (
	"fmt"
	"testing"

	testifyassert "github.com/stretchr/testify/assert"

	"github.com/nisimpson/tablemap"
)

// recorder captures assertion failures instead of failing the test.
type recorder struct {
	testing.TB
	errors []string
	fatal  bool
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recorder) Error(args ...any) {
	r.errors = append(r.errors, fmt.Sprint(args...))
}

func (r *recorder) Fatalf(format string, args ...any) {
	r.fatal = true
	r.Errorf(format, args...)
}

func (r *recorder) Fatal(args ...any) {
	r.fatal = true
	r.Error(args...)
}

func overflowRow() *tablemap.Row {
	row := tablemap.NewRow("p", "r")
	row.ETag = "e"
	row.Set("Name", tablemap.StringValue("x"))
	row.Set(tablemap.ExpandedColumnsName, tablemap.StringValue(`{"Body":2}`))
	row.Set(tablemap.ExpandedName("Body", 0), tablemap.StringValue("a"))
	row.Set(tablemap.ExpandedName("Body", 1), tablemap.StringValue("b"))
	return row
}

func TestRowAssertion(t *testing.T) {
	t.Run("passing", func(t *testing.T) {
		rec := &recorder{TB: t}
		Row(rec, overflowRow()).
			HasKey("p", "r").
			HasColumn("Name", tablemap.StringValue("x")).
			HasColumnKind("Name", tablemap.KindString).
			LacksColumn("Other").
			HasColumnCount(4).
			HasOverflow("Body", 2).
			HasETag()
		testifyassert.Empty(t, rec.errors)
	})

	t.Run("failing", func(t *testing.T) {
		rec := &recorder{TB: t}
		Row(rec, tablemap.NewRow("p", "r")).
			HasKey("p", "other").
			HasColumn("Name", tablemap.StringValue("x")).
			HasColumnKind("Name", tablemap.KindString).
			HasNoOverflow().
			HasETag()
		testifyassert.Len(t, rec.errors, 4)
	})

	t.Run("wrong value", func(t *testing.T) {
		rec := &recorder{TB: t}
		Row(rec, overflowRow()).
			HasColumn("Name", tablemap.StringValue("y")).
			HasOverflow("Body", 1).
			HasNoOverflow()
		testifyassert.Len(t, rec.errors, 3)
	})

	t.Run("nil row", func(t *testing.T) {
		rec := &recorder{TB: t}
		Row(rec, nil)
		testifyassert.True(t, rec.fatal)
	})
}

func TestRowsAssertion(t *testing.T) {
	rows := []*tablemap.Row{tablemap.NewRow("p", "1"), tablemap.NewRow("p", "2")}

	t.Run("passing", func(t *testing.T) {
		rec := &recorder{TB: t}
		Rows(rec, rows).
			HasCount(2).
			ContainsKey("p", "1").
			LacksKey("p", "3").
			AllInPartition("p").
			Row("p", "2").
			HasKey("p", "2")
		testifyassert.Empty(t, rec.errors)
	})

	t.Run("failing", func(t *testing.T) {
		rec := &recorder{TB: t}
		Rows(rec, rows).
			IsEmpty().
			ContainsKey("p", "3").
			LacksKey("p", "1").
			AllInPartition("q")
		testifyassert.Len(t, rec.errors, 5)
	})
}
