package repository

import (
	"fmt"
	"strings"
)

// setBuilder accumulates "column = $n" fragments for partial updates so that
// every patch is applied in one UPDATE statement.
type setBuilder struct {
	parts []string
	args  []interface{}
}

func (b *setBuilder) add(column string, value interface{}) {
	b.parts = append(b.parts, fmt.Sprintf("%s = %s", column, b.arg(value)))
}

// arg appends value and returns its placeholder.
func (b *setBuilder) arg(value interface{}) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *setBuilder) clause() string {
	return strings.Join(b.parts, ", ")
}

// whereBuilder collects AND-ed conditions with positional args.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func (w *whereBuilder) add(format string, value interface{}) {
	w.args = append(w.args, value)
	w.conditions = append(w.conditions, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return "WHERE 1=1"
	}
	return "WHERE " + strings.Join(w.conditions, " AND ")
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}
