package repository

import (
	"fmt"
	"strings"
)

// whereBuilder собирает WHERE с позиционными параметрами $1..$n
type whereBuilder struct {
	conds []string
	args  []any
}

// add добавляет условие; "?" в cond заменяется на номер следующего параметра
func (b *whereBuilder) add(cond string, args ...any) {
	for _, arg := range args {
		b.args = append(b.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(b.args)), 1)
	}
	b.conds = append(b.conds, cond)
}

// arg регистрирует параметр вне WHERE (LIMIT/OFFSET) и возвращает его плейсхолдер
func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern строит шаблон ILIKE для поиска подстроки s
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
