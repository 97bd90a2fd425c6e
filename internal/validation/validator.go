// Package validation is the rule engine boundary: a pure function from
// document state to findings. Only error-severity findings reject a mutation.
package validation

import (
	"sort"

	"github.com/iudanet/estisync/internal/models"
)

// Validator проверяет состояние документа и возвращает находки
type Validator interface {
	Validate(doc *models.Document) []models.Finding
}

// Func адаптер обычной функции к Validator
type Func func(doc *models.Document) []models.Finding

// Validate вызывает f(doc)
func (f Func) Validate(doc *models.Document) []models.Finding {
	if f == nil {
		return nil
	}
	return f(doc)
}

// Chain объединяет находки нескольких валидаторов
type Chain []Validator

// Validate запускает все валидаторы по порядку и возвращает находки,
// упорядоченные по пути
func (c Chain) Validate(doc *models.Document) []models.Finding {
	var out []models.Finding
	for _, v := range c {
		if v == nil {
			continue
		}
		out = append(out, v.Validate(doc)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Path.String() < out[j].Path.String()
	})
	return out
}

// Nop валидатор, который ничего не находит
var Nop Validator = Func(nil)

// Errors оставляет только находки уровня error
func Errors(findings []models.Finding) []models.Finding {
	var out []models.Finding
	for _, f := range findings {
		if f.Severity == models.SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Check проверяет документ и возвращает *models.ValidationError,
// если среди находок есть ошибки. Предупреждения возвращаются в любом случае.
func Check(v Validator, doc *models.Document) ([]models.Finding, error) {
	if v == nil {
		return nil, nil
	}
	findings := v.Validate(doc)
	if models.HasErrors(findings) {
		return findings, &models.ValidationError{Findings: findings}
	}
	return findings, nil
}

// Introduced возвращает находки after, которых не было в before.
// Мутацию отклоняют только новые ошибки: уже существующие нарушения
// не должны блокировать редактирование соседних полей.
func Introduced(before, after []models.Finding) []models.Finding {
	seen := make(map[models.Finding]struct{}, len(before))
	for _, f := range before {
		seen[f] = struct{}{}
	}
	var out []models.Finding
	for _, f := range after {
		if _, ok := seen[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
