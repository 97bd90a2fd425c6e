package models

import "fmt"

// Severity уровень находки движка правил
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding результат проверки документа движком правил.
// Только находки уровня error отклоняют мутацию.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     Path     `json:"path"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s (%s)", f.Path, f.Message, f.Rule)
}

// HasErrors сообщает, есть ли среди находок ошибки
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
