package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iudanet/estisync/internal/models"
)

//go:embed schemas/*.json
var defaultSchemas embed.FS

const schemaBaseURL = "https://estisync.dev/schemas/"

// RootField поле находки, относящейся к сущности целиком
const RootField = "*"

// SchemaValidator проверяет каждую сущность документа JSON Schema ее типа.
// Сущности типов без схемы не проверяются.
type SchemaValidator struct {
	schemas  map[models.EntityKind]*jsonschema.Schema
	printer  *message.Printer
	severity models.Severity
}

// SchemaOption настройка SchemaValidator
type SchemaOption func(*SchemaValidator)

// WithSeverity задает уровень находок (по умолчанию error)
func WithSeverity(s models.Severity) SchemaOption {
	return func(v *SchemaValidator) {
		v.severity = s
	}
}

// WithLanguage задает язык сообщений
func WithLanguage(tag language.Tag) SchemaOption {
	return func(v *SchemaValidator) {
		v.printer = message.NewPrinter(tag)
	}
}

// NewSchemaValidator компилирует схемы из fsys: файл <kind>.json на каждый тип сущности
func NewSchemaValidator(fsys fs.FS, opts ...SchemaOption) (*SchemaValidator, error) {
	files, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	c := jsonschema.NewCompiler()
	kinds := make([]models.EntityKind, 0, len(files))
	for _, name := range files {
		k := models.EntityKind(strings.TrimSuffix(path.Base(name), ".json"))
		if !k.Valid() {
			return nil, fmt.Errorf("schema %s: unknown entity kind %q", name, k)
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+string(k)+".json", doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		kinds = append(kinds, k)
	}

	v := &SchemaValidator{
		schemas:  make(map[models.EntityKind]*jsonschema.Schema, len(kinds)),
		printer:  message.NewPrinter(language.English),
		severity: models.SeverityError,
	}
	for _, k := range kinds {
		sch, err := c.Compile(schemaBaseURL + string(k) + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", k, err)
		}
		v.schemas[k] = sch
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Default возвращает валидатор со встроенными схемами estimate, line_item и pricing
func Default(opts ...SchemaOption) (*SchemaValidator, error) {
	sub, err := fs.Sub(defaultSchemas, "schemas")
	if err != nil {
		return nil, err
	}
	return NewSchemaValidator(sub, opts...)
}

// Kinds возвращает типы сущностей, для которых есть схема
func (v *SchemaValidator) Kinds() []models.EntityKind {
	out := make([]models.EntityKind, 0, len(v.schemas))
	for k := range v.schemas {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate реализует Validator
func (v *SchemaValidator) Validate(doc *models.Document) []models.Finding {
	if doc == nil {
		return nil
	}

	var out []models.Finding
	for _, k := range v.Kinds() {
		ids := make([]string, 0, len(doc.Entities[k]))
		for id := range doc.Entities[k] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			out = append(out, v.validateEntity(k, id, doc.Entities[k][id])...)
		}
	}
	return out
}

func (v *SchemaValidator) validateEntity(k models.EntityKind, id string, e models.Entity) []models.Finding {
	ref := models.EntityRef{Kind: k, ID: id}

	obj := make(map[string]json.RawMessage, len(e.Fields))
	for name, val := range e.Fields {
		obj[name] = val.Data
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return []models.Finding{v.finding(ref, RootField, "encode", err.Error())}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return []models.Finding{v.finding(ref, RootField, "decode", err.Error())}
	}

	err = v.schemas[k].Validate(inst)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []models.Finding{v.finding(ref, RootField, "schema", err.Error())}
	}

	var out []models.Finding
	v.collect(ref, verr, &out)
	return out
}

// collect обходит дерево ошибок и превращает листья в находки
func (v *SchemaValidator) collect(ref models.EntityRef, verr *jsonschema.ValidationError, out *[]models.Finding) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			v.collect(ref, cause, out)
		}
		return
	}
	if verr.ErrorKind == nil {
		return
	}

	rule := strings.Join(verr.ErrorKind.KeywordPath(), "/")
	msg := verr.ErrorKind.LocalizedString(v.printer)

	// у required нет места в экземпляре: находка на каждое отсутствующее поле
	if req, ok := verr.ErrorKind.(*kind.Required); ok && len(verr.InstanceLocation) == 0 {
		for _, field := range req.Missing {
			*out = append(*out, v.finding(ref, field, rule, msg))
		}
		return
	}

	field := RootField
	if len(verr.InstanceLocation) > 0 {
		field = verr.InstanceLocation[0]
	}
	*out = append(*out, v.finding(ref, field, rule, msg))
}

func (v *SchemaValidator) finding(ref models.EntityRef, field, rule, msg string) models.Finding {
	return models.Finding{
		Rule:     rule,
		Severity: v.severity,
		Message:  msg,
		Path:     models.Path{Kind: ref.Kind, EntityID: ref.ID, Field: field},
	}
}
