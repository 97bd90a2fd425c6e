// Package conflict classifies write conflicts per field and plans their
// resolution. It is shared by the client session and the reference server.
package conflict

import (
	"github.com/iudanet/estisync/internal/models"
)

// Detect выполняет трехстороннее сравнение по путям.
//
// Путь конфликтует, если локальная версия изменилась относительно base,
// серверная версия изменилась относительно base и они не равны между собой.
// Изменения только на сервере и только локально конфликтами не являются.
//
// Если base неизвестна (nil), используются подсказки сервера hint: конфликтом
// считается каждый путь из hint, на котором локальное и серверное значения различаются.
func Detect(base, local, server *models.Document, hint []models.Path) []models.FieldConflict {
	if base == nil {
		return fromHints(local, server, hint)
	}

	localChanges := models.Diff(base, local)
	serverChanged := models.NewPathSet(models.ChangedPaths(models.Diff(base, server))...)

	var fields []models.FieldConflict
	for _, ch := range localChanges {
		if !serverChanged.Has(ch.Path) {
			continue
		}
		serverValue, _ := server.Lookup(ch.Path)
		if models.SameValue(ch.Value, serverValue) {
			continue
		}
		baseValue, _ := base.Lookup(ch.Path)
		fields = append(fields, models.FieldConflict{
			Path:   ch.Path,
			Base:   baseValue,
			Local:  models.ClonePtr(ch.Value),
			Server: serverValue,
		})
	}
	return fields
}

func fromHints(local, server *models.Document, hint []models.Path) []models.FieldConflict {
	paths := make([]models.Path, len(hint))
	copy(paths, hint)
	models.SortPaths(paths)

	var fields []models.FieldConflict
	seen := make(models.PathSet)
	for _, p := range paths {
		if seen.Has(p) {
			continue
		}
		seen[p] = struct{}{}

		localValue, _ := local.Lookup(p)
		serverValue, _ := server.Lookup(p)
		if models.SameValue(localValue, serverValue) {
			continue
		}
		fields = append(fields, models.FieldConflict{Path: p, Local: localValue, Server: serverValue})
	}
	return fields
}
