package conflict

import (
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/estisync/internal/models"
)

// FormatNote формирует человекочитаемый текст записи аудита
func FormatNote(n models.AuditNote) string {
	mode := "manually"
	if n.Automatic {
		mode = "automatically"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: conflict %s on document %s resolved %s with %s",
		n.At.UTC().Format(time.RFC3339), n.ConflictID, n.DocumentID, mode, describeStrategy(n.Strategy))
	if n.ActorID != "" {
		fmt.Fprintf(&b, " by %s", n.ActorID)
	}
	fmt.Fprintf(&b, " at server revision %d", n.Revision)

	paths := make([]string, 0, len(n.Paths))
	for _, p := range n.Paths {
		paths = append(paths, p.String())
	}
	switch len(paths) {
	case 0:
		b.WriteString("; no fields contested")
	case 1:
		fmt.Fprintf(&b, "; field %s", paths[0])
	default:
		fmt.Fprintf(&b, "; %d fields: %s", len(paths), strings.Join(paths, ", "))
	}
	return b.String()
}

func describeStrategy(s models.Strategy) string {
	switch s {
	case models.StrategyOverwriteServer:
		return "local changes kept (overwrite-server)"
	case models.StrategyOverwriteLocal:
		return "server version kept (overwrite-local)"
	case models.StrategyMerge:
		return "field merge (merge)"
	}
	return string(s)
}
