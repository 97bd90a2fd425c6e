package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/estisync/internal/client/api"
	"github.com/iudanet/estisync/internal/client/session"
	"github.com/iudanet/estisync/internal/client/storage/boltdb"
	"github.com/iudanet/estisync/internal/models"
	"github.com/iudanet/estisync/internal/transport/ws"
	"github.com/iudanet/estisync/internal/validation"
)

// maxResolveRounds сколько раз подряд пользователь может разрешать конфликт
// в одной команде, прежде чем она сдастся
const maxResolveRounds = 3

// sessionOptions режим открытия сессии
type sessionOptions struct {
	live     bool // подключиться к потоку событий
	useCache bool // черновики и аудит в локальном кэше
}

func (a *app) sessionConfig(documentID string) session.Config {
	c := a.cfg.Client
	return session.Config{
		DocumentID:         documentID,
		ActorID:            c.ActorID,
		DisplayName:        c.DisplayName,
		Color:              c.Color,
		DefaultStrategy:    models.Strategy(c.DefaultStrategy),
		Debounce:           c.Debounce,
		SaveTimeout:        c.SaveTimeout,
		PresenceTTL:        c.PresenceTTL,
		MaxSaveFailures:    c.MaxSaveFailures,
		MaxConflictRetries: c.MaxConflictRetries,
	}
}

// openSession открывает сессию синхронизации документа.
// Возвращаемая функция закрывает сессию и кэш.
func (a *app) openSession(ctx context.Context, documentID string, opts sessionOptions) (*session.Session, func(), error) {
	v, err := validation.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load validation schemas: %w", err)
	}
	sessionOpts := []session.Option{
		session.WithValidator(v),
		session.WithTracer(a.tracer.Tracer()),
	}

	var cache *boltdb.Storage
	if opts.useCache && a.cfg.Client.CachePath != "" {
		cache, err = boltdb.New(ctx, a.cfg.Client.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache: %w", err)
		}
		a.logger.Debug("Local cache opened", "path", cache.Path())
		sessionOpts = append(sessionOpts, session.WithCache(cache))
	}
	closeCache := func() {
		if cache == nil {
			return
		}
		if err := cache.Close(); err != nil {
			a.logger.Error("Failed to close cache", "error", err)
		}
	}

	// nil *ws.Transport в интерфейсе не равен nil, поэтому отдельная переменная
	var transport session.Transport
	if opts.live {
		t, err := ws.Dial(ctx, a.cfg.Client.ServerURL, documentID, a.cfg.Client.ActorID, a.logger)
		if err != nil {
			closeCache()
			return nil, nil, err
		}
		transport = t
	}

	backend := api.NewClient(a.cfg.Client.ServerURL, a.logger)
	s, err := session.New(ctx, a.sessionConfig(documentID), backend, transport, a.logger, sessionOpts...)
	if err != nil {
		if transport != nil {
			_ = transport.Close()
		}
		closeCache()
		return nil, nil, err
	}

	return s, func() {
		if err := s.Close(); err != nil {
			a.logger.Warn("Failed to close session", "error", err)
		}
		closeCache()
	}, nil
}

// save записывает документ. Конфликт, который сессия не разрешила сама,
// разрешается выбором пользователя.
func (a *app) save(ctx context.Context, s *session.Session) error {
	for round := 0; ; round++ {
		err := s.SaveNow(ctx)
		if !errors.Is(err, models.ErrConflictUnresolved) {
			return err
		}
		c, ok := s.Conflict()
		if !ok {
			return err
		}

		a.printConflict(c)
		if round >= maxResolveRounds {
			return err
		}
		strategy, chooseErr := a.chooseStrategy()
		if chooseErr != nil {
			return errors.Join(err, chooseErr)
		}
		if err := s.Resolve(ctx, strategy, c); err != nil {
			if errors.Is(err, models.ErrStaleConflict) {
				continue
			}
			return fmt.Errorf("failed to resolve conflict: %w", err)
		}
	}
}

// chooseStrategy спрашивает стратегию у пользователя
func (a *app) chooseStrategy() (models.Strategy, error) {
	if !a.io.Interactive() {
		return "", errors.New("conflict needs a decision: rerun with --strategy or from a terminal")
	}
	for {
		answer, err := a.io.ReadInput("Resolve with [overwrite-server|overwrite-local|merge] (empty to abort): ")
		if err != nil {
			return "", fmt.Errorf("failed to read answer: %w", err)
		}
		if answer == "" {
			return "", errors.New("conflict left unresolved, local edits kept")
		}
		strategy, err := models.ParseStrategy(answer)
		if err == nil {
			return strategy, nil
		}
		a.io.Printf("Unknown strategy %q\n", answer)
	}
}

func (a *app) printConflict(c *models.Conflict) {
	a.io.Printf("Conflict %s: revision %d was saved while you edited revision %d\n",
		c.ID, c.ServerRevision, c.ExpectedRevision)
	for _, f := range c.Fields {
		a.io.Printf("  %s  base=%s  local=%s  server=%s",
			f.Path, formatValue(f.Base), formatValue(f.Local), formatValue(f.Server))
		if f.Merged != nil {
			a.io.Printf("  merge=%s", formatValue(f.Merged))
		}
		a.io.Println()
	}
}

func (a *app) printDocument(doc *models.Document) {
	a.io.Printf("Document %s (revision %d)\n", doc.ID, doc.Revision)
	paths := doc.Paths()
	if len(paths) == 0 {
		a.io.Println("  (empty)")
		return
	}
	for _, p := range paths {
		v, _ := doc.Lookup(p)
		a.io.Printf("  %s = %s\n", p, formatValue(v))
	}
}

func (a *app) printChanges(changes []models.FieldChange) {
	for _, ch := range changes {
		if ch.Value == nil {
			a.io.Printf("  - %s\n", ch.Path)
			continue
		}
		a.io.Printf("  %s = %s\n", ch.Path, formatValue(ch.Value))
	}
}

func formatValue(v *models.Value) string {
	if v == nil {
		return "<absent>"
	}
	return string(v.Data)
}

// parseEntityRef разбирает ссылку вида kind/entity
func parseEntityRef(s string) (models.EntityRef, error) {
	kind, id, ok := strings.Cut(s, "/")
	ref := models.EntityRef{Kind: models.EntityKind(kind), ID: id}
	if !ok || id == "" || strings.Contains(id, "/") {
		return ref, fmt.Errorf("%w: entity must look like kind/id, got %q", models.ErrInvalidPath, s)
	}
	if !ref.Kind.Valid() {
		return ref, fmt.Errorf("%w: unknown entity kind %q", models.ErrInvalidPath, kind)
	}
	return ref, nil
}
