package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/report-ivr/internal/catalog"
	"github.com/wolfman30/report-ivr/internal/dialog"
	"github.com/wolfman30/report-ivr/internal/questions"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

// Content is the prompt catalog and question source a call router runs on.
type Content struct {
	Catalog   *catalog.Catalog
	Questions questions.Provider
}

// BuildContent loads stored texts and questions when a pool is given and falls back to the
// built-in definitions otherwise. Every prompt the dialog can emit for the current script is
// checked against the catalog, so a template with a missing placeholder fails startup.
func BuildContent(ctx context.Context, pool *pgxpool.Pool, asOf time.Time, logger *logging.Logger) (Content, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		src      *catalog.PostgresSource
		provider questions.Provider = questions.NewDefaultProvider()
	)
	if pool != nil {
		src = catalog.NewPostgresSource(pool)
		provider = questions.NewPostgresProvider(pool)
	} else {
		logger.Warn("no database configured, using built-in prompts and questions")
	}

	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return Content{}, fmt.Errorf("bootstrap: load catalog: %w", err)
	}
	if err := ValidateContent(ctx, cat, provider, asOf); err != nil {
		return Content{}, err
	}
	logger.Info("prompt catalog loaded", "templates", len(cat.Keys()))
	return Content{Catalog: cat, Questions: provider}, nil
}

// ValidateContent resolves the script for asOf and checks the catalog against its prompt contract.
func ValidateContent(ctx context.Context, cat *catalog.Catalog, provider questions.Provider, asOf time.Time) error {
	script, err := questions.LoadScript(ctx, provider, asOf)
	if err != nil {
		return fmt.Errorf("bootstrap: load script: %w", err)
	}
	if err := cat.Validate(dialog.PromptContract(script)); err != nil {
		return fmt.Errorf("bootstrap: catalog does not cover the dialog: %w", err)
	}
	return nil
}
