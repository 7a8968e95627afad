package questions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresProvider reads report definitions from report_types, option_items and question_specs.
type PostgresProvider struct {
	db rowsQuerier
}

// NewPostgresProvider wraps a pgx pool (or any pgx querier).
func NewPostgresProvider(db rowsQuerier) *PostgresProvider {
	if db == nil {
		panic("questions: pgx querier required")
	}
	return &PostgresProvider{db: db}
}

const reportTypesQuery = `
	SELECT key, label, menu_digit, COALESCE(selection_set, '')
	FROM report_types
	WHERE active
	ORDER BY menu_digit
`

const optionItemsQuery = `
	SELECT set_key, code, label, option_id
	FROM option_items
	ORDER BY set_key, position, code
`

const questionSpecsQuery = `
	SELECT key, report_type, content, prompt_key, answer_type, mandatory,
	       COALESCE(min_value, 0), COALESCE(max_value, 0), COALESCE(option_set, ''),
	       COALESCE(date_layout, ''), effective_from, effective_to, ordinal, version
	FROM question_specs
	WHERE report_type = $1
	  AND (effective_from IS NULL OR effective_from < $3)
	  AND (effective_to IS NULL OR effective_to >= $2)
`

// ReportTypes returns active report types with their selection option sets attached.
func (p *PostgresProvider) ReportTypes(ctx context.Context) ([]ReportType, error) {
	rows, err := p.db.Query(ctx, reportTypesQuery)
	if err != nil {
		return nil, fmt.Errorf("questions: query report types: %w", err)
	}
	type row struct {
		rt  ReportType
		set string
	}
	var raw []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.rt.Key, &r.rt.Label, &r.rt.MenuDigit, &r.set); err != nil {
			rows.Close()
			return nil, fmt.Errorf("questions: scan report type: %w", err)
		}
		raw = append(raw, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("questions: iterate report types: %w", err)
	}

	sets, err := p.optionSets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ReportType, 0, len(raw))
	for _, r := range raw {
		if r.set != "" {
			set, ok := sets[r.set]
			if !ok {
				return nil, fmt.Errorf("questions: report type %q references unknown option set %q", r.rt.Key, r.set)
			}
			r.rt.Selection = set
		}
		out = append(out, r.rt)
	}
	if err := ValidateReportTypes(out); err != nil {
		return nil, err
	}
	return out, nil
}

// QuestionsFor returns the questions of a report type applying on asOf.
func (p *PostgresProvider) QuestionsFor(ctx context.Context, reportType string, asOf time.Time) ([]Spec, error) {
	// Bounds are whole days: anything starting before tomorrow or ending today or later applies.
	day := truncateDay(asOf)
	rows, err := p.db.Query(ctx, questionSpecsQuery, reportType, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("questions: query specs: %w", err)
	}
	type row struct {
		spec Spec
		set  string
	}
	var raw []row
	for rows.Next() {
		var r row
		var answerType string
		if err := rows.Scan(
			&r.spec.Key, &r.spec.ReportType, &r.spec.Content, &r.spec.PromptKey, &answerType, &r.spec.Mandatory,
			&r.spec.Min, &r.spec.Max, &r.set, &r.spec.DateLayout, &r.spec.EffectiveFrom, &r.spec.EffectiveTo,
			&r.spec.Ordinal, &r.spec.Version,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("questions: scan spec: %w", err)
		}
		r.spec.Type = AnswerType(answerType)
		raw = append(raw, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("questions: iterate specs: %w", err)
	}

	var sets map[string]OptionSet
	specs := make([]Spec, 0, len(raw))
	for _, r := range raw {
		if r.set != "" {
			if sets == nil {
				if sets, err = p.optionSets(ctx); err != nil {
					return nil, err
				}
			}
			r.spec.Options = sets[r.set]
		}
		if err := ValidateSpec(r.spec); err != nil {
			return nil, err
		}
		specs = append(specs, r.spec)
	}
	return Select(specs, reportType, asOf), nil
}

func (p *PostgresProvider) optionSets(ctx context.Context) (map[string]OptionSet, error) {
	rows, err := p.db.Query(ctx, optionItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("questions: query option items: %w", err)
	}
	defer rows.Close()

	sets := make(map[string]OptionSet)
	for rows.Next() {
		var setKey string
		var o Option
		if err := rows.Scan(&setKey, &o.Code, &o.Label, &o.ID); err != nil {
			return nil, fmt.Errorf("questions: scan option item: %w", err)
		}
		sets[setKey] = append(sets[setKey], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("questions: iterate option items: %w", err)
	}
	return sets, nil
}
