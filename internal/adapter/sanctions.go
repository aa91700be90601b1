package adapter

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clarusrisk/diligence-cli/internal/cache"
	"github.com/clarusrisk/diligence-cli/internal/config"
	"github.com/clarusrisk/diligence-cli/internal/fetcher"
	"github.com/clarusrisk/diligence-cli/internal/match"
	"github.com/clarusrisk/diligence-cli/internal/model"
)

// ListScreen screens a company name against one cached sanctions list. One
// type serves every jurisdiction; the ListSpec carries the differences.
type ListScreen struct {
	spec       ListSpec
	dataset    *cache.Dataset
	thresholds config.MatchConfig
}

// NewListScreen creates a screening adapter for one list descriptor.
func NewListScreen(spec ListSpec, f fetcher.Fetcher, cacheDir string, thresholds config.MatchConfig) *ListScreen {
	ttl := time.Duration(spec.TTLHours) * time.Hour
	return &ListScreen{
		spec:       spec,
		dataset:    cache.NewDataset(f, cacheDir, spec.File, spec.URLs, ttl),
		thresholds: thresholds,
	}
}

func (l *ListScreen) Name() string { return l.spec.Source }

// Ready requires a name: screening is name matching, and the fill-only
// enrichment step usually supplies one before this adapter runs.
func (l *ListScreen) Ready(q model.Query) error {
	if q.Name == "" {
		return ErrNameRequired
	}
	return nil
}

func (l *ListScreen) Fetch(ctx context.Context, q model.Query) (model.CheckResult, error) {
	if !l.spec.Enabled {
		return Disabled(l.spec.Source), nil
	}

	path, err := l.dataset.Ensure(ctx)
	if err != nil {
		// Reference data unavailable degrades this one adapter, never the run.
		return Result(l.spec.Source, model.StatusUnknown,
			map[string]any{"error": err.Error()}, "reference list unavailable"), nil
	}

	hit, best, err := l.scan(path, q)
	if err != nil {
		return Failure(l.spec.Source, "failed to scan reference list", err), nil
	}

	if hit != nil {
		return Result(l.spec.Source, model.StatusCritical,
			map[string]any{"match_vat": q.VATNumber, "row": hit},
			"exact VAT match in "+l.spec.Source), nil
	}

	status := match.Decide(best.Score, l.thresholds.CriticalThreshold, l.thresholds.WarnThreshold)
	data := map[string]any{"match_score": best.Score}
	switch status {
	case model.StatusCritical:
		data["row"] = best.Payload
		zap.L().Warn("possible sanctions match",
			zap.String("source", l.spec.Source),
			zap.Int("score", best.Score),
			zap.String("name", q.Name),
		)
		return Result(l.spec.Source, status, data, "possible match in "+l.spec.Source+" (fuzzy)"), nil
	case model.StatusWarning:
		data["row"] = best.Payload
		return Result(l.spec.Source, status, data, "weak match in "+l.spec.Source+" (fuzzy)"), nil
	default:
		return Result(l.spec.Source, model.StatusOK, data, "no match in "+l.spec.Source), nil
	}
}

// scan walks the list once: an exact VAT cell match short-circuits as a hit;
// otherwise the best fuzzy name score across the configured name columns is
// tracked (first-seen wins ties).
func (l *ListScreen) scan(path string, q model.Query) (map[string]string, match.Best, error) {
	var best match.Best

	f, err := os.Open(path)
	if err != nil {
		return nil, best, eris.Wrapf(err, "adapter: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, best, eris.Wrapf(err, "adapter: read header of %s", path)
	}
	nameCols := l.nameColumnIndexes(header)

	vat := strings.ToUpper(strings.TrimSpace(q.VATNumber))

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, best, eris.Wrapf(err, "adapter: read %s", path)
		}

		if vat != "" {
			for _, cell := range record {
				if strings.ToUpper(strings.TrimSpace(cell)) == vat {
					return rowMap(header, record), best, nil
				}
			}
		}

		for _, col := range nameCols {
			if col >= len(record) {
				continue
			}
			candidate := record[col]
			if candidate == "" {
				continue
			}
			score := match.Score(q.Name, candidate)
			best.Consider(score, candidate, rowMap(header, record))
		}
	}

	return nil, best, nil
}

// nameColumnIndexes finds the header columns carrying entity names. When none
// of the configured fragments match, every column is scanned, matching the
// permissive behavior expected from loosely-schemed list exports.
func (l *ListScreen) nameColumnIndexes(header []string) []int {
	var cols []int
	for i, h := range header {
		lower := strings.ToLower(h)
		for _, frag := range l.spec.NameColumns {
			if strings.Contains(lower, frag) {
				cols = append(cols, i)
				break
			}
		}
	}
	if len(cols) == 0 {
		cols = make([]int, len(header))
		for i := range header {
			cols[i] = i
		}
	}
	return cols
}

func rowMap(header, record []string) map[string]string {
	row := make(map[string]string, len(record))
	for i, cell := range record {
		if i < len(header) && cell != "" {
			row[header[i]] = cell
		}
	}
	return row
}
