package worker

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/compile"
	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/restate"
)

// CompileRequest identifies one statement compilation.
type CompileRequest struct {
	CompanyID     string              `json:"company_id"`
	StatementType model.StatementType `json:"statement_type"`
}

// Compilation stage names, reported as heartbeat details while the activity
// runs.
const (
	stageFetching    = "fetching"
	stageNormalizing = "normalizing"
	stageResolving   = "resolving"
	stageRemapping   = "remapping"
	stageCompiling   = "compiling"
	stageStoring     = "storing"
)

// CompileStatement runs the full pipeline for one (company, statement type):
// fetch extractions, normalize names, resolve restatements, remap, compile
// and upsert. An empty extraction set is a terminal success with an explicit
// no-data marker, and nothing is written.
func (a *Activities) CompileStatement(ctx context.Context, req CompileRequest) (*model.StatementOutcome, error) {
	outcome := &model.StatementOutcome{StatementType: req.StatementType}

	activity.RecordHeartbeat(ctx, stageFetching)
	extractions, err := a.Store.FetchExtractions(ctx, req.CompanyID, req.StatementType)
	if err != nil {
		return nil, asActivityError(eris.Wrapf(err, "worker: fetch extractions for %s/%s",
			req.CompanyID, req.StatementType))
	}
	if len(extractions) == 0 {
		zap.L().Info("worker: no extractions to compile",
			zap.String("company_id", req.CompanyID),
			zap.String("statement_type", string(req.StatementType)))
		outcome.Success = true
		outcome.NoData = true
		return outcome, nil
	}

	activity.RecordHeartbeat(ctx, stageNormalizing)
	groups := a.Normalizer.Normalize(extractions)

	activity.RecordHeartbeat(ctx, stageResolving)
	values := restate.Resolve(extractions)

	activity.RecordHeartbeat(ctx, stageRemapping)
	values = compile.RemapValues(groups, values)

	activity.RecordHeartbeat(ctx, stageCompiling)
	currency, unit := dominantCurrencyUnit(extractions)
	stmt := compile.Compile(compile.Input{
		Groups:        groups,
		Values:        values,
		Extractions:   extractions,
		CompanyID:     req.CompanyID,
		StatementType: req.StatementType,
		Currency:      currency,
		Unit:          unit,
	})

	activity.RecordHeartbeat(ctx, stageStoring)
	stored, err := a.Store.UpsertStatement(ctx, stmt)
	if err != nil {
		return nil, asActivityError(eris.Wrapf(err, "worker: upsert statement for %s/%s",
			req.CompanyID, req.StatementType))
	}

	outcome.Success = true
	outcome.LineItems = stored.Metadata.LineItemCount
	outcome.Years = stored.Metadata.YearCount
	return outcome, nil
}

// dominantCurrencyUnit picks the most frequent non-empty currency and unit
// across the extraction line items, breaking frequency ties lexicographically.
func dominantCurrencyUnit(extractions []model.RawExtraction) (string, string) {
	currencies := make(map[string]int)
	units := make(map[string]int)
	for _, ext := range extractions {
		for _, li := range ext.LineItems {
			if li.Currency != "" {
				currencies[li.Currency]++
			}
			if li.Unit != "" {
				units[li.Unit]++
			}
		}
	}
	return mostFrequent(currencies), mostFrequent(units)
}

func mostFrequent(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestCount := "", 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}
