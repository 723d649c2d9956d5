package cutoff

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// The quantile grid: 96 points stepping 1% from the most conservative
// (power 0.95) to the terminal boundary (power 0.00). The boundary point is
// always evaluated, even when its flag duplicates its neighbor, so edge-level
// NONE determination never depends on collapse order.
const gridPoints = 96

// minReportablePower is the floor below which a cutoff is reported as NONE.
const minReportablePower = 0.50

// Derive computes the cutoff row for one level's simulated distributions.
// Level 0 rows carry the true-model reference values at exactly 95% power.
func Derive(run LevelRun) (Row, error) {
	srmrTrue, rmseaTrue, cfiTrue := converged(run, true)
	srmrMis, rmseaMis, cfiMis := converged(run, false)
	if len(srmrTrue) == 0 || len(srmrMis) == 0 {
		return Row{}, fmt.Errorf("level %d: no converged replications to derive from", run.Level)
	}

	row := Row{Level: run.Level, Magnitude: run.Magnitude}

	if run.Level == 0 {
		var err error
		if row.SRMR.Value, err = percentile(srmrTrue, 95); err != nil {
			return Row{}, err
		}
		if row.RMSEA.Value, err = percentile(rmseaTrue, 95); err != nil {
			return Row{}, err
		}
		if row.CFI.Value, err = percentile(cfiTrue, 5); err != nil {
			return Row{}, err
		}
		row.SRMR.Power, row.RMSEA.Power, row.CFI.Power = 0.95, 0.95, 0.95
		return row, nil
	}

	var err error
	if row.SRMR, err = deriveIndex(srmrTrue, srmrMis, true); err != nil {
		return Row{}, err
	}
	if row.RMSEA, err = deriveIndex(rmseaTrue, rmseaMis, true); err != nil {
		return Row{}, err
	}
	if row.CFI, err = deriveIndex(cfiTrue, cfiMis, false); err != nil {
		return Row{}, err
	}
	return row, nil
}

// deriveIndex walks the misspecified-fit quantile grid from highest power to
// the power-zero boundary and keeps the first point at least as extreme (in
// the worse-fit direction) as the true-model reference percentile. For
// higher-is-worse indices (SRMR, RMSEA) the reference is the true 95th
// percentile and the grid ascends from the 5th percentile; for CFI the
// treatment is mirrored.
func deriveIndex(trueVals, misVals []float64, higherIsWorse bool) (IndexCutoff, error) {
	refPct := 95.0
	if !higherIsWorse {
		refPct = 5.0
	}
	ref, err := percentile(trueVals, refPct)
	if err != nil {
		return IndexCutoff{}, err
	}

	for i := 0; i < gridPoints; i++ {
		power := 0.95 - 0.01*float64(i)
		var prob float64
		if higherIsWorse {
			prob = 5 + float64(i) // 5%..100%
		} else {
			prob = 95 - float64(i) // 95%..0%
		}
		q, err := percentile(misVals, prob)
		if err != nil {
			return IndexCutoff{}, err
		}

		flagged := (higherIsWorse && q >= ref) || (!higherIsWorse && q <= ref)
		if !flagged {
			continue
		}
		if power < minReportablePower {
			break
		}
		return IndexCutoff{Value: q, Power: power}, nil
	}
	return IndexCutoff{None: true}, nil
}

// percentile wraps stats.Percentile so grid boundaries stay in range: 0% and
// 100% map to the sample extremes, and the small-sample bounds error (a rank
// below 1 at low probabilities with few replications) clamps to the nearer
// extreme instead of aborting the derivation.
func percentile(data []float64, pct float64) (float64, error) {
	switch {
	case len(data) == 0:
		return 0, fmt.Errorf("empty distribution")
	case pct <= 0:
		return stats.Min(data)
	case pct >= 100:
		return stats.Max(data)
	default:
		v, err := stats.Percentile(data, pct)
		if err != nil {
			if pct < 50 {
				return stats.Min(data)
			}
			return stats.Max(data)
		}
		return v, nil
	}
}

// converged extracts the per-index distributions, dropping non-converged
// replications column-wise.
func converged(run LevelRun, trueSide bool) (srmr, rmsea, cfi []float64) {
	for _, rep := range run.Replications {
		if trueSide {
			if rep.ConvergedTrue {
				srmr = append(srmr, rep.SRMRTrue)
				rmsea = append(rmsea, rep.RMSEATrue)
				cfi = append(cfi, rep.CFITrue)
			}
		} else {
			if rep.ConvergedMis {
				srmr = append(srmr, rep.SRMRMis)
				rmsea = append(rmsea, rep.RMSEAMis)
				cfi = append(cfi, rep.CFIMis)
			}
		}
	}
	return srmr, rmsea, cfi
}
