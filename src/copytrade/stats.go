package copytrade

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
)

type MasterPerformance struct {
	MasterID          uint    `json:"master_id"`
	ClosedCopies      int     `json:"closed_copies"`
	WinRate           float64 `json:"win_rate"`
	TotalPnl          float64 `json:"total_pnl"`
	MeanPnl           float64 `json:"mean_pnl"`
	MedianPnl         float64 `json:"median_pnl"`
	StdDevPnl         float64 `json:"std_dev_pnl"`
	BestPnl           float64 `json:"best_pnl"`
	WorstPnl          float64 `json:"worst_pnl"`
	TotalCopiedVolume float64 `json:"total_copied_volume"`
}

// MasterStats summarizes the realized PnL of a master's closed follower copies.
func (s *Service) MasterStats(ctx context.Context, masterID uint) (*MasterPerformance, error) {
	master, err := s.db.GetMasterTrader(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("MasterStats: failed to get master: %w", err)
	}

	records, err := s.db.ListClosedCopyTradesByMaster(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("MasterStats: failed to list copies: %w", err)
	}

	perf := &MasterPerformance{
		MasterID:          masterID,
		ClosedCopies:      len(records),
		TotalCopiedVolume: master.TotalCopiedVolume,
	}

	if len(records) == 0 {
		return perf, nil
	}

	pnls := make(stats.Float64Data, 0, len(records))
	wins := 0
	for _, r := range records {
		pnls = append(pnls, r.FollowerPnl)
		if r.FollowerPnl > 0 {
			wins++
		}
	}

	perf.WinRate = float64(wins) / float64(len(records)) * 100

	if perf.TotalPnl, err = stats.Sum(pnls); err != nil {
		return nil, fmt.Errorf("MasterStats: sum: %w", err)
	}

	if perf.MeanPnl, err = stats.Mean(pnls); err != nil {
		return nil, fmt.Errorf("MasterStats: mean: %w", err)
	}

	if perf.MedianPnl, err = stats.Median(pnls); err != nil {
		return nil, fmt.Errorf("MasterStats: median: %w", err)
	}

	if perf.StdDevPnl, err = stats.StandardDeviation(pnls); err != nil {
		return nil, fmt.Errorf("MasterStats: std dev: %w", err)
	}

	if perf.BestPnl, err = stats.Max(pnls); err != nil {
		return nil, fmt.Errorf("MasterStats: max: %w", err)
	}

	if perf.WorstPnl, err = stats.Min(pnls); err != nil {
		return nil, fmt.Errorf("MasterStats: min: %w", err)
	}

	return perf, nil
}
