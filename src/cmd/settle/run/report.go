package run

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/jiaming2012/backoffice/src/copytrade"
)

func ExportToCsv(outDir string, results []copytrade.SettlementResult, tradingDay string, now time.Time) (string, error) {
	outFilePath := path.Join(outDir, fmt.Sprintf("settlement_%s_%s.csv", tradingDay, now.Format("2006-01-02_15-04-05")))

	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
			return "", fmt.Errorf("ExportToCsv: failed to create directory: %w", err)
		}
	}

	file, err := os.Create(outFilePath)
	if err != nil {
		return "", fmt.Errorf("ExportToCsv: failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteCsv(file, results); err != nil {
		return "", err
	}

	return outFilePath, nil
}

func WriteCsv(out io.Writer, results []copytrade.SettlementResult) error {
	writer := gocsv.NewSafeCSVWriter(csv.NewWriter(out))
	if err := gocsv.MarshalCSV(&results, writer); err != nil {
		return fmt.Errorf("WriteCsv: failed to write results: %w", err)
	}

	return nil
}

// PrintTable renders one row per master and follower pair followed by a totals row.
func PrintTable(out io.Writer, results []copytrade.SettlementResult) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Master", "Follower", "Trades", "Profit", "Commission", "Admin", "Master share", "Status", "Reason"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	commission, admin, master := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range results {
		table.Append([]string{
			fmt.Sprintf("%d", r.MasterID),
			fmt.Sprintf("%d", r.FollowerID),
			fmt.Sprintf("%d", r.TradeCount),
			r.DailyProfit.StringFixed(2),
			r.Commission.StringFixed(2),
			r.AdminShare.StringFixed(2),
			r.MasterShare.StringFixed(2),
			string(r.Status),
			r.Reason,
		})

		if r.Status == copytrade.ResultStatusDeducted {
			commission = commission.Add(r.Commission)
			admin = admin.Add(r.AdminShare)
			master = master.Add(r.MasterShare)
		}
	}

	table.SetFooter([]string{"", "", "", "Total", commission.StringFixed(2), admin.StringFixed(2), master.StringFixed(2), "", ""})
	table.Render()
}
