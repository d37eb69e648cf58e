package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jiaming2012/backoffice/src/cmd/settle/run"
	"github.com/jiaming2012/backoffice/src/copytrade"
	"github.com/jiaming2012/backoffice/src/data"
	"github.com/jiaming2012/backoffice/src/dbutils"
	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/tradeengine"
	"github.com/jiaming2012/backoffice/src/utils"
)

type RunArgs struct {
	TradingDay string
	ResetDaily bool
}

type RunResult struct {
	Results []copytrade.SettlementResult
	Reset   int64
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/settle/main.go --day 2024-02-29",
	Short: "Settle the copy trading profit share of one trading day",
	Run: func(cmd *cobra.Command, args []string) {
		day, err := cmd.Flags().GetString("day")
		if err != nil {
			log.Fatalf("error getting day: %v", err)
		}

		if day == "" {
			day = models.TradingDayOf(time.Now().AddDate(0, 0, -1))
		}

		if _, err := time.Parse(models.TradingDayLayout, day); err != nil {
			log.Fatalf("invalid day %q: %v", day, err)
		}

		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			log.Fatalf("error getting outDir: %v", err)
		}

		format, err := cmd.Flags().GetString("format")
		if err != nil {
			log.Fatalf("error getting format: %v", err)
		}

		reset, err := cmd.Flags().GetBool("reset")
		if err != nil {
			log.Fatalf("error getting reset: %v", err)
		}

		result, err := Run(cmd.Context(), RunArgs{TradingDay: day, ResetDaily: reset})
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		switch format {
		case "json":
			out, err := json.MarshalIndent(result.Results, "", "  ")
			if err != nil {
				log.Fatalf("Failed to marshal results: %v", err)
			}
			fmt.Println(string(out))
		default:
			run.PrintTable(os.Stdout, result.Results)
		}

		if outDir != "" {
			csvPath, err := run.ExportToCsv(outDir, result.Results, day, time.Now())
			if err != nil {
				log.Errorf("Failed to export to CSV: %v", err)
			} else {
				fmt.Println("CSV file written to: ", csvPath)
			}
		}

		if reset {
			fmt.Printf("Reset daily stats of %d relationships\n", result.Reset)
		}
	},
}

func Run(ctx context.Context, args RunArgs) (RunResult, error) {
	if err := utils.InitEnvironmentVariables(); err != nil {
		return RunResult{}, fmt.Errorf("error loading environment variables: %w", err)
	}

	configPath := utils.GetEnvOrDefault("BACKOFFICE_CONFIG_FILE", path.Join(os.Getenv("PROJECTS_DIR"), "backoffice", "src", utils.BACKOFFICE_CONFIG_FILENAME))
	cfg, err := utils.LoadBackofficeConfig(configPath)
	if err != nil {
		return RunResult{}, err
	}

	env := map[string]string{}
	for _, key := range []string{"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
		value, err := utils.GetEnv(key)
		if err != nil {
			return RunResult{}, err
		}
		env[key] = value
	}

	db, err := dbutils.InitPostgres(env["POSTGRES_HOST"], env["POSTGRES_PORT"], env["POSTGRES_USER"], env["POSTGRES_PASSWORD"], env["POSTGRES_DB"], gormlogger.Warn)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to init db: %w", err)
	}

	dbService := data.NewDatabaseService(db)
	engine := tradeengine.NewEngine(dbService, nil, cfg.ContractSizeOverrides())
	service := copytrade.NewService(dbService, engine)

	results, err := service.CalculateDailyCommission(ctx, args.TradingDay)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to settle %s: %w", args.TradingDay, err)
	}

	out := RunResult{Results: results}
	if args.ResetDaily {
		if out.Reset, err = service.ResetDailyStats(ctx); err != nil {
			return out, fmt.Errorf("failed to reset daily stats: %w", err)
		}
	}

	return out, nil
}

func main() {
	runCmd.PersistentFlags().String("day", "", "The trading day to settle, 2006-01-02. Defaults to yesterday in UTC.")
	runCmd.PersistentFlags().String("outDir", "", "The directory to write a CSV report to.")
	runCmd.PersistentFlags().String("format", "table", "Output format: table or json.")
	runCmd.PersistentFlags().Bool("reset", false, "Reset follower daily stats after settling.")

	if err := runCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
