package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"resq-firewatch/internal/config"
	"resq-firewatch/internal/report"
	"resq-firewatch/internal/repository"
	"resq-firewatch/pkg/database"
	"resq-firewatch/pkg/logger"

	"go.uber.org/zap"
)

// incident-export 把火情事件导出为 Excel 文件
// 用法：incident-export -out incidents.xlsx [-device <id>] [-from 2026-01-01] [-to 2026-02-01]
func main() {
	outPath := flag.String("out", "incidents.xlsx", "output file path")
	deviceID := flag.String("device", "", "filter by device id")
	from := flag.String("from", "", "start date (YYYY-MM-DD)")
	to := flag.String("to", "", "end date (YYYY-MM-DD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, "console", "incident-export")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	filters, err := buildFilters(*deviceID, *from, *to)
	if err != nil {
		log.Fatal("Invalid filter arguments",
			zap.Error(err),
		)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)
	db, err := database.NewPostgresDB(dsn, cfg.Database.MaxConns, cfg.Database.MaxIdle)
	if err != nil {
		log.Fatal("Failed to connect to database",
			zap.Error(err),
		)
	}
	defer db.Close()

	exporter := report.NewExporter(
		repository.NewIncidentRepository(db, log),
		repository.NewAlertRepository(db, log),
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	content, err := exporter.Export(ctx, filters)
	if err != nil {
		log.Fatal("Failed to export incidents",
			zap.Error(err),
		)
	}

	if err := os.WriteFile(*outPath, content, 0o644); err != nil {
		log.Fatal("Failed to write output file",
			zap.String("path", *outPath),
			zap.Error(err),
		)
	}

	log.Info("Incident report written",
		zap.String("path", *outPath),
	)
}

// buildFilters 解析命令行过滤参数
func buildFilters(deviceID, from, to string) (repository.IncidentFilters, error) {
	filters := repository.IncidentFilters{}

	if deviceID != "" {
		filters.DeviceID = &deviceID
	}
	if from != "" {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filters, fmt.Errorf("invalid -from date %q: %w", from, err)
		}
		filters.StartTime = &start
	}
	if to != "" {
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filters, fmt.Errorf("invalid -to date %q: %w", to, err)
		}
		// 含当天整天
		end = end.Add(24*time.Hour - time.Nanosecond)
		filters.EndTime = &end
	}

	return filters, nil
}
