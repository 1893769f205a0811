package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"resq-firewatch/internal/config"
	"resq-firewatch/internal/models"
	"resq-firewatch/internal/repository"
	"resq-firewatch/pkg/database"
	"resq-firewatch/pkg/logger"

	"go.uber.org/zap"
)

// resq-admin 运维工具：查看注册的摄像头、待处理报警，确认报警
// 用法：
//
//	resq-admin -cameras              列出所有摄像头设备
//	resq-admin -alerts               列出待处理（new）报警
//	resq-admin -ack <id> -user <id>  确认一条报警
func main() {
	listCameras := flag.Bool("cameras", false, "list registered camera devices")
	listAlerts := flag.Bool("alerts", false, "list pending alerts")
	ackAlertID := flag.String("ack", "", "acknowledge the alert with this id")
	userID := flag.String("user", "", "acknowledging user id (required with -ack)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, "console", "resq-admin")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case *listCameras:
		printCameras(ctx, repository.NewDeviceRepository(db, log), log)
	case *listAlerts:
		printPendingAlerts(ctx, repository.NewAlertRepository(db, log), log)
	case *ackAlertID != "":
		if *userID == "" {
			log.Fatal("-user is required with -ack")
		}
		acknowledge(ctx, repository.NewAlertRepository(db, log), *ackAlertID, *userID, log)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printCameras(ctx context.Context, devices *repository.DeviceRepository, log *zap.Logger) {
	cameras, err := devices.ListCameras(ctx)
	if err != nil {
		log.Fatal("Failed to list cameras",
			zap.Error(err),
		)
	}

	if len(cameras) == 0 {
		fmt.Println("no cameras registered")
		return
	}

	for _, camera := range cameras {
		heartbeat := "never"
		if camera.LastHeartbeatAt != nil {
			heartbeat = camera.LastHeartbeatAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %-32s %-8s %-24s last_heartbeat=%s\n",
			camera.ID, camera.Name, camera.Status, camera.LocationText, heartbeat)
	}
}

func printPendingAlerts(ctx context.Context, alerts *repository.AlertRepository, log *zap.Logger) {
	pending, err := alerts.ListAlertsByStatus(ctx, models.AlertStatusNew)
	if err != nil {
		log.Fatal("Failed to list alerts",
			zap.Error(err),
		)
	}

	if len(pending) == 0 {
		fmt.Println("no pending alerts")
		return
	}

	for _, alert := range pending {
		fmt.Printf("%s  incident=%s  created=%s\n",
			alert.ID, alert.IncidentID, alert.CreatedAt.Format(time.RFC3339))
	}
}

func acknowledge(ctx context.Context, alerts *repository.AlertRepository, alertID, userID string, log *zap.Logger) {
	if err := alerts.AcknowledgeAlert(ctx, alertID, userID); err != nil {
		log.Fatal("Failed to acknowledge alert",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
	}
	fmt.Printf("alert %s acknowledged by %s\n", alertID, userID)
}
