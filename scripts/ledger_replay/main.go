package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/repository"
	"github.com/mediare/family-trust-api/internal/service"
	"github.com/mediare/family-trust-api/pkg/config"
	"github.com/mediare/family-trust-api/pkg/database"
	"github.com/mediare/family-trust-api/pkg/logger"
)

func main() {
	var (
		batch   int
		timeout time.Duration
		child   string
	)
	flag.IntVar(&batch, "batch", 200, "Aggregates loaded per page")
	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "Overall deadline")
	flag.StringVar(&child, "child", "", "Verify a single child id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ledgerRepo := repository.NewLedgerRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	guard := service.NewAccessGuard(familyRepo, repository.NewUserRepository(db), logr)
	ledger := service.NewLedgerService(ledgerRepo, familyRepo, guard, nil, nil, logr, service.LedgerConfig{
		PointsPerLevel: cfg.Ledger.PointsPerLevel,
	})

	var checked, drifted int
	verify := func(childID string) {
		res, err := ledger.VerifyChild(ctx, childID)
		if err != nil {
			logr.Error("verification failed", zap.String("child_id", childID), zap.Error(err))
			drifted++
			return
		}
		checked++
		if !res.Consistent {
			drifted++
			fmt.Printf("DRIFT %s stored=(%d,%d) replay=(%d,%d) deltas=%d\n",
				res.ChildID, res.StoredLevel, res.StoredPoints, res.ReplayLevel, res.ReplayPoints, res.Deltas)
		}
	}

	if child != "" {
		verify(child)
	} else {
		for offset := 0; ; offset += batch {
			aggs, err := ledgerRepo.ListAggregates(ctx, batch, offset)
			if err != nil {
				logr.Fatal("failed to list aggregates", zap.Error(err))
			}
			for _, agg := range aggs {
				verify(agg.ChildID)
			}
			if len(aggs) < batch {
				break
			}
		}
	}

	fmt.Printf("checked=%d drifted=%d\n", checked, drifted)
	if drifted > 0 {
		os.Exit(1)
	}
}
