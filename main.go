package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"coinops/bands"
	"coinops/controllers/hardware"
	"coinops/controllers/machine"
	"coinops/controllers/rule"
	"coinops/controllers/session"
	"coinops/database"
	"coinops/engine"
	"coinops/events"
	"coinops/jobs"
	"coinops/ledger"
	"coinops/routes"
	"coinops/rules"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	database.Connect()

	host := os.Getenv("HOST")
	port := os.Getenv("PORT")

	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "3000"
	}

	unitRate := decimal.NewFromInt(10)
	if v := os.Getenv("BET_UNIT_RATE"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil || parsed.LessThanOrEqual(decimal.Zero) {
			log.Printf("⚠️  Invalid value for BET_UNIT_RATE: %s\n", v)
		} else {
			unitRate = parsed
		}
	}

	pressRate := 20.0
	if v := os.Getenv("HW_RATE_LIMIT_PER_SEC"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			log.Printf("⚠️  Invalid value for HW_RATE_LIMIT_PER_SEC: %s\n", v)
		} else {
			pressRate = parsed
		}
	}

	broadcaster := events.NewBroadcaster(256)
	ledgerSvc := ledger.New(database.DB)
	bandsSvc := bands.New(database.DB)
	registry := rules.New(database.DB)
	eng := engine.New(database.DB, ledgerSvc, bandsSvc, registry, broadcaster, unitRate)

	app := fiber.New()
	routes.Setup(app, routes.Handlers{
		Machine:         machine.NewHandler(database.DB, ledgerSvc, bandsSvc),
		Rule:            rule.NewHandler(registry),
		Session:         session.NewHandler(database.DB),
		Hardware:        hardware.NewHandler(eng),
		Broadcaster:     broadcaster,
		PressRatePerSec: pressRate,
		PressRateBurst:  int(pressRate) * 2,
	})

	stopJanitor := jobs.StartSessionJanitor(database.DB, eng)

	addr := fmt.Sprintf("%s:%s", host, port)
	log.Println("Server running at", addr)

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Panicf("Failed to start server: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Gracefully shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	stopJanitor()
	broadcaster.Close()
	log.Println("Server exited cleanly")
}
