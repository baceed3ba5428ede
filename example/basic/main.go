package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecocheck/agent"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	identity := ecocheck.DeviceIdentity{
		CollectorAddress: "127.0.0.1",
		CollectorPort:    8080,
		DeviceID:         "esp01",
	}

	for {
		dev, err := ecocheck.New(identity,
			ecocheck.WithStoragePath("./data/eeprom.bin"),
			ecocheck.WithPortalAddr(":8081"),
			ecocheck.WithAutoSend(true, 10*time.Second),
		)
		if err != nil {
			log.Fatalf("new device: %v", err)
		}
		if err := dev.Begin(ctx); err != nil {
			log.Fatalf("begin: %v", err)
		}

		err = loop(ctx, dev)
		_ = dev.Shutdown(context.Background())
		if errors.Is(err, ecocheck.ErrRestart) {
			log.Printf("restarting")
			continue
		}
		if err != nil && ctx.Err() == nil {
			log.Fatalf("loop: %v", err)
		}
		return
	}
}

// loop feeds simulated readings every second, the way a sketch calls the
// setters before each Loop.
func loop(ctx context.Context, dev *ecocheck.Device) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		dev.SetTemperature(20 + rand.Float64()*5)
		dev.SetHumidity(40 + rand.Float64()*10)
		dev.SetCO2(400 + rand.Float64()*200)

		if err := dev.Loop(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
