package spotctl

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// simulate posts randomized hardware reports, standing in for the sensor
// board during demos. Occupied slots report short distances, free slots
// long ones, mimicking the ultrasonic sensor.
func (c *client) simulate(ctx context.Context, slots int, interval time.Duration, count int) error {
	if slots <= 0 {
		return fmt.Errorf("slots must be positive")
	}
	if interval <= 0 {
		interval = time.Second
	}

	occupied := make([]bool, slots)
	sent := 0
	for {
		// Flip each slot with some probability so transitions show up at a
		// believable rate.
		for i := range occupied {
			if rand.Float64() < 0.3 {
				occupied[i] = !occupied[i]
			}
		}

		readings := make([]map[string]any, slots)
		for i := range readings {
			distance := 150 + rand.Float64()*200
			if occupied[i] {
				distance = 5 + rand.Float64()*25
			}
			readings[i] = map[string]any{
				"id":       i + 1,
				"distance": float64(int(distance*10)) / 10,
				"occupied": occupied[i],
			}
		}
		if err := c.postJSON("/api/report", map[string]any{"slots": readings}); err != nil {
			return err
		}

		sent++
		if count > 0 && sent >= count {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
