// Command lio-core runs the LiDAR-inertial odometry and mapping engine
// against either a configured live data source (left to the integrator) or
// the bundled synthetic generator, for demonstration purposes.
//
// Grounded on the teacher's cmd/main.go composition root shape (build the
// system, Start, run) and on the pack's flag-based CLI convention (e.g.
// ApiStack-engine-go's cmd/*/main.go), replacing the teacher's bare
// fmt.Println/log.Fatalf with structured zap logging and signal-based
// graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/lio-core/lio/internal/config"
	"github.com/lio-core/lio/internal/engine"
	"github.com/lio-core/lio/internal/simulate"
	"github.com/lio-core/lio/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; built-in defaults are used otherwise)")
	demo := flag.String("demo", "stationary", "synthetic motion to run when no live data source is wired: stationary, yaw, straight")
	duration := flag.Duration("duration", 0, "stop the demo after this long (0 runs until interrupted)")
	mapOut := flag.String("map-out", "", "override the config's map_output_path")
	flag.Parse()

	log := telemetry.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalw("failed to load config", "path", *configPath, "err", err)
		}
		cfg = loaded
	}
	if *mapOut != "" {
		cfg.MapOutputPath = *mapOut
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	eng := engine.New(cfg, log)
	eng.Run(ctx)
	go eng.Loop(ctx)

	motion, err := demoMotion(*demo)
	if err != nil {
		log.Fatalw("invalid demo motion", "err", err)
	}
	gen := simulate.New(simulate.DefaultConfig())
	log.Infow("lio-core running", "demo", *demo, "config", cfg)
	gen.Run(ctx, eng, motion)

	<-ctx.Done()
	if cfg.MapOutputPath != "" {
		if err := eng.FlushMap(cfg.MapOutputPath); err != nil {
			log.Errorw("failed to flush map", "path", cfg.MapOutputPath, "err", err)
		} else {
			log.Infow("map flushed", "path", cfg.MapOutputPath)
		}
	}

	snap := eng.Snapshot()
	if snap.Ready {
		log.Infow("final pose", "pos", snap.Pos, "rot_wxyz", snap.Rot, "scans", len(snap.Path))
	}
}

func demoMotion(name string) (simulate.Motion, error) {
	switch name {
	case "stationary":
		return simulate.Stationary(), nil
	case "yaw":
		return simulate.PureYaw(0.5), nil
	case "straight":
		return simulate.StraightLine(0.3), nil
	default:
		return nil, fmt.Errorf("unknown demo motion %q", name)
	}
}
