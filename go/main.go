package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rmmh/mcr2anvil/go/config"
	"github.com/rmmh/mcr2anvil/go/convert"
	"github.com/rmmh/mcr2anvil/go/journal"
	"github.com/rmmh/mcr2anvil/go/status"
)

// viper keys and the flags that set them
var flagKeys = map[string]string{
	"workers":     "workers",
	"biome":       "biome",
	"fresh":       "fresh",
	"journal":     "journal",
	"status_addr": "status-addr",
	"debug":       "debug",
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "mcr2anvil <base folder> <world name>",
		Short: "Convert a McRegion world save to the Anvil format",
		Long: "Converts every region file of a McRegion world (overworld, nether and end) to Anvil.\n" +
			"The .mcr files are kept and level.dat is backed up as level.dat_mcr.",
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				v.Set("base_dir", args[0])
			}
			if len(args) > 1 {
				v.Set("world", args[1])
			}
			s, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(s, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "read settings from this file (yaml, toml or json)")
	f.IntP("workers", "w", runtime.NumCPU(), "regions converted in parallel; 0 converts one at a time")
	f.Int("biome", config.NoBiome, "biome id for converted chunks; -1 lets the game work them out")
	f.Bool("fresh", false, "delete .mca files and restore level.dat_mcr before converting")
	f.String("journal", "", "record the run in this sqlite database")
	f.String("status-addr", "", "serve /progress and /metrics on this address")
	f.BoolP("debug", "d", false, "enable debug output")
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(s *config.Settings, stderr io.Writer) error {
	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	tracker := &status.Tracker{}
	reg := prometheus.NewRegistry()
	metrics, err := status.NewMetrics(reg)
	if err != nil {
		return err
	}
	recorders := convert.MultiRecorder{metrics}

	var j *journal.Journal
	if s.Journal != "" {
		j, err = journal.Open(s.Journal, log)
		if err != nil {
			return err
		}
		defer j.Close()
		recorders = append(recorders, j)
	}

	if s.StatusAddr != "" {
		srv := status.NewServer(s.StatusAddr, tracker, reg, log)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	storage := convert.NewStorage(s.BaseDir, convert.Options{
		Workers:  s.Workers,
		Biomes:   s.Biomes(),
		Logger:   log,
		Recorder: recorders,
	})
	if s.Fresh {
		if err := storage.Reset(s.World); err != nil {
			return err
		}
	}

	if j != nil {
		if _, err := j.BeginRun(s.World, s.Workers); err != nil {
			return err
		}
	}
	start := time.Now()
	sum, err := storage.Convert(s.World, convert.MultiSink{status.NewConsole(log), tracker})
	if j != nil {
		if ferr := j.FinishRun(err == nil && sum.FailedRegions == 0); ferr != nil {
			log.Warn("could not finish journal run", "err", ferr)
		}
	}
	if err != nil {
		return err
	}

	log.Info("conversion finished", "took", formatElapsed(time.Since(start)),
		"regions", sum.Regions, "converted", sum.Converted, "skipped", sum.Skipped,
		"failed_chunks", sum.FailedChunks, "failed_regions", sum.FailedRegions)
	log.Info("to revert, replace level.dat with level.dat_mcr and delete the .mca files, " +
		"or rerun with --fresh to start over")
	return nil
}

// formatElapsed renders d as hh:mm:ss.mmm.
func formatElapsed(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
