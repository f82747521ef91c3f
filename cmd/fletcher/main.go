package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-fletcher/internal/convert"
	"github.com/23skdu/longbow-fletcher/internal/flightpub"
	"github.com/23skdu/longbow-fletcher/internal/logger"
)

var (
	inputPath   = flag.String("input", "model.gguf", "Path to source GGUF model file")
	outputDir   = flag.String("output", "", "Output directory (default: <input stem>-ternary)")
	tileLayout  = flag.Bool("tile-layout", false, "Apply the warp-tile element shuffle before packing")
	verify      = flag.Bool("verify", true, "Read written components back and compare bit for bit")
	flightAddr  = flag.String("flight", "", "Arrow Flight address to publish components to (optional)")
	metricsAddr = flag.String("metrics", "", "Address to serve Prometheus metrics (optional)")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat   = flag.String("log-format", "console", "Log format: console or json")
	logFile     = flag.String("log-file", "fletcher.log", "Append json log lines to this file (empty to disable)")
)

func main() {
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open log file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		logger.SetupWithSink(*logLevel, *logFormat, f)
	} else {
		logger.Setup(*logLevel, *logFormat)
	}

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	out := *outputDir
	if out == "" {
		stem := strings.TrimSuffix(filepath.Base(*inputPath), filepath.Ext(*inputPath))
		out = stem + "-ternary"
	}

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			logger.Log.Info("metrics serving", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				logger.Log.Error("metrics server error", "error", err)
			}
		}()
	}

	opts := convert.Options{
		InputPath:  *inputPath,
		OutputDir:  out,
		TileLayout: *tileLayout,
		Verify:     *verify,
	}
	if *flightAddr != "" {
		opts.Publisher = flightpub.NewClient(*flightAddr)
	}

	res, err := convert.Run(context.Background(), opts)
	if err != nil {
		logger.Log.Error("conversion failed", "input", *inputPath, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger.Log.Info("conversion complete",
		"architecture", res.Config.GetArchitecture(),
		"layers", res.Layers,
		"tensors", res.Tensors,
		"output", out,
		"duration", res.Duration.String())
}
