package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"dicomseg/internal/logging"
	"dicomseg/internal/models"
	"dicomseg/pkg/config"
	"dicomseg/pkg/interaction"
	"dicomseg/pkg/pipeline"
	"dicomseg/pkg/transfer"
	"dicomseg/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory or gs://bucket/prefix containing the DICOM series")
	configPath := flag.String("config", "dicomseg.yaml", "Path to the YAML configuration file")
	presetName := flag.String("preset", "", "Preset name (default: the configured default preset)")
	scheme := flag.String("scheme", "", "Override the preset's scheme: binary, tri-band or clusters")
	maxSlices := flag.Int("max-slices", 0, "Load at most this many evenly spaced slices (0: configured value)")
	skipFirst := flag.Bool("skip-first", false, "Skip the first file of the series")
	outputDir := flag.String("output", "", "Directory for output files (default: the configured directory)")
	preview := flag.Bool("preview", false, "Save a montage of axial slices colored by the initial transfer function")
	histogram := flag.Bool("histogram", false, "Print an intensity histogram")
	saveNPY := flag.Bool("npy", false, "Export the prepared volume as volume.npy")
	saveLabels := flag.Bool("labels", false, "Export the k-means label map as labels.npy")
	chart := flag.Bool("chart", false, "Save transfer function charts")
	sweep := flag.Bool("sweep", false, "Write a threshold sweep table to sweep.csv")
	extractSlices := flag.String("extract-slices", "", "Save every grayscale slice along these axes (comma separated: x, y, z)")
	slicesDir := flag.String("slices-dir", "", "Directory for extracted slices (default: <output>/slices)")
	spacing := flag.String("spacing", "", "Override voxel spacing in mm as x,y,z or a single value")
	interactive := flag.Bool("interactive", false, "Read threshold commands from stdin")
	render := flag.Bool("render", false, "With -interactive, save the middle axial slice on every redraw")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (default: configured level)")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	listPresets := flag.Bool("list-presets", false, "List the available presets and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *listPresets {
		for _, name := range cfg.PresetNames() {
			p, _ := cfg.Preset(name)
			fmt.Printf("%-20s scheme=%-9s window=%.0f/%.0f\n", name, p.Scheme, p.WindowCenter, p.WindowWidth)
		}
		fmt.Printf("\nColor presets: %v\n", transfer.PresetNames())
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	axes, err := models.ParseAxes(*extractSlices)
	if err != nil {
		log.Fatalf("Invalid -extract-slices: %v", err)
	}
	var spacingOverride models.Spacing
	if *spacing != "" {
		if spacingOverride, err = models.ParseSpacing(*spacing); err != nil {
			log.Fatalf("Invalid -spacing: %v", err)
		}
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	var logger zerolog.Logger
	if cfg.Logging.JSON {
		logger = logging.New(os.Stderr, logging.ParseLevel(level))
	} else {
		logger = logging.NewConsole(logging.ParseLevel(level))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("================================")
	fmt.Println("DICOM THRESHOLD SEGMENTATION")
	fmt.Println("================================")

	dir := *outputDir
	if dir == "" {
		dir = cfg.Output.Dir
	}

	params := &pipeline.Params{
		Input:      *inputDir,
		Config:     cfg,
		PresetName: *presetName,
		Scheme:     *scheme,
		MaxSlices:  *maxSlices,
		SkipFirst:  *skipFirst,
		Spacing:    spacingOverride,
		Outputs: pipeline.Outputs{
			Dir:          dir,
			Preview:      *preview,
			Histogram:    *histogram,
			HistogramOut: os.Stdout,
			NPY:          *saveNPY,
			Labels:       *saveLabels,
			Chart:        *chart,
			Sweep:        *sweep,
			Slices:       axes,
			SlicesDir:    *slicesDir,
		},
		Logger: logger,
	}

	// Run the segmentation pipeline
	startTime := time.Now()
	res, err := pipeline.New(params).Process(ctx)
	if err != nil {
		log.Fatalf("Segmentation failed: %v", err)
	}
	processingTime := time.Since(startTime)

	m := res.Model
	d := res.Volume.Dimensions()
	sp := res.Volume.Spacing()
	st := m.Stats()

	fmt.Printf("\nProcessing completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Series: %s\n\n", res.Report)

	fmt.Printf("Volume:\n")
	fmt.Printf("=======\n")
	fmt.Printf("Dimensions: %d x %d x %d\n", d.NX, d.NY, d.NZ)
	fmt.Printf("Spacing: %.2f x %.2f x %.2f mm\n", sp.X, sp.Y, sp.Z)
	fmt.Printf("Range: %.1f to %.1f (mean %.1f, median %.1f, sd %.1f)\n",
		res.Summary.Min, res.Summary.Max, res.Summary.Mean, res.Summary.Median, res.Summary.StdDev)

	fmt.Printf("\nThresholds (%s scheme):\n", m.Scheme().Kind)
	fmt.Printf("=======================\n")
	fmt.Printf("Lower: %.1f\n", m.Lower())
	fmt.Printf("Upper: %.1f\n", m.Upper())
	fmt.Printf("Below: %d (%.2f%%)  Band: %d (%.2f%%)  Above: %d (%.2f%%)\n",
		st.Below, st.BelowPct, st.Between, st.BetweenPct, st.Above, st.AbovePct)
	fmt.Printf("Visible: %.2f%%\n", m.Visible().Visible)
	if res.Clustering != nil {
		fmt.Printf("Cluster centers: %.1f\n", res.Clustering.Centers)
		fmt.Printf("Cluster sizes: %d\n", res.Clustering.Counts)
	}
	fmt.Printf("\nSuggested thresholds: Otsu %.1f, surface %.1f\n", res.Otsu, res.Surface)

	if len(res.Sweep) > 0 {
		fmt.Println("\nThreshold sweep:")
		for _, r := range res.Sweep {
			fmt.Printf("  %10.1f  selected %6.2f%%  below %6.2f%%\n", r.Threshold, r.SelectedPct, r.BelowPct)
		}
	}

	if len(res.Files) > 0 {
		fmt.Println("\nOutput files:")
		for _, f := range res.Files {
			fmt.Printf("- %s\n", f)
		}
	}

	if !*interactive {
		return
	}

	fmt.Println("\nInteractive mode. Commands: lower <v>, upper <v>, reset, view <coronal|axial|sagittal|reset>, quit")

	surface := &interaction.LogSurface{
		Out: os.Stdout,
		Log: logging.Component(logger, "surface"),
	}
	if *render {
		viewer := visualization.NewViewer(res.Volume)
		path := filepath.Join(dir, "interactive.png")
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
		surface.OnRedraw = func(tf transfer.Function) error {
			img, err := viewer.RenderSlice(models.AxisZ, d.NZ/2, tf)
			if err != nil {
				return err
			}
			return imaging.Save(img, path)
		}
	}

	controller := interaction.NewController(interaction.NewSession(m, surface, logger))
	events := make(chan interaction.Event)
	// The reader stops with the session, not only on interrupt
	cmdCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := interaction.ReadCommands(cmdCtx, os.Stdin, events, logger); err != nil && cmdCtx.Err() == nil {
			logger.Error().Err(err).Msg("failed to read commands")
		}
	}()

	err = controller.Run(ctx, events)
	cancel()
	if err != nil && err != context.Canceled {
		log.Fatalf("Interactive session failed: %v", err)
	}

	fmt.Printf("\nFinal thresholds: lower %.1f, upper %.1f\n", m.Lower(), m.Upper())
}
