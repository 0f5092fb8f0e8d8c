package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	app "tyre-vision/internal/application"
	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
	"tyre-vision/internal/infrastructure/vision"
)

var (
	flagReference      string
	flagDamaged        string
	flagOutput         string
	flagFPS            int
	flagMmPerIntensity float64
	flagVerbose        bool
)

func main() {
	root := &cobra.Command{
		Use:   "tyrecli",
		Short: "Tyre damage analysis from rotating tyre video",
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analysis pipeline on a reference/damaged video pair",
		RunE:  runAnalyze,
	}
	analyze.Flags().StringVarP(&flagReference, "reference", "r", "", "reference tyre video path (required)")
	analyze.Flags().StringVarP(&flagDamaged, "damaged", "d", "", "damaged tyre video path (required)")
	analyze.Flags().StringVarP(&flagOutput, "output", "o", "analysis_output", "output directory for artifacts")
	analyze.Flags().IntVar(&flagFPS, "fps", 5, "frame sampling rate")
	analyze.Flags().Float64Var(&flagMmPerIntensity, "mm-per-intensity", entity.DefaultMmPerIntensity, "depth calibration, mm per intensity unit")
	_ = analyze.MarkFlagRequired("reference")
	_ = analyze.MarkFlagRequired("damaged")

	edge := &cobra.Command{
		Use:   "edge-video <input> <output>",
		Short: "Build a contrast-equalized edge video from a single video",
		Args:  cobra.ExactArgs(2),
		RunE:  runEdgeVideo,
	}

	root.AddCommand(analyze, edge)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := newLogger()

	pipeline := app.NewPipeline(
		vision.NewPreprocessor(log),
		vision.NewCrackDetector(log),
		vision.NewDepthEstimator(flagMmPerIntensity, log),
		vision.NewDamageClassifier(log),
		vision.NewVideoSynthesizer(log),
		log,
	)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	progress := port.ProgressFunc(func(p float64, stage string) {
		bar.Describe(stage)
		_ = bar.Set(int(p * 100))
	})

	result, err := pipeline.Run(cmd.Context(), entity.AnalysisRequest{
		ReferenceVideoPath: flagReference,
		DamagedVideoPath:   flagDamaged,
		OutputDir:          flagOutput,
		FPS:                flagFPS,
	}, progress)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	printSummary(result)
	return nil
}

func runEdgeVideo(cmd *cobra.Command, args []string) error {
	log := newLogger()
	synth := vision.NewVideoSynthesizer(log)

	meta, err := synth.SynthesizeEdgeVideo(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("edge video written: %s (%d frames, %dx%d)\n",
		meta.OutputPath, meta.NumFrames, meta.Width, meta.Height)
	return nil
}

func printSummary(result *entity.AnalysisResult) {
	fmt.Println("Analysis complete")
	if result.Cracks != nil {
		fmt.Printf("  cracks:   %d total, avg density %.2f%%\n",
			result.Cracks.TotalCracks, result.Cracks.AvgDensity)
	}
	if result.Depth != nil {
		fmt.Printf("  depth:    max %.2f mm\n", result.Depth.MaxDepthMm)
	}
	if result.Damage != nil {
		fmt.Printf("  damage:   %v\n", result.Damage.DetectedDamageTypes)
	}
	if result.Severity != nil {
		fmt.Printf("  severity: %.1f/100 (%s)\n",
			result.Severity.OverallSeverityScore, result.Severity.RecommendedAction)
	}
	if result.DiffVideoPath != "" {
		fmt.Printf("  video:    %s\n", result.DiffVideoPath)
	}
}
