package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/framehound/framehound/internal/config"
	"github.com/framehound/framehound/internal/detect"
	"github.com/framehound/framehound/internal/ffmpeg"
	"github.com/framehound/framehound/internal/intent"
	"github.com/framehound/framehound/internal/logging"
	"github.com/framehound/framehound/internal/match"
	"github.com/framehound/framehound/internal/pipeline"
	"github.com/framehound/framehound/internal/server"
	"github.com/framehound/framehound/internal/storage"
	"github.com/framehound/framehound/pkg/util"
)

var (
	cfgFile string
	verbose bool

	targetObject  string
	frameInterval float64
	minConfidence float64
	maxFrames     int
	outputPath    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "framehound",
	Short: "framehound - object and color detection over video",
	Long:  "Samples video frames, detects objects, classifies their dominant colors, and matches them against object/color queries.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Local .env is optional
		if err := godotenv.Load(); err == nil {
			log.Debug().Msg("loaded .env")
		}

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	processCmd.Flags().StringVarP(&targetObject, "target", "t", "", "target object, optionally color-qualified (e.g. \"red car\")")
	processCmd.Flags().Float64VarP(&frameInterval, "interval", "i", 0, "seconds between sampled frames (default from config)")
	processCmd.Flags().Float64VarP(&minConfidence, "min-confidence", "c", -1, "minimum detection confidence (default from config)")
	processCmd.Flags().IntVar(&maxFrames, "max-frames", 0, "stop after this many sampled frames (0 = no cap)")
	processCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the result JSON to a file instead of stdout")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(intentCmd)
}

var processCmd = &cobra.Command{
	Use:   "process [input video]",
	Short: "Run detection over a video file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, parser, cleanup, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		params := pipeline.Params{
			FrameIntervalSeconds: cfg.Pipeline.FrameIntervalSeconds,
			MinConfidence:        cfg.Pipeline.MinConfidence,
			MaxFrames:            maxFrames,
		}
		if frameInterval > 0 {
			params.FrameIntervalSeconds = frameInterval
		}
		if minConfidence >= 0 {
			params.MinConfidence = minConfidence
		}
		if target := strings.TrimSpace(targetObject); target != "" {
			params.TargetObject = target
			res := parser.Parse(cmd.Context(), target)
			params.Queries = res.Pairs
			if len(params.Queries) == 0 {
				for _, obj := range res.Targets {
					params.Queries = append(params.Queries, match.Query{Object: obj})
				}
			}
		}

		result, err := pipe.Run(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}

		log.Info().
			Int("processed_frames", result.Summary.ProcessedFrames).
			Int("detections_found", result.Summary.DetectionsFound).
			Int("target_hits", result.Summary.TargetHits).
			Msg("processing complete")

		return writeResult(result, outputPath)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, parser, cleanup, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := server.New(log.Logger, cfg, pipe, parser)
		return srv.ListenAndServe(cmd.Context())
	},
}

var intentCmd = &cobra.Command{
	Use:   "intent [query text]",
	Short: "Parse a natural-language query into detection targets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		parser := newIntentParser(cfg)
		res := parser.Parse(cmd.Context(), strings.Join(args, " "))

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// buildPipeline assembles the detector, video opener, optional snapshot
// store, and intent parser from the process configuration. The returned
// cleanup releases the detector session.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *intent.Parser, func(), error) {
	detector, err := detect.NewONNXDetector(log.Logger, detect.ONNXConfig{
		ModelPath:  cfg.Detector.ModelPath,
		LabelsPath: cfg.Detector.LabelsPath,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := detector.Close(); err != nil {
			log.Warn().Err(err).Msg("detector close failed")
		}
	}

	exec, err := ffmpeg.New(log.Logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	opener := pipeline.OpenerFunc(func(ctx context.Context, path string) (pipeline.FrameSource, error) {
		return exec.OpenFrameStream(ctx, path)
	})

	var store storage.ImageStore
	if cfg.Snapshots.Enabled() {
		minioStore, err := storage.NewMinioStore(log.Logger, cfg.Snapshots)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		store = minioStore
	}

	pipe := pipeline.New(log.Logger, detector, opener, store)
	return pipe, newIntentParser(cfg), cleanup, nil
}

func newIntentParser(cfg *config.Config) *intent.Parser {
	var remote intent.Extractor
	if cfg.Intent.GeminiAPIKey != "" {
		remote = intent.NewGeminiClient(cfg.Intent.GeminiAPIKey)
	}
	return intent.NewParser(log.Logger, remote)
}

// writeResult emits the run result as JSON, to a file when a path is
// given and stdout otherwise.
func writeResult(result *pipeline.Result, path string) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println(string(out))
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := util.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write result to %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("result written")
	return nil
}
