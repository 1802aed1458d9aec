package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"meshmap/core-go/internal/config"
	"meshmap/core-go/internal/httpapi"
	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/render"
	"meshmap/core-go/internal/session"
)

type renderOptions struct {
	Format      string
	SelectNode  string
	SelectShape string
	Hide        []string
}

var (
	renderInput  string
	renderOutput string
	renderOpts   renderOptions
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a snapshot file offline",
	Long:  "render reads one snapshot JSON document and writes the derived render model as JSON or GeoJSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger := httpapi.NewLogger(os.Stderr, cfg.Log.Level)

		in := io.Reader(os.Stdin)
		if renderInput != "-" {
			f, err := os.Open(renderInput)
			if err != nil {
				return fmt.Errorf("open snapshot: %w", err)
			}
			defer f.Close()
			in = f
		}

		out := io.Writer(os.Stdout)
		if renderOutput != "" && renderOutput != "-" {
			f, err := os.Create(renderOutput)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}

		return renderSnapshot(in, out, cfg, logger, renderOpts)
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderInput, "input", "", "Snapshot JSON file, or - for stdin")
	renderCmd.Flags().StringVar(&renderOutput, "output", "", "Output file (default stdout)")
	renderCmd.Flags().StringVar(&renderOpts.Format, "format", "json", "Output format: json or geojson")
	renderCmd.Flags().StringVar(&renderOpts.SelectNode, "select-node", "", "Node id to select before rendering")
	renderCmd.Flags().StringVar(&renderOpts.SelectShape, "select-shape", "", "Shape id (relay:tier) to select before rendering")
	renderCmd.Flags().StringSliceVar(&renderOpts.Hide, "hide", nil, "Layers to hide (directLinks, hop2Coverage, hop3Coverage, hop4PlusCoverage, signalCircles)")
	_ = renderCmd.MarkFlagRequired("input")
}

func renderSnapshot(in io.Reader, out io.Writer, cfg config.Config, logger zerolog.Logger, opts renderOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "json" && format != "geojson" {
		return fmt.Errorf("unknown format %q (want json or geojson)", opts.Format)
	}

	var snap mesh.Snapshot
	if err := json.NewDecoder(in).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.WindowHours == 0 {
		snap.WindowHours = cfg.Map.WindowHours
	}

	sess := session.New(logger, sessionOptions(cfg), nil)
	for _, key := range opts.Hide {
		if _, err := sess.OnLayerToggled(key, false); err != nil {
			return fmt.Errorf("hide %q: %w", key, err)
		}
	}
	model := sess.ApplySnapshot(snap)

	var err error
	switch {
	case opts.SelectNode != "":
		model, err = sess.OnNodeClicked(opts.SelectNode)
	case opts.SelectShape != "":
		model, err = sess.OnShapeClicked(opts.SelectShape)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if format == "geojson" {
		return enc.Encode(render.GeoJSON(model))
	}
	return enc.Encode(model)
}
