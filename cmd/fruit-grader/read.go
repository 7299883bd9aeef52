package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/fruit-grader/internal/calibration"
	"github.com/sweeney/fruit-grader/internal/config"
	"github.com/sweeney/fruit-grader/internal/logic"
)

var (
	readCount    = 10
	readInterval = 200 * time.Millisecond
	readTare     = false
)

// NewReadCommand samples the load cell directly. The daemon must not be
// running, since it holds the GPIO lines.
func NewReadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "read",
		Short:   "Read the load cell directly and print weight and grade",
		GroupID: gOperator,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sensor, err := openSensor(cfg)()
			if err != nil {
				return fmt.Errorf("failed to open load cell: %w", err)
			}
			defer sensor.Close()

			if readTare {
				if err := sensor.Tare(); err != nil {
					return fmt.Errorf("failed to tare: %w", err)
				}
			}

			factor := calibration.NewFileStore(cfg.Calibration.File).Load()
			classifier := logic.NewClassifier(cfg.Product.MinWeight, cfg.Bands())
			for i := 0; i < readCount; i++ {
				if i > 0 {
					time.Sleep(readInterval)
				}
				raw, err := sensor.ReadRaw()
				if err != nil {
					fmt.Fprintf(os.Stderr, "read %d: %v\n", i+1, err)
					continue
				}
				printReading(os.Stdout, raw, factor, cfg.Product.MaxWeight, classifier)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&readCount, "count", "n", readCount, "number of readings")
	f.DurationVar(&readInterval, "interval", readInterval, "time between readings")
	f.BoolVar(&readTare, "tare", readTare, "tare before reading")
	return cmd
}

func printReading(w io.Writer, raw, factor, maxWeight float64, classifier *logic.Classifier) {
	grams := logic.DisplayGrams(logic.Calibrated(raw, factor))
	var grade string
	switch {
	case grams > maxWeight:
		grade = color.RedString("OVERLOAD")
	default:
		g, ok, err := classifier.Classify(grams)
		switch {
		case err != nil:
			grade = color.RedString("NO BAND")
		case !ok:
			grade = color.YellowString("-")
		default:
			grade = color.New(color.Bold, color.FgGreen).Sprint(g.Name())
		}
	}
	fmt.Fprintf(w, "raw=%10.3f  weight=%6.0f g  grade=%s\n", raw, grams, grade)
}
