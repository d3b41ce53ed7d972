package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/radar-scan/config"
	"github.com/lixenwraith/radar-scan/engine"
)

var opts options

var rootCmd = &cobra.Command{
	Use:   "radar-scan",
	Short: "Radar sweep over a world map that reveals locations as the beam passes",
	Long: `radar-scan draws a looping scan line across a terminal world map.
Each location lights up with its label when the beam reaches it and fades
after a hold period.

Keys: q / Esc / Ctrl-C quit, space pauses and resumes the scan.
Set REDUCED_MOTION=1 (or --reduced-motion) to show the map without the sweep.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), opts)
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Print the resolved locations and where the sweep meets them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(opts)
		if err != nil {
			return err
		}
		return printLocations(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (watched for changes)")
	f.BoolVar(&opts.reducedMotion, "reduced-motion", false, "Show the map without the sweep")
	f.BoolVar(&opts.noAudio, "no-audio", false, "Disable the reveal ping")
	f.StringVar(&opts.listen, "listen", "", "Serve snapshots over WebSocket on this address")
	f.BoolVar(&opts.headless, "headless", false, "Run without a terminal UI and log the scan instead")
	f.IntVar(&opts.fps, "fps", 0, "Frame rate override (1-240)")
	f.BoolVarP(&opts.debug, "debug", "d", false, "Debug logging (to logs/radar-scan.log unless --log-file)")
	f.StringVar(&opts.logFile, "log-file", "", "Write logs to this file")

	rootCmd.AddCommand(locationsCmd)
}

// printLocations lists each location's axis position, the moment in the
// cycle the beam centre crosses it, and the span of the cycle it counts as hit
func printLocations(w io.Writer, cfg *config.Config) error {
	ec := cfg.EngineConfig()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPOSITION\tSWEEP %\tCROSSES AT\tHIT WINDOW")
	for _, m := range cfg.Resolve() {
		p := engine.LocationPercent(m.X)
		centre := "-"
		if p >= 0 && p < 100 {
			centre = cycleTime(p, ec.CycleDuration).String()
		}
		window := "never"
		if from, to, ok := hitWindow(p, ec.Tolerance); ok {
			window = fmt.Sprintf("%s-%s", cycleTime(from, ec.CycleDuration), cycleTime(to, ec.CycleDuration))
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.2f\t%s\t%s\n", m.ID, m.X, p, centre, window)
	}
	return tw.Flush()
}

// hitWindow returns the sweep range, within one 0..100 cycle, where a
// location at percent p is an active hit
func hitWindow(p, tolerance float64) (from, to float64, ok bool) {
	from = math.Max(p-tolerance, 0)
	to = math.Min(p+tolerance, 100)
	return from, to, from < to
}

func cycleTime(percent float64, cycle time.Duration) time.Duration {
	return time.Duration(percent / 100 * float64(cycle)).Round(time.Millisecond)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
