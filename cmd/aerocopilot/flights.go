package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ent0n29/aerocopilot/internal/flights"
)

var (
	flightsLimit int
	flightsDemo  bool

	flightsCmd = &cobra.Command{
		Use:   "flights",
		Short: "Fetch live flights once and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			var source flights.Source
			if !flightsDemo {
				source = flights.NewOpenSkyClient(flights.OpenSkyConfig{
					BaseURL:     cfg.OpenSkyURL,
					MinInterval: cfg.FlightsMinInterval,
				})
			}
			poller := flights.NewPoller(source, logger, nil)
			poller.Refresh(cmd.Context())
			snap := poller.Snapshot(flightsLimit)
			counts := poller.Counts()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source=%s total=%d in_flight=%d on_ground=%d\n",
				counts.Source, counts.Total, counts.InFlight, counts.OnGround)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CALLSIGN\tCOUNTRY\tALT(m)\tSPEED(m/s)\tLAT\tLON")
			for _, f := range snap.Flights {
				fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.0f\t%.3f\t%.3f\n",
					f.Callsign, f.Country, f.Altitude, f.Velocity, f.Latitude, f.Longitude)
			}
			return tw.Flush()
		},
	}
)

func init() {
	flightsCmd.Flags().IntVarP(&flightsLimit, "limit", "n", flights.GlobeLimit, "maximum flights to print")
	flightsCmd.Flags().BoolVar(&flightsDemo, "demo", false, "skip OpenSky and print the demo flights")
}
