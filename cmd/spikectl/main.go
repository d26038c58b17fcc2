// Command spikectl replays recorded chat count logs through the analyzer.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"
	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/logger"
	"github.com/Minthug/chzzk-chat-analyzer/internal/replay"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spikectl",
		Short:         "Offline tools for the chat spike analyzer",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newReplayCmd())
	return root
}

func newReplayCmd() *cobra.Command {
	var (
		file    string
		windows bool
		cfg     = analyzer.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed an NDJSON event log through a fresh analyzer and print spikes",
		Long: `Each input line is a JSON object such as
  {"stream_id":"v1","mode":"recorded","media_seconds":61.5,"count":3,"tags":["lol"]}
An optional "op" of open, flush, end or clear controls the stream instead.
The same log always produces the same output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			// Let the keyword cap follow --lag.
			cfg.KeywordWindowRetention = 0
			svc, err := analyzer.NewService(analyzer.NewRegistry(), cfg, logger.Discard())
			if err != nil {
				return err
			}

			st, err := replay.Run(in, svc, cmd.OutOrStdout(), replay.Options{Windows: windows})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "lines=%d dropped=%d windows=%d spikes=%d keyword_spikes=%d\n",
				st.Lines, st.Dropped, st.WindowsClosed, st.Spikes, st.KeywordSpikes)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "-", "event log to read (- for stdin)")
	f.BoolVar(&windows, "windows", false, "also print every closed window")
	f.IntVar(&cfg.WindowLengthSeconds, "window", cfg.WindowLengthSeconds, "window length in seconds")
	f.Float64Var(&cfg.ZThreshold, "threshold", cfg.ZThreshold, "z-score spike threshold")
	f.IntVar(&cfg.LagSize, "lag", cfg.LagSize, "closed windows in the baseline")
	f.StringSliceVarP(&cfg.Keywords, "keyword", "k", nil, "keyword to track (repeatable)")
	return cmd
}
