package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"typofix/src/singleinstance"
	"typofix/src/worker"
)

type stressOptions struct {
	n         int
	mode      string
	deadline  time.Duration
	portStart int
	portEnd   int
}

type counts struct {
	ok, busy, failed, missing int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-runonce",
		Short:         "Stress test run-once delegation to a resident typofix",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mode != "std" && opts.mode != "clip" {
				return fmt.Errorf("unknown mode %q (want std or clip)", opts.mode)
			}
			singleinstance.SetPortRange(opts.portStart, opts.portEnd)
			return runWithOptions(*opts, singleinstance.NewClient(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: FIX STDOUT or FIX (clipboard only)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().IntVar(&opts.portStart, "port-start", singleinstance.DefaultPortStart, "first port to scan")
	cmd.Flags().IntVar(&opts.portEnd, "port-end", singleinstance.DefaultPortEnd, "last port to scan")

	return cmd
}

type fixClient interface {
	TryFix(ctx context.Context, outputToStdout bool) (bool, string, error)
}

func runWithOptions(opts stressOptions, client fixClient, out io.Writer) error {
	var wg sync.WaitGroup
	var c counts

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, _, err := client.TryFix(ctx, opts.mode == "std")
			classify(&c, delegated, err)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Fprintf(out, "launched=%d ok=%d busy=%d err=%d no-resident=%d elapsed=%s\n",
		opts.n, c.ok, c.busy, c.failed, c.missing, elapsed)
	return nil
}

func classify(c *counts, delegated bool, err error) {
	var residentErr *singleinstance.ResidentError
	switch {
	case errors.As(err, &residentErr) && residentErr.Message == worker.ErrBusy.Error():
		atomic.AddInt32(&c.busy, 1)
	case err != nil:
		atomic.AddInt32(&c.failed, 1)
	case delegated:
		atomic.AddInt32(&c.ok, 1)
	default:
		atomic.AddInt32(&c.missing, 1)
	}
}
