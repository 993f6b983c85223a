package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holmberd/go-slob"
)

func init() {
	rootCmd.AddCommand(newDemoCmd())
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the single pool walkthrough",
		Long: `The demo command initializes pool 0 with 4 byte blocks over 40 bytes of
storage, allocates a block, writes to it and returns it to the pool.

Example:
  slobctl demo
  slobctl demo --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd)
		},
	}
}

const (
	demoBlockSize   = 4
	demoStorageSize = 40
)

func runDemo(cmd *cobra.Command) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a, err := slob.New(slob.Config{TotalPools: 1, Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if err := a.InitPool(0, demoBlockSize, make([]byte, demoStorageSize)); err != nil {
		return err
	}
	st, err := a.PoolStats(0)
	if err != nil {
		return err
	}
	printInfo(out, "pool 0: %d blocks of %d bytes (stride %d, %d unused bytes)\n",
		st.Capacity, st.BlockSize, st.Stride, st.TrailingBytes)

	h, ok := a.Allocate(demoBlockSize)
	if !ok {
		return fmt.Errorf("pool 0 is exhausted")
	}
	payload := a.Bytes(h)
	n := copy(payload, "slob")
	printInfo(out, "allocated %d bytes from pool %d at offset %d, wrote %q\n",
		len(payload), h.Pool(), h.Offset(), payload[:n])

	if err := a.Release(h); err != nil {
		return err
	}
	printInfo(out, "successful return to pool %d\n", h.Pool())

	st, err = a.PoolStats(0)
	if err != nil {
		return err
	}
	printInfo(out, "pool 0: %d/%d blocks free\n", st.Free, st.Capacity)
	return a.Verify()
}
