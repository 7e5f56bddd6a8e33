// Command reactord bootstraps a reactor Pool from a JSON config file,
// pinning one goroutine per configured lcore, and runs until terminated.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/makesoftwaresafe/spdk-sub001/reactor"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/fdgroup"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/obslog"
)

// fileConfig mirrors reactor.Config in a JSON-friendly shape.
type fileConfig struct {
	Lcores          []uint32 `json:"lcores"`
	RingCapacity    int      `json:"ring_capacity"`
	IsolatedCores   string   `json:"isolated_cores"`
	SchedulingLcore uint32   `json:"scheduling_lcore"`
	SchedPeriodMS   uint64   `json:"sched_period_ms"`
	LockFilePrefix  string   `json:"lock_file_prefix"`
	CtxSwitchPeriod uint64   `json:"ctx_switch_period_ms"`
	InterruptMode   bool     `json:"interrupt_mode"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  %s -config path/to/config.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		flag.PrintDefaults()
	}
	flagConfig := flag.String("config", "", "path to a JSON reactor pool config")
	flag.Parse()

	if *flagConfig == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*flagConfig); err != nil {
		fmt.Fprintln(os.Stderr, "reactord:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var isolated cpuset.Set
	if fc.IsolatedCores != "" {
		isolated, err = cpuset.Parse(fc.IsolatedCores)
		if err != nil {
			return fmt.Errorf("parse isolated_cores: %w", err)
		}
	}

	log := obslog.New(os.Stdout)

	cfg := reactor.Config{
		Lcores:          fc.Lcores,
		RingCapacity:    fc.RingCapacity,
		IsolatedCores:   isolated,
		SchedulingLcore: fc.SchedulingLcore,
		SchedPeriodTSC:  fc.SchedPeriodMS * uint64(1_000_000), // tscNow() reports nanoseconds
		LockFilePrefix:  fc.LockFilePrefix,
		Logger:          log,
		CtxSwitchPeriod: fc.CtxSwitchPeriod * uint64(1_000_000),
	}

	var newFgrp func(lcore uint32) (fdgroup.Group, error)
	if fc.InterruptMode {
		newFgrp = func(uint32) (fdgroup.Group, error) { return fdgroup.New() }
	}

	pool, err := reactor.NewPool(cfg, newFgrp)
	if err != nil {
		return fmt.Errorf("construct pool: %w", err)
	}

	pinned := make(chan error, len(cfg.Lcores))
	for _, lc := range cfg.Lcores {
		lc := lc
		go func() {
			runtime.LockOSThread()
			var set unix.CPUSet
			set.Set(int(lc))
			if err := unix.SchedSetaffinity(0, &set); err != nil {
				pinned <- fmt.Errorf("pin lcore %d: %w", lc, err)
				return
			}
			pinned <- nil
			pool.Reactor(lc).Run()
		}()
	}
	for range cfg.Lcores {
		if err := <-pinned; err != nil {
			return err
		}
	}

	pool.WaitReady()
	log.Info("reactor pool ready", "lcores", len(cfg.Lcores))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	pool.Shutdown()
	return nil
}
