package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrt"
	"github.com/hupe1980/agentrt/agent"
	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/schedule"
)

type serveFlags struct {
	now         bool
	once        bool
	metricsAddr string
}

func newServeCmd(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Send scheduled messages to the assistant agent",
		Long: `Send scheduled messages to the assistant agent.

Every entry of the schedules section sends its message to the assistant on
its cron spec. Replies are printed as they arrive until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, global, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.now, "now", false, "fire every schedule once at startup")
	cmd.Flags().BoolVar(&flags.once, "once", false, "fire every schedule once and exit")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runServe(cmd *cobra.Command, global *globalFlags, flags *serveFlags) error {
	ctx := cmd.Context()

	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	if flags.metricsAddr != "" {
		cfg.Runtime.MetricsAddr = flags.metricsAddr
	}

	if len(cfg.Schedules) == 0 {
		return errors.New("no schedules configured")
	}

	rt, cleanup, err := startRuntime(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sched := schedule.New(rt, func(o *schedule.Options) {
		o.Logger = rt.Logger()
		o.Buffer = len(cfg.Schedules)
	})

	ids, err := addSchedules(sched, cfg.Schedules)
	if err != nil {
		return err
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Stop(stopCtx)
	}()

	out := cmd.OutOrStdout()

	if flags.once {
		go fireAll(sched, ids)
		return printReplies(ctx, rt, sched.Results(), out, len(ids))
	}

	sched.Start()
	rt.Logger().Info("Scheduler started", "jobs", len(ids))

	if flags.now {
		go fireAll(sched, ids)
	}

	return printReplies(ctx, rt, sched.Results(), out, -1)
}

func addSchedules(sched *schedule.Scheduler, schedules []config.ScheduleConfig) ([]cron.EntryID, error) {
	ids := make([]cron.EntryID, 0, len(schedules))

	for _, sc := range schedules {
		msg := sc.Message

		id, err := sched.Add(schedule.Job{
			Name:      sc.Name,
			Spec:      sc.Spec,
			Recipient: assistantID,
			Payload: func() any {
				return agent.TextMessage{Content: msg, Source: "scheduler"}
			},
		})
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func fireAll(sched *schedule.Scheduler, ids []cron.EntryID) {
	for _, id := range ids {
		sched.RunNow(id)
	}
}

// printReplies drives each fired message to completion and prints the reply.
// It returns after limit firings, or never for a negative limit, and when ctx
// is done.
func printReplies(ctx context.Context, rt *agentrt.Runtime, results <-chan schedule.Fired, out io.Writer, limit int) error {
	for n := 0; limit < 0 || n < limit; n++ {
		var f schedule.Fired

		select {
		case <-ctx.Done():
			return nil
		case fired, ok := <-results:
			if !ok {
				return nil
			}
			f = fired
		}

		if f.Err != nil {
			fmt.Fprintf(out, "[%s] error: %v\n", f.Job, f.Err)
			continue
		}

		v, err := rt.Drive(ctx, f.Result)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "[%s] error: %v\n", f.Job, err)
			continue
		}

		if reply, ok := v.(agent.TextMessage); ok {
			fmt.Fprintf(out, "[%s] %s: %s\n", f.Job, reply.Source, reply.Content)
		} else {
			fmt.Fprintf(out, "[%s] unexpected reply %s\n", f.Job, core.TypeName(v))
		}
	}

	return nil
}
