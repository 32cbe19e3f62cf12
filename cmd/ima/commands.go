package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ima/broker"
	"ima/internal/codec"
	"ima/internal/config"
	"ima/internal/engine"
	"ima/internal/intake"
	"ima/internal/logging"
	"ima/internal/pipeline"
	"ima/internal/telemetry"
	"ima/internal/transport"
)

type app struct {
	cfgFile string
	cfg     config.Config
	logs    io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "ima",
		Short:        "ima queues submitted messages and drains them into a database",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logs != nil {
				_ = a.logs.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return a.serve(cmd.Context()) },
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", os.Getenv("IMA_CONFIG"), "YAML config file (env IMA_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, gRPC health service and metrics endpoint",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.serve(cmd.Context()) },
		},
		a.drainCmd(),
		a.countCmd(),
		a.publishCmd(),
		a.healthCmd(),
	)
	return root
}

func (a *app) init() error {
	closer, err := logging.InitFromEnv()
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	a.logs = closer
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracerProvider(a.cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	e, err := engine.Bootstrap(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return e.Run(ctx)
}

func (a *app) drainCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Drain the queue once into the store and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pipeline.Compile(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			rep := p.Drainer.Drain(cmd.Context(), force)
			fmt.Fprintf(cmd.OutOrStdout(),
				"outcome=%s depth=%d fetched=%d acked=%d requeued=%d discarded=%d missing=%d took=%s\n",
				rep.Outcome, rep.Depth, rep.Fetched, rep.Acked, rep.Requeued, rep.Discarded, rep.Missing, rep.Duration)
			if rep.Err != nil {
				return rep.Err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "start even if another drain is running")
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of messages waiting in the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pipeline.Compile(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			n := broker.InspectCount(cmd.Context(), p.Broker, p.Queue)
			if n == broker.CountUnknown {
				return errors.New("could not read the queue depth")
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func (a *app) publishCmd() *cobra.Command {
	var rec struct {
		date, time, id, name string
	}
	cmd := &cobra.Command{
		Use:   "publish [raw message]",
		Short: "Publish a message, either raw or assembled from flags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := publishBody(args, rec.date, rec.time, rec.id, rec.name)
			if err != nil {
				return err
			}
			p, err := pipeline.Compile(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := intake.New(p.Broker, p.Queue).Submit(cmd.Context(), raw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&rec.date, "date", "", "DD/MM/YYYY (default today)")
	cmd.Flags().StringVar(&rec.time, "time", "", "HH:MM:SS (default now)")
	cmd.Flags().StringVar(&rec.id, "id", "", "record id (default a new UUID)")
	cmd.Flags().StringVar(&rec.name, "name", "", "name")
	return cmd
}

// publishBody returns the raw argument as is, or formats a record from the flags.
func publishBody(args []string, date, clock, id, name string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if name == "" {
		return "", errors.New("either a raw message or --name is required")
	}
	now := time.Now()
	rec := codec.Record{Date: now, Time: clock, ID: id, Name: name}
	if date != "" {
		d, err := time.Parse("2/1/2006", date)
		if err != nil {
			return "", fmt.Errorf("--date: %w", err)
		}
		rec.Date = d
	}
	if rec.Time == "" {
		rec.Time = now.Format(time.TimeOnly)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return codec.Format(rec), nil
}

func (a *app) healthCmd() *cobra.Command {
	var (
		addr    string
		service string
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service of a running instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = fmt.Sprintf("127.0.0.1:%d", a.cfg.GRPCPort)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			st, err := transport.CheckHealth(ctx, addr, service)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "host:port of the health service (default 127.0.0.1:<grpc_port>)")
	cmd.Flags().StringVar(&service, "service", "", `"", "broker" or "store"`)
	return cmd
}
