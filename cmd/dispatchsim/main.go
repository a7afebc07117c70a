// Command dispatchsim plans one dispatch cycle for a set of orders and runs it
// either as a batch report or as a live ASCII map.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drone-dispatch/internal/config"
	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/logging"
	"drone-dispatch/internal/render"
	"drone-dispatch/internal/repo/memory"
	"drone-dispatch/internal/service"
)

type options struct {
	ordersFile string
	fleetFile  string
	live       bool
	interval   time.Duration
	maxSteps   int
	scale      float64
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("dispatchsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.ordersFile, "orders", "", "JSON file with order requests (default: built-in demo set)")
	fs.StringVar(&opts.fleetFile, "fleet", "", "fleet file (yaml/json/toml, default: built-in fleet)")
	fs.BoolVar(&opts.live, "live", false, "run the stepped simulation with the ASCII map")
	fs.DurationVar(&opts.interval, "interval", 200*time.Millisecond, "pause between live steps")
	fs.IntVar(&opts.maxSteps, "max-steps", 0, "override the live step bound")
	fs.Float64Var(&opts.scale, "scale", 1, "kilometres per map cell")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  dispatchsim [--orders FILE] [--fleet FILE] [--live [--interval D] [--scale KM]]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.interval < 0 {
		return opts, fmt.Errorf("interval must not be negative")
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	logger := logging.Setup(opts.logLevel, "console")
	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "dispatchsim: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer, logger zerolog.Logger) error {
	specs, err := config.LoadFleet(opts.fleetFile)
	if err != nil {
		return err
	}
	reqs, err := loadOrders(opts.ordersFile)
	if err != nil {
		return err
	}

	svc := service.New(memory.NewStore(), logger, service.Options{MaxSteps: opts.maxSteps})
	fleet, err := svc.EnsureFleet(ctx, specs)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "fleet: %d drones\n", len(fleet))

	accepted := 0
	for _, req := range reqs {
		prio, err := domain.ParsePriority(req.Priority)
		if err == nil {
			_, err = svc.SubmitOrder(ctx, req.UserID, req.position(), req.WeightKg, prio)
		}
		if err != nil {
			fmt.Fprintf(stdout, "rejected order %s (%.0f,%.0f) %.1fkg: %v\n", req.UserID, req.X, req.Y, req.WeightKg, err)
			continue
		}
		accepted++
	}
	fmt.Fprintf(stdout, "orders: %d accepted, %d rejected\n", accepted, len(reqs)-accepted)

	plan, err := svc.PlanCycle(ctx)
	if err != nil {
		return err
	}
	orders, err := allOrders(ctx, svc)
	if err != nil {
		return err
	}
	printPlan(stdout, plan, domain.NewOrderBook(orders))

	if !opts.live {
		report, err := svc.RunBatch(ctx)
		if err != nil {
			return err
		}
		printReport(stdout, report)
		return nil
	}

	renderer := render.NewASCII(stdout)
	renderer.Scale = opts.scale
	summary, err := svc.RunStepped(ctx, renderer, opts.interval)
	printSummary(stdout, summary)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stdout, "interrupted")
		return nil
	}
	if err != nil {
		return err
	}
	return renderer.Err()
}

const orderPage = 500

// allOrders pages through ListOrders until it runs dry.
func allOrders(ctx context.Context, svc *service.Service) ([]*domain.Order, error) {
	var orders []*domain.Order
	for offset := 0; ; offset += orderPage {
		page, err := svc.ListOrders(ctx, service.OrderFilter{Limit: orderPage, Offset: offset})
		if err != nil {
			return nil, err
		}
		orders = append(orders, page...)
		if len(page) < orderPage {
			return orders, nil
		}
	}
}
