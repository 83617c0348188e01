package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/timelineclient"
	"github.com/joho/godotenv"
)

const usage = `usage: timelinectl [flags] <command> [args]

commands:
  show                          print the timeline once
  watch                         poll and print every change
  slot <date> <mealTime> <status> [notes]
  day <date> <status>
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	baseURL := flag.String("url", envOr("TIMELINE_URL", "http://localhost:8080"), "timeline service base URL")
	token := flag.String("token", os.Getenv("TIMELINE_TOKEN"), "bearer token")
	subID := flag.String("sub", "", "subscription id")
	lookahead := flag.Int("lookahead", 0, "days ahead of today to show, 0 for all")
	interval := flag.Duration("interval", timelineclient.DefaultPollInterval, "polling interval for watch")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *subID == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client, err := timelineclient.New(*baseURL, *token, 10*time.Second)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	view := timelineclient.NewView(client, *subID, *lookahead, logger)

	if err := run(ctx, view, flag.Args(), *interval); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, view *timelineclient.View, args []string, interval time.Duration) error {
	if err := view.Refresh(ctx); err != nil {
		return err
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "show":
		printSlots(view.Slots())
	case "watch":
		view.OnChange = printSlots
		printSlots(view.Slots())
		view.Run(ctx, interval)
	case "slot":
		if len(rest) < 3 {
			return errors.New("slot needs <date> <mealTime> <status>")
		}
		notes := ""
		if len(rest) > 3 {
			notes = rest[3]
		}
		applied, err := view.SetSlotStatus(ctx, rest[0], domain.MealTime(rest[1]), rest[2], notes)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s is now %s\n", rest[0], rest[1], applied.Label())
	case "day":
		if len(rest) < 2 {
			return errors.New("day needs <date> <status>")
		}
		res, err := view.SetDayStatus(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Println(res.Summary)
		for _, o := range res.Outcomes {
			fmt.Printf("  %-10s %-8s %s -> %s %s\n", o.MealTime, o.Outcome, o.From, o.To, o.Reason)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func printSlots(slots []domain.MealSlot) {
	for _, s := range slots {
		fmt.Printf("%s  %-10s %-17s %s\n", s.Key.Date, s.MealTime, s.Status, s.Title)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
