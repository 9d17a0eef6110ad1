package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/venue-scan/internal/scanclient"
)

type options struct {
	apiURL   string
	eventID  string
	email    string
	password string
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "scanner",
		Short: "Door scanner for venue check-in",
		Long: "Reads scanned QR codes from stdin, one per line (keyboard-wedge barcode readers),\n" +
			"validates them against the check-in API and waits for an empty line before the next scan.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.eventID == "" || opts.email == "" || opts.password == "" {
				return errors.New("event, email and password are required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.apiURL, "api", envOr("SCANNER_API_URL", "http://localhost:8080"), "check-in API base URL")
	f.StringVar(&opts.eventID, "event", os.Getenv("SCANNER_EVENT_ID"), "event this door scans for")
	f.StringVar(&opts.email, "email", os.Getenv("SCANNER_EMAIL"), "operator email")
	f.StringVar(&opts.password, "password", os.Getenv("SCANNER_PASSWORD"), "operator password")
	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	client := scanclient.NewClient(opts.apiURL)
	creds := scanclient.NewCredentials(func(ctx context.Context) (string, error) {
		return client.Login(ctx, opts.email, opts.password)
	})
	if _, err := creds.Acquire(ctx); err != nil {
		return err
	}
	loop := scanclient.NewLoop(opts.eventID, creds, client)
	fmt.Fprintf(out, "scanning for event %s\n", loop.EventID())

	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(lines.Text())
		if line == "" {
			if loop.Busy() {
				loop.Dismiss()
				fmt.Fprintln(out, "ready")
			}
			continue
		}
		res, err := loop.HandleScan(ctx, line)
		switch {
		case errors.Is(err, scanclient.ErrBusy):
			fmt.Fprintln(out, "press Enter to dismiss the previous result")
		case err != nil:
			log.Printf("scanner: %v", err)
			fmt.Fprintln(out, "ERROR: could not validate the code; scan again to retry")
		default:
			fmt.Fprintln(out, render(res))
		}
	}
	return lines.Err()
}

func render(o scanclient.Outcome) string {
	if !o.Accepted {
		return fmt.Sprintf("REJECTED [%s] %s", o.Code, o.Message)
	}
	s := fmt.Sprintf("ACCEPTED %s (%s, %s)", o.GuestName, o.Type, o.Status)
	if o.TotalAllowedScans > 1 {
		s += fmt.Sprintf(" %d/%d used", o.ConsumedScans, o.TotalAllowedScans)
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
