package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"formproof/internal/platform/config"
	"formproof/internal/proof/poller"
	"formproof/pkg/proofclient"
)

const (
	apiFlagName      = "api"
	formIDFlagName   = "form-id"
	slugFlagName     = "slug"
	intervalFlagName = "interval"
	timeoutFlagName  = "timeout"
	jsonFlagName     = "json"
	noQRFlagName     = "no-qr"
)

type watchOptions struct {
	api      string
	formID   int64
	slug     string
	interval time.Duration
	timeout  time.Duration
	json     bool
	noQR     bool
}

func newWatchCmd(defaults *config.Watch) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Initialise a proof for a form and poll until it completes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.formID > 0) == (opts.slug != "") {
				return errors.New("exactly one of --form-id or --slug is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), opts)
		},
	}
	addAPIFlag(cmd, &opts.api, defaults)
	cmd.Flags().Int64Var(&opts.formID, formIDFlagName, 0, "Numeric form id")
	cmd.Flags().StringVar(&opts.slug, slugFlagName, "", "Public form slug")
	cmd.Flags().DurationVar(&opts.interval, intervalFlagName, defaults.PollInterval, "Status poll interval (env PROOF_POLL_INTERVAL)")
	cmd.Flags().DurationVar(&opts.timeout, timeoutFlagName, poller.DefaultTTL, "Give up and report expired after this long")
	cmd.Flags().BoolVar(&opts.json, jsonFlagName, false, "Print the final result as JSON")
	cmd.Flags().BoolVar(&opts.noQR, noQRFlagName, false, "Do not draw the QR code")
	return cmd
}

func newStatusCmd(defaults *config.Watch) *cobra.Command {
	var api string
	cmd := &cobra.Command{
		Use:   "status <proof-id>",
		Short: "Print the current status of a proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := proofclient.New(api)
			if err != nil {
				return err
			}
			res, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addAPIFlag(cmd, &api, defaults)
	return cmd
}

func addAPIFlag(cmd *cobra.Command, target *string, defaults *config.Watch) {
	cmd.Flags().StringVar(target, apiFlagName, defaults.API, "formproof API base URL (env FORMPROOF_API)")
}

func runWatch(ctx context.Context, out io.Writer, opts *watchOptions) error {
	client, err := proofclient.New(opts.api)
	if err != nil {
		return err
	}

	req := proofclient.InitRequest{PublicSlug: opts.slug}
	if opts.formID > 0 {
		req = proofclient.InitRequest{FormID: &opts.formID}
	}
	initRes, err := client.Init(ctx, req)
	if err != nil {
		return fmt.Errorf("init proof: %w", err)
	}

	if !initRes.RequiresVerification {
		fmt.Fprintf(out, "proof %s: form needs no credential verification\n", initRes.ProofID)
		return nil
	}
	fmt.Fprintf(out, "proof %s (%s)\n%s\n", initRes.ProofID, initRes.Status, initRes.InvitationURL)
	if !opts.noQR {
		art, err := terminalQR(initRes.InvitationURL)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, art)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	p := poller.New(statusChecker(client),
		poller.WithInterval(opts.interval),
		poller.WithTTL(opts.timeout),
		poller.WithLogger(logger),
	)
	final, err := p.Run(ctx, initRes.ProofID, func(u poller.Update) {
		if !opts.json && !u.Terminal() {
			fmt.Fprintf(out, "  attempt %d: %s\n", u.Attempt, u.Status)
		}
	})
	if err != nil {
		return err
	}

	if opts.json {
		return writeJSON(out, proofclient.StatusResponse{Status: final.Status, Attributes: final.Attributes})
	}
	printResult(out, final)
	return nil
}

func statusChecker(client *proofclient.Client) poller.Checker {
	return poller.CheckerFunc(func(ctx context.Context, proofID string) (poller.Result, error) {
		res, err := client.Status(ctx, proofID)
		if proofclient.IsNotFound(err) {
			// The proof is unknown or was already cleaned up; it cannot complete.
			return poller.Result{Status: poller.StatusFailed}, nil
		}
		if err != nil {
			return poller.Result{}, err
		}
		return poller.Result{Status: res.Status, Attributes: res.Attributes}, nil
	})
}

// terminalQR draws content with half-block characters.
func terminalQR(content string) (string, error) {
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return code.ToSmallString(false), nil
}

func printResult(out io.Writer, u poller.Update) {
	fmt.Fprintf(out, "result: %s\n", u.Status)
	names := make([]string, 0, len(u.Attributes))
	for name := range u.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s = %s\n", name, u.Attributes[name])
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
