package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/command"
	"github.com/wave/molly/internal/config"
	"github.com/wave/molly/internal/credential"
	"github.com/wave/molly/internal/observability"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify each line of an agent transcript",
	Long: `Read an agent transcript from a file or stdin, reassemble it into lines and print how each line is classified.

With --chunk N the input is fed to the reassembler in fragments of N bytes, the way streamed text arrives.
With --access-token every valid search command is also run against Bullhorn and the results are printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

var (
	classifyChunk       int
	classifyAccessToken string
)

func init() {
	classifyCmd.Flags().IntVar(&classifyChunk, "chunk", 0, "Feed the input in fragments of this many bytes")
	classifyCmd.Flags().StringVar(&classifyAccessToken, "access-token", "", "Bullhorn OAuth access token; runs each search command")
	rootCmd.AddCommand(classifyCmd)
}

// payloadSearcher runs one search command.
type payloadSearcher interface {
	Search(ctx context.Context, p command.Payload) (*bullhorn.Results, error)
}

func runClassify(cmd *cobra.Command, args []string) error {
	if classifyChunk < 0 {
		return fmt.Errorf("--chunk must not be negative")
	}

	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open transcript: %w", err)
		}
		defer f.Close()
		in = f
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var searcher payloadSearcher
	if classifyAccessToken != "" {
		cfg, err := config.Load("")
		if err != nil {
			return err
		}
		searcher, err = connect(ctx, cfg, classifyAccessToken, log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
		if err != nil {
			return err
		}
	}

	_, err := classify(ctx, in, cmd.OutOrStdout(), classifyChunk, searcher)
	return err
}

// connect logs in to Bullhorn with an access token and returns a search
// service over the resulting session.
func connect(ctx context.Context, cfg *config.Config, accessToken string, logger *log.Logger) (*bullhorn.Service, error) {
	client := bullhorn.NewClient(cfg.BullhornLoginURL, nil)
	session, err := client.Login(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("bullhorn login failed: %w", err)
	}

	store := credential.NewStore()
	store.Authorize(credential.Tokens{AccessToken: accessToken}, session, time.Now())
	gate := credential.NewGate(store, client, credential.GateOptions{Window: cfg.Window(), Logger: logger})
	return bullhorn.NewService(gate, client, nil, logger), nil
}

// classify reads in, feeds it to a reassembler in chunk-sized fragments
// (whole reads when chunk is 0) and prints every completed line, including a
// trailing unterminated one. Search commands are run when searcher is set.
func classify(ctx context.Context, in io.Reader, out io.Writer, chunk int, searcher payloadSearcher) (observability.Tally, error) {
	printer := observability.NewPrinter(out)
	var tally observability.Tally
	n := 0

	handle := func(line string) {
		n++
		outcome := command.Classify(line)
		tally.Add(outcome.Kind)
		printer.PrintOutcome(n, outcome)

		if searcher == nil || outcome.Kind != command.KindCommand {
			return
		}
		res, err := searcher.Search(ctx, outcome.Payload)
		if err != nil {
			fmt.Fprintf(out, "      search failed: %v\n", err) //nolint:errcheck
			return
		}
		printer.PrintResults(res)
	}

	var reassembler command.Reassembler
	reader := bufio.NewReader(in)
	buf := make([]byte, max(chunk, 4096))
	if chunk > 0 {
		buf = buf[:chunk]
	}
	for {
		read, err := reader.Read(buf)
		for _, line := range reassembler.Feed(string(buf[:read])) {
			handle(line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return tally, fmt.Errorf("failed to read transcript: %w", err)
		}
	}
	if rest := reassembler.Pending(); rest != "" {
		handle(rest)
	}

	printer.PrintTally(tally)
	return tally, nil
}
