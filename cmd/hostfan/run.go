package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fgeck/hostfan/internal/config"
	"github.com/fgeck/hostfan/internal/models"
	"github.com/fgeck/hostfan/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ErrHostFailures marks a run where at least one host's command exited
// nonzero; main converts it to exit code 2.
var ErrHostFailures = errors.New("one or more hosts failed")

var (
	procs     int
	inputFile string
	insecure  bool
	capture   bool
)

var runCmd = &cobra.Command{
	Use:   "run host1[,host2,...] CMD [ARG...]",
	Short: "Execute a command on the given hosts in parallel",
	Long: `Execute CMD on every listed host through ssh, at most -n sessions at
a time. Output lines are forwarded live, prefixed with the originating
hostname. Flags must precede the host list so that flags of the remote
command pass through untouched.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runHosts,
}

func init() {
	runCmd.Flags().IntVarP(&procs, "procs", "n", models.DefaultMaxProcs, "maximum parallel ssh sessions (0 = unlimited)")
	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "file passed as stdin to every ssh session")
	runCmd.Flags().BoolVar(&insecure, "insecure", false, "skip strict host key verification")
	runCmd.Flags().BoolVar(&capture, "capture", false, "gather stdout in memory and print it grouped per host")

	// Stop flag parsing at the first positional argument; everything after
	// the host list belongs to the remote command.
	runCmd.Flags().SetInterspersed(false)
}

func runHosts(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	// Explicit flags override config-file defaults.
	if cmd.Flags().Changed("procs") {
		settings.MaxProcs = procs
	}
	if cmd.Flags().Changed("insecure") {
		settings.Insecure = insecure
	}
	if cmd.Flags().Changed("capture") {
		settings.Capture = capture
	}

	hosts := splitHosts(args[0])
	if len(hosts) == 0 {
		return fmt.Errorf("no hosts given")
	}

	if inputFile != "" {
		if _, err := os.Stat(inputFile); err != nil {
			log.Error().Str("file", inputFile).Msg("input file not found")
			return fmt.Errorf("no such file: %s", inputFile)
		}
	}

	req := models.RunRequest{
		Hosts:         hosts,
		Command:       args[1:],
		InputFile:     inputFile,
		CaptureOutput: settings.Capture,
		MaxProcs:      settings.MaxProcs,
		Insecure:      settings.Insecure,
		SSH:           settings.SSH,
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	svc := runner.New(log.Logger)
	res, err := svc.Run(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("run aborted")
		return err
	}

	if settings.Capture {
		printCaptured(hosts, res)
	}

	if !res.OK() {
		fmt.Fprintf(os.Stderr, "failed at: %s\n", strings.Join(res.FailedHosts, " "))
		return ErrHostFailures
	}

	return nil
}

func loadSettings() (*models.Settings, error) {
	if configFile == "" {
		return models.DefaultSettings(), nil
	}

	parser := config.NewParser()
	settings, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(settings); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	return settings, nil
}

// splitHosts parses the comma-separated host list, dropping empty entries.
func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// printCaptured writes the gathered stdout of every successful host in the
// order the hosts were given.
func printCaptured(hosts []string, res *models.RunResult) {
	for _, h := range hosts {
		out, ok := res.Outputs[h]
		if !ok {
			continue
		}
		fmt.Printf("==> %s <==\n", h)
		_, _ = os.Stdout.Write(out)
		if len(out) > 0 && out[len(out)-1] != '\n' {
			fmt.Println()
		}
	}
}
