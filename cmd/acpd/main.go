// Command acpd is the Agent broker: an ACP agent an editor launches as a
// subprocess, communicating via JSON-RPC over stdio (spec §1, §6).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/brokerline/acpd/internal/acp"
	"github.com/brokerline/acpd/internal/config"
	"github.com/brokerline/acpd/internal/core"
	"github.com/brokerline/acpd/internal/logging"
	"github.com/brokerline/acpd/internal/telemetry"
	"github.com/brokerline/acpd/internal/tools"
	"go.uber.org/zap"
)

const helpText = `acpd - Agent Client Protocol broker

USAGE:
  acpd [options]

OPTIONS:
  --diagnostic                  Print resolved configuration and exit
  --log-dir <dir>                Directory for the rotating log file
  --log-file <name>              Log file name within --log-dir
  -v, -vv, -vvv                  Increase log verbosity
  --quiet                        Suppress all but error-level logs
  --otel-endpoint <url>           OTLP gRPC endpoint (host:port)
  --otel-service-name <name>      Service name reported to the OTLP exporter
  -h, --help                     Display help information
`

type cliOptions struct {
	diagnostic      bool
	logDir          string
	logFile         string
	verbosity       int
	quiet           bool
	otelEndpoint    string
	otelServiceName string
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logDir, logFile := opts.logDir, opts.logFile
	if logDir == "" && logFile == "" {
		logDir, logFile = filepath.Split(core.LogFile())
	}
	logger, err := logging.New(logging.Options{
		Verbosity: opts.verbosity,
		Quiet:     opts.quiet,
		LogDir:    logDir,
		LogFile:   logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "acpd: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	envCfg := config.Load()

	otelEndpoint := opts.otelEndpoint
	if otelEndpoint == "" {
		otelEndpoint = envCfg.OTELExporterOTLPEndpoint
	}

	ctx := context.Background()

	tp, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    otelEndpoint,
		ServiceName: opts.otelServiceName,
	})
	if err != nil {
		logger.Warn("telemetry setup failed", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	if opts.diagnostic {
		opts.otelEndpoint, opts.logDir = otelEndpoint, logDir
		printDiagnostic(envCfg, opts)
		return
	}

	assistantCommand, assistantArgs := assistantBinary(envCfg)

	registry := tools.NewDefaultRegistry()
	dispatcher := acp.NewDispatcher(acp.Config{
		AssistantCommand: assistantCommand,
		AssistantArgs:    assistantArgs,
		RulesPath:        rulesPath(),
	}, registry, logger)

	conn := acpsdk.NewAgentSideConnection(dispatcher, os.Stdout, os.Stdin)
	dispatcher.SetAgentConnection(conn)

	logger.Info("acpd ready", zap.String("assistant_command", assistantCommand))

	<-conn.Done()
	logger.Info("acpd shutting down")
}

func parseArgs(args []string) (cliOptions, error) {
	var opts cliOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			fmt.Print(helpText)
			os.Exit(0)
		case arg == "--diagnostic":
			opts.diagnostic = true
		case arg == "--log-dir":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("acpd: --log-dir requires a path argument")
			}
			opts.logDir = args[i]
		case strings.HasPrefix(arg, "--log-dir="):
			opts.logDir = strings.TrimPrefix(arg, "--log-dir=")
		case arg == "--log-file":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("acpd: --log-file requires a name argument")
			}
			opts.logFile = args[i]
		case strings.HasPrefix(arg, "--log-file="):
			opts.logFile = strings.TrimPrefix(arg, "--log-file=")
		case arg == "-v":
			opts.verbosity = max(opts.verbosity, 1)
		case arg == "-vv":
			opts.verbosity = max(opts.verbosity, 2)
		case arg == "-vvv":
			opts.verbosity = max(opts.verbosity, 3)
		case arg == "--quiet":
			opts.quiet = true
		case arg == "--otel-endpoint":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("acpd: --otel-endpoint requires a url argument")
			}
			opts.otelEndpoint = args[i]
		case strings.HasPrefix(arg, "--otel-endpoint="):
			opts.otelEndpoint = strings.TrimPrefix(arg, "--otel-endpoint=")
		case arg == "--otel-service-name":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("acpd: --otel-service-name requires a name argument")
			}
			opts.otelServiceName = args[i]
		case strings.HasPrefix(arg, "--otel-service-name="):
			opts.otelServiceName = strings.TrimPrefix(arg, "--otel-service-name=")
		default:
			return opts, fmt.Errorf("acpd: unknown option: %s", arg)
		}
	}
	return opts, nil
}

// assistantBinary resolves the Assistant CLI command (Non-goal (d): exactly
// one Assistant CLI binary per process). The binary name is fixed; model
// selection flows through environment variables the Assistant CLI itself
// reads (spec §6).
func assistantBinary(envCfg config.Config) (string, []string) {
	bin := os.Getenv("ACPD_ASSISTANT_COMMAND")
	if bin == "" {
		bin = "claude"
	}
	return bin, []string{"--acp"}
}

func rulesPath() string {
	if p := os.Getenv("ACPD_RULES_FILE"); p != "" {
		return p
	}
	return core.RulesFile()
}

func printDiagnostic(envCfg config.Config, opts cliOptions) {
	fmt.Printf("acpd diagnostic\n")
	fmt.Printf("  anthropic_base_url: %s\n", envCfg.AnthropicBaseURL)
	fmt.Printf("  anthropic_model: %s\n", envCfg.AnthropicModel)
	fmt.Printf("  otel_endpoint: %s\n", opts.otelEndpoint)
	fmt.Printf("  log_dir: %s\n", opts.logDir)
	fmt.Printf("  rules_path: %s\n", rulesPath())
}
