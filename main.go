package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/postalops/postal/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "postal",
	Short:   "Postal - unified multi-carrier parcel shipping service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP rating server",
	RunE:  runServe,
}

var carriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "List configured carriers and their service catalogues",
	RunE:  runCarriers,
}

var ratesCmd = &cobra.Command{
	Use:   "rates [request.json]",
	Short: "Rate a shipment across all configured carriers",
	Long: "Reads a JSON rate request from the given file (or stdin) and " +
		"prints every carrier's priced options.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRates,
}

var validateAddressCmd = &cobra.Command{
	Use:   "validate-address [address.json]",
	Short: "Validate an address against the first capable carrier",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidateAddress,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(carriersCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(validateAddressCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	p, err := initPostal(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting Postal",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("carriers", p.CarrierNames()),
	)

	srv := server.New(server.Config{Port: cfg.Port}, p, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runCarriers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger("error")
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := initPostal(cfg, logger)
	if err != nil {
		return err
	}

	out := make(map[string][]string, len(p.Carriers()))
	for _, c := range p.Carriers() {
		services := c.AllServices()
		codes := make([]string, len(services))
		for i, s := range services {
			codes[i] = s.Code
		}
		out[c.Name()] = codes
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// inputFile opens the optional positional argument, falling back to stdin.
func inputFile(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(args[0])
}

func runRates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger("error")
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := initPostal(cfg, logger)
	if err != nil {
		return err
	}

	in, err := inputFile(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()

	req, err := server.DecodeRateRequest(in)
	if err != nil {
		return err
	}
	return server.WriteRateResults(cmd.OutOrStdout(),
		p.OptionsConcurrent(cmd.Context(), req))
}

func runValidateAddress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger("error")
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := initPostal(cfg, logger)
	if err != nil {
		return err
	}

	in, err := inputFile(cmd, args)
	if err != nil {
		return err
	}
	defer in.Close()

	addr, err := server.DecodeAddress(in)
	if err != nil {
		return err
	}
	match, err := p.ValidateAddress(cmd.Context(), addr)
	if err != nil {
		return err
	}
	return server.WriteAddressMatch(cmd.OutOrStdout(), match)
}
