package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/document"
	"github.com/biotechnique/po-pipeline/internal/enrich"
	"github.com/biotechnique/po-pipeline/internal/gateway"
	"github.com/biotechnique/po-pipeline/internal/mail"
	"github.com/biotechnique/po-pipeline/internal/pipeline"
	"github.com/biotechnique/po-pipeline/internal/render"
	"github.com/biotechnique/po-pipeline/pkg/checksum"
)

// Set at build time using ldflags.
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

var (
	outPath      string
	templateFlag string
)

func newService() (*pipeline.Service, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	mappings, err := cfg.Mappings()
	if err != nil {
		return nil, err
	}

	client := gateway.NewClient(cfg.APIBaseURL, cfg.APIToken)
	records := gateway.NewRecordClient(client)
	directory := gateway.NewDirectoryClient(client)

	enricher := enrich.New(directory, cfg.Objects)
	renderer := render.NewRenderer(cfg.LogoPath)
	dispatcher := mail.NewDispatcher(cfg.SMTP, cfg.BaseRecipients, enricher)

	return pipeline.NewService(records, enricher, renderer, dispatcher, mappings), nil
}

var rootCmd = &cobra.Command{
	Use:   "poprocessor",
	Short: "Purchase-order reconciliation and document pipeline",
	Long: `poprocessor keeps a purchase-order/invoice record's computed totals
consistent with its embedded line-item tables, renders the reconciled record
into a PDF document, and dispatches it by email.`,
}

var processCmd = &cobra.Command{
	Use:   "process <record-id>",
	Short: "Reconcile a record, render the invoice, and dispatch it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()

		service, err := newService()
		if err != nil {
			return err
		}
		if err := service.Process(cmd.Context(), args[0]); err != nil {
			return err
		}

		log.Printf("Execution time: %s", time.Since(startTime))
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <record-id>",
	Short: "Render a record to a PDF file without updating it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newService()
		if err != nil {
			return err
		}

		tpl := document.ClientInvoice
		if templateFlag == "po" {
			// Internal vs external variant follows the record's PO type.
			tpl = document.ExternalPO
		}

		pdfBytes, err := service.RenderDocument(cmd.Context(), args[0], tpl)
		if err != nil {
			return err
		}

		out := outPath
		if out == "" {
			out = args[0] + ".pdf"
		}
		if err := os.WriteFile(out, pdfBytes, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

		digest, err := checksum.DigestFile(out)
		if err != nil {
			return fmt.Errorf("failed to verify %s: %w", out, err)
		}

		log.Printf("Wrote %s (%d bytes, checksum %s)", out, len(pdfBytes), digest)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("poprocessor")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Go Version: %s\n", runtime.Version())
	},
}

func init() {
	renderCmd.Flags().StringVar(&outPath, "out", "", "Output file path (default <record-id>.pdf)")
	renderCmd.Flags().StringVar(&templateFlag, "template", "invoice", "Document template: invoice or po")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
