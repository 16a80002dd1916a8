package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"markmailer/config"
	"markmailer/core/batch"
	"markmailer/core/classify"
	"markmailer/core/sheet"
	"markmailer/infra/logger"
	"markmailer/infra/pdf"
	"markmailer/infra/smtp"
)

var (
	cfgPath  string
	csvPath  string
	ids      string
	mailMode int
)

var rootCmd = &cobra.Command{
	Use:   "markmailer",
	Short: "Generate and optionally email per-student feedback PDFs",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "configuration file (json or yaml)")
	rootCmd.Flags().StringVar(&csvPath, "csv", "", "spreadsheet of marks and feedback")
	rootCmd.Flags().StringVar(&ids, "ids", "", "comma-separated student numbers to include")
	rootCmd.Flags().IntVar(&mailMode, "mail", 0, "0 = pdf only, 1 = mail coordinator, 2 = mail students")
	_ = rootCmd.MarkFlagRequired("config")
	_ = rootCmd.MarkFlagRequired("csv")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := batch.MailMode(mailMode)
	if mode < batch.MailOff || mode > batch.MailStudents {
		return fmt.Errorf("invalid --mail mode %d, want 0, 1 or 2", mailMode)
	}
	mailEnabled := mode != batch.MailOff

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(mailEnabled); err != nil {
		return err
	}
	cols, err := cfg.ResolveColumns(mailEnabled)
	if err != nil {
		return err
	}

	rows, err := sheet.Load(csvPath)
	if err != nil {
		return err
	}
	if len(rows) < cfg.MaxMarksRow+1 {
		return fmt.Errorf("spreadsheet has %d rows, need the max-marks row at %d plus student rows",
			len(rows), cfg.MaxMarksRow)
	}
	maxMarks := rows[cfg.MaxMarksRow-1]
	students := rows[cfg.MaxMarksRow:]

	runID := uuid.NewString()
	var logg logger.Logger
	if mailEnabled {
		logFile, err := os.Create(fmt.Sprintf("markmailer-%s.log", time.Now().Format("20060102-150405")))
		if err != nil {
			return fmt.Errorf("create log file: %w", err)
		}
		defer logFile.Close()
		logg = logger.NewBatch("batch", runID, logFile)
	} else {
		logg = logger.NewBatch("batch", runID, nil)
	}

	var dispatcher batch.Dispatcher
	if mailEnabled {
		mailer, err := smtp.New(cfg.SMTP, cfg.Coordinator.Email, cfg.Mail.Subject, cfg.Mail.Body)
		if err != nil {
			return fmt.Errorf("mail transport: %w", err)
		}
		dispatcher = mailer
	}

	seq, err := batch.New(batch.Options{
		Rows:        students,
		MaxMarks:    maxMarks,
		Columns:     cols,
		Filter:      classify.ParseIDFilter(ids),
		Mode:        mode,
		Renderer:    pdf.New(cfg, cols, "."),
		Dispatcher:  dispatcher,
		Coordinator: cfg.Coordinator.Email,
		Logger:      logg,
		Progress:    os.Stdout,
		StartRow:    cfg.MaxMarksRow + 1,
	})
	if err != nil {
		return err
	}
	_, err = seq.Run(ctx)
	return err
}
