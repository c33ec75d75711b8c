package main

import (
	"emperror.dev/errors"
	"fmt"
	"github.com/je4/zotrecent/pkg/download"
	"github.com/je4/zotrecent/pkg/zotero"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"
	"os"
	"time"
)

var _logformat = logging.MustStringFormatter(
	`%{time:2006-01-02T15:04:05.000} %{module}::%{shortfunc} > %{level:.5s} - %{message}`,
)

func CreateLogger(module string, logfile string, loglevel string) (log *logging.Logger, lf *os.File) {
	log = logging.MustGetLogger(module)
	var err error
	if logfile != "" {
		lf, err = os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Errorf("Cannot open logfile %v: %v", logfile, err)
		}
	} else {
		lf = os.Stderr
	}
	backend := logging.NewLogBackend(lf, "", 0)
	backendLeveled := logging.AddModuleLevel(backend)
	backendLeveled.SetLevel(logging.GetLevel(loglevel), "")

	logging.SetFormatter(_logformat)
	logging.SetBackend(backendLeveled)

	return
}

var rootCmd = &cobra.Command{
	Use:   "zotrecent",
	Short: "Download recently added attachments from a zotero library",
	Long: `zotrecent lists the items added to a personal zotero cloud library within
the last N days, downloads their stored attachments and saves them under
human-readable filenames in a timestamped directory.

Credentials come from an env-style file (default .env) with the keys
ZOTERO_LIBRARY_ID and ZOTERO_API_KEY.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().Int64("days-back", 7, "lookback window in days")
	rootCmd.Flags().StringP("config", "c", ".env", "location of credentials file")
	rootCmd.Flags().String("output-dir", ".", "parent directory for the run directory")
	rootCmd.Flags().String("loglevel", "INFO", "log level (DEBUG, INFO, WARNING, ERROR)")
	rootCmd.Flags().String("logfile", "", "log to file instead of stderr")
}

func run(cmd *cobra.Command, args []string) error {
	daysBack, _ := cmd.Flags().GetInt64("days-back")
	if daysBack < 0 {
		return errors.Errorf("days-back must not be negative: %v", daysBack)
	}
	cfgfile, _ := cmd.Flags().GetString("config")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	loglevel, _ := cmd.Flags().GetString("loglevel")
	logfile, _ := cmd.Flags().GetString("logfile")

	cfg, err := LoadConfig(cfgfile)
	if err != nil {
		return err
	}

	logger, lf := CreateLogger("zotrecent", logfile, loglevel)
	defer lf.Close()

	zot, err := zotero.NewZotero(cfg.Endpoint, cfg.ApiKey, cfg.LibraryId, logger)
	if err != nil {
		return errors.Wrap(err, "cannot create zotero instance")
	}

	dl := download.NewDownloader(zot, download.Config{
		DaysBack:  daysBack,
		ParentDir: outputDir,
	}, logger)
	summary, err := dl.Run(time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("=== Download Summary ===\n")
	fmt.Printf("Items found:             %v\n", summary.Items)
	fmt.Printf("Successfully downloaded: %v\n", summary.Downloaded)
	fmt.Printf("Skipped (no attachment): %v\n", summary.Skipped)
	fmt.Printf("Failed downloads:        %v\n", summary.Failed)
	fmt.Printf("Files saved to:          %v\n", summary.Dir)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
