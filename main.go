package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"uploadflow/internal/config"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
)

var (
	cfgFile     string
	profileName string
	logLevel    string
	log         *logrus.Logger
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "uploadflow",
	Short: "Multi-file uploads through pre-signed URLs",
	Long: `uploadflow stages local files, requests a pre-signed upload URL for each,
PUTs them concurrently and confirms the uploaded set with the catalog API.
The serve command runs a reference catalog API backed by S3 and a database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("uploadflow %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "upload profile file (default $UPLOAD_CONFIG_PATH or upload-config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "default", "upload profile name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.Load().LogLevel,
		"log level ("+strings.Join(logLevels(), ", ")+")")

	rootCmd.AddCommand(versionCmd)
}

func loadProfile() (*config.Profile, *config.UploadConfig, error) {
	path := cfgFile
	if path == "" {
		path = config.UploadConfigPath()
	}

	uc, err := config.LoadUploadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	return uc.GetProfile(profileName), uc, nil
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}
