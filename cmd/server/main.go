package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/campusconnect/backend/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

// @title Campus Connect API
// @version 1.0
// @description Campus news, announcements, events, jobs and mentorship with targeted push notifications
// @host localhost:8080
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	logLevel  string
	logFormat string
	log       *logrus.Logger
	cfg       *config.Config
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stdout)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Campus Connect backend",
	Long: `Campus Connect serves campus news, announcements, events, job postings and
mentorship requests, and pushes each one to the users it targets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch logFormat {
		case "json":
			log.SetFormatter(&logrus.JSONFormatter{})
		case "text":
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		default:
			return fmt.Errorf("invalid log format %q", logFormat)
		}

		cfg = config.Load(log)

		lvl := logLevel
		if lvl == "" {
			lvl = cfg.LogLevel
		}
		level, err := logrus.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", lvl, err)
		}
		log.SetLevel(level)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level ("+strings.Join(logLevels(), ", ")+"), defaults to LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}
