package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tuannm99/novaextract/internal/config"
	"github.com/tuannm99/novaextract/internal/extract"
	"github.com/tuannm99/novaextract/internal/logging"
	"github.com/tuannm99/novaextract/internal/metrics"
	"github.com/tuannm99/novaextract/internal/sample"
	"github.com/tuannm99/novaextract/internal/session"
)

// app carries the state shared by the root command and its subcommands.
type app struct {
	v       *viper.Viper
	cfgPath string
	build   bool
	spatial bool

	cfg    *config.NovaExtractConfig
	logger *zap.Logger
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		if a.logger != nil {
			a.logger.Error("novaextract failed", zap.Error(err))
			_ = a.logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, "novaextract:", err)
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	a.v = config.NewViper()

	root := &cobra.Command{
		Use:   "novaextract",
		Short: "Create or extend an order extract with sample data",
		Long: `novaextract writes the sample order table to an extract file.

If FILENAME exists it is extended with ten more rows, otherwise it is
created and populated.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runBuild,
	}

	flags := root.Flags()
	flags.BoolVarP(&a.build, "build", "b", false, "create or extend FILENAME with sample data")
	flags.BoolVarP(&a.spatial, "spatial", "s", false, "include spatial data when creating a new extract; ignored when extending")
	flags.StringP("filename", "f", config.DefaultFilename, "FILENAME of the extract to be created or extended")
	flags.String("metrics-file", "", "write a Prometheus text snapshot to this file on exit")
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file")

	// flag errors are impossible here: the names are declared above
	_ = a.v.BindPFlag("extract.filename", flags.Lookup("filename"))
	_ = a.v.BindPFlag("metrics.file", flags.Lookup("metrics-file"))

	root.AddCommand(a.inspectCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: zapcore.AddSync(cmd.ErrOrStderr()),
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With(zap.String("app", cfg.AppName))
	return nil
}

func (a *app) storeOptions(m *metrics.Metrics) []extract.Option {
	return []extract.Option{
		extract.WithLogger(a.logger),
		extract.WithMetrics(m),
		extract.WithMaxStringBytes(a.cfg.Extract.MaxStringBytes),
		extract.WithCompression(a.cfg.Compression()),
	}
}

func (a *app) runBuild(cmd *cobra.Command, _ []string) (err error) {
	if !a.build {
		return cmd.Help()
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sess, err := session.Initialize(session.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sess.Cleanup()) }()

	filename := a.cfg.Extract.Filename
	res, err := sample.Build(sess, filename, a.spatial, a.storeOptions(m)...)
	if err != nil {
		return fmt.Errorf("build %s: %w", filename, err)
	}

	verb := "extended"
	if res.Created {
		verb = "created"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: inserted %d rows, %d total (spatial=%t)\n",
		verb, filename, res.Inserted, res.TotalRows, res.Spatial)

	if path := a.cfg.Metrics.File; path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
