// Package console is the command-line front-end of the master-data console.
package console

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/me/mdconsole/internal/client"
	"github.com/me/mdconsole/internal/config"
	"github.com/me/mdconsole/internal/listflow"
	"github.com/me/mdconsole/internal/logging"
	"github.com/me/mdconsole/pkg/model"
	"github.com/spf13/cobra"
)

// app holds the flags and the collaborators built from them before every
// command runs.
type app struct {
	flagProfile   string
	flagServer    string
	flagActor     string
	flagSignature string
	flagPageSize  int
	flagHandoffDB string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string

	profile config.Profile
	logger  *slog.Logger
	client  *client.Client
	closer  io.Closer
}

// NewRootCmd creates the root cobra command for the mdconsole CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mdconsole",
		Short: "Master-data administration console",
		Long:  "mdconsole lists, searches, creates, edits and deletes master-data records (designations, plants, plant assignments, documents).",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closer != nil {
				a.closer.Close()
			}
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagProfile, "profile", config.DefaultProfilePath(), "Console profile (YAML)")
	pf.StringVar(&a.flagServer, "server", "", "Master-data server URL (or MDCONSOLE_SERVER env)")
	pf.StringVar(&a.flagActor, "actor", "", "Audit actor recorded on every change (or MDCONSOLE_ACTOR env)")
	pf.StringVar(&a.flagSignature, "signature", "", "Audit signature recorded with a reason for change")
	pf.IntVar(&a.flagPageSize, "page-size", 0, "Rows per page")
	pf.StringVar(&a.flagHandoffDB, "handoff-db", "", "SQLite file holding selections between commands")
	pf.BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&a.flagLogFile, "log-file", "", "Write logs to this file instead of stderr")

	root.AddCommand(
		newPingCmd(a),
		newSelectionsCmd(a),
		newEntityCmd[model.Designation](a, model.DesignationEntity),
		newEntityCmd[model.Plant](a, model.PlantEntity),
		newEntityCmd[model.PlantAssignment](a, model.PlantAssignmentEntity, "assignments", "assign"),
		newEntityCmd[model.Document](a, model.DocumentEntity),
	)

	return root
}

// setup layers flags over the profile (which already carries .env and
// MDCONSOLE_* overrides) and builds the logger and HTTP client.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}
	p, err := config.LoadProfile(a.flagProfile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		p.Server = a.flagServer
	}
	if flags.Changed("actor") {
		p.Actor = a.flagActor
	}
	if flags.Changed("signature") {
		p.Signature = a.flagSignature
	}
	if flags.Changed("page-size") {
		p.PageSize = a.flagPageSize
	}
	if flags.Changed("handoff-db") {
		p.HandoffDB = a.flagHandoffDB
	}
	if flags.Changed("log-level") {
		p.LogLevel = a.flagLogLevel
	}
	if flags.Changed("log-format") {
		p.LogFormat = a.flagLogFormat
	}
	if a.flagDebug {
		p.LogLevel = "debug"
	}
	if err := p.Validate(); err != nil {
		return err
	}
	a.profile = p

	level := logging.ParseLevel(p.LogLevel)
	if a.flagLogFile != "" {
		logger, closer, err := logging.NewFileLogger(level, p.LogFormat, a.flagLogFile)
		if err != nil {
			return err
		}
		a.logger, a.closer = logger, closer
	} else {
		a.logger = logging.NewLoggerWithWriter(level, p.LogFormat, cmd.ErrOrStderr())
	}
	a.client = client.NewClient(p.Server, p.RequestTimeout, a.logger)
	return nil
}

func (a *app) identity() listflow.Identity {
	return listflow.StaticIdentity{Name: a.profile.Actor, Sig: a.profile.Signature}
}

func (a *app) formConfig(e model.Entity, n listflow.Notifier, nav listflow.Navigator) listflow.FormConfig {
	return listflow.FormConfig{
		Entity:        e,
		Notifier:      n,
		Navigator:     nav,
		Identity:      a.identity(),
		Logger:        a.logger,
		NavigateDelay: a.profile.NavigateDelay,
	}
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server %s is healthy.\n", a.profile.Server)
			return nil
		},
	}
}
