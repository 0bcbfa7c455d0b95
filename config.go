package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	discussTime  time.Duration
	port         int
	prefix       string
	profile      bool
	revealDelay  time.Duration
	rounds       int
	tlsCert      string
	tlsKey       string
	turnTimeout  time.Duration
	verbose      bool
	version      bool
	voteTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid round count (must be at least 1): %d", c.rounds)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GAMENIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "gamenight",
		Short:         "A living-room party game host: one TV screen, everyone else plays on their phone.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GAMENIGHT_BIND)")
	fs.DurationVar(&cfg.discussTime, "discuss-time", 3*time.Minute, "discussion time before voting opens in imposter (env: GAMENIGHT_DISCUSS_TIME)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: GAMENIGHT_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: GAMENIGHT_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: GAMENIGHT_PROFILE)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", 6*time.Second, "pause between sequential reveal steps (env: GAMENIGHT_REVEAL_DELAY)")
	fs.IntVar(&cfg.rounds, "rounds", 3, "number of rounds per game, where applicable (env: GAMENIGHT_ROUNDS)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: GAMENIGHT_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: GAMENIGHT_TLS_KEY)")
	fs.DurationVar(&cfg.turnTimeout, "turn-timeout", time.Minute, "time before a stalled board-game turn is ended automatically (env: GAMENIGHT_TURN_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GAMENIGHT_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GAMENIGHT_VERSION)")
	fs.DurationVar(&cfg.voteTimeout, "vote-timeout", 45*time.Second, "time allowed for voting phases (env: GAMENIGHT_VOTE_TIMEOUT)")
	fs.DurationVar(&cfg.writeTimeout, "write-timeout", 90*time.Second, "time allowed for writing phases (env: GAMENIGHT_WRITE_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("gamenight v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
