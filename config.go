package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/promptbox/imagegen"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	allowOverride   bool
	apiKey          string
	archiveCompress bool
	archiveDir      string
	baseURL         string
	bind            string
	corsOrigin      string
	imageCount      int
	imageModel      string
	imageSize       string
	maxConcurrent   int
	port            int
	prefix          string
	profile         bool
	sessionTimeout  time.Duration
	staticDir       string
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool
}

func (c *Config) validate() error {
	if c.apiKey == "" {
		return errors.New("an OpenAI API key must be provided via --openai-api-key or OPENAI_API_KEY")
	}
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.imageCount < 1 {
		return fmt.Errorf("invalid image count (must be at least 1): %d", c.imageCount)
	}
	if c.maxConcurrent < 0 {
		return fmt.Errorf("invalid generation limit (must be 0 or greater): %d", c.maxConcurrent)
	}
	if c.sessionTimeout < 0 || (c.sessionTimeout > 0 && c.sessionTimeout < time.Second) {
		return fmt.Errorf("invalid session timeout (must be 0 or at least 1s): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// Variables the game has always been configured with, honoured alongside
// the PROMPTBOX_ ones.
var legacyEnv = map[string]string{
	"openai-api-key": "OPENAI_API_KEY",
	"image-count":    "IMAGE_COUNT",
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PROMPTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "promptbox",
		Short:         "A party game where everyone draws with prompts instead of pencils.",
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

	fs.BoolVar(&cfg.allowOverride, "allow-stage-override", false, "let clients move the game to any stage (env: PROMPTBOX_ALLOW_STAGE_OVERRIDE)")
	fs.BoolVar(&cfg.archiveCompress, "archive-compress", false, "zstd-compress archived API responses (env: PROMPTBOX_ARCHIVE_COMPRESS)")
	fs.StringVar(&cfg.archiveDir, "archive-dir", "images", "directory to archive raw API responses in, empty to disable (env: PROMPTBOX_ARCHIVE_DIR)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PROMPTBOX_BIND)")
	fs.StringVar(&cfg.corsOrigin, "cors-origin", "http://localhost:5173", "origin allowed to fetch images cross-site (env: PROMPTBOX_CORS_ORIGIN)")
	fs.IntVar(&cfg.imageCount, "image-count", imagegen.DefaultCount, "images to generate per prompt (env: PROMPTBOX_IMAGE_COUNT, IMAGE_COUNT)")
	fs.StringVar(&cfg.imageModel, "image-model", imagegen.DefaultModel, "image model to request (env: PROMPTBOX_IMAGE_MODEL)")
	fs.StringVar(&cfg.imageSize, "image-size", imagegen.DefaultSize, "size of generated images (env: PROMPTBOX_IMAGE_SIZE)")
	fs.IntVar(&cfg.maxConcurrent, "max-concurrent-generations", 0, "generations in flight at once, 0 for no limit (env: PROMPTBOX_MAX_CONCURRENT_GENERATIONS)")
	fs.StringVar(&cfg.apiKey, "openai-api-key", "", "OpenAI API key (env: PROMPTBOX_OPENAI_API_KEY, OPENAI_API_KEY)")
	fs.StringVar(&cfg.baseURL, "openai-base-url", "", "override the OpenAI API base URL (env: PROMPTBOX_OPENAI_BASE_URL)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: PROMPTBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PROMPTBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PROMPTBOX_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before an abandoned game is reset, 0 to disable (env: PROMPTBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.staticDir, "static-dir", "dist", "directory containing the built web client (env: PROMPTBOX_STATIC_DIR)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PROMPTBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PROMPTBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PROMPTBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PROMPTBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if legacy, ok := legacyEnv[f.Name]; ok {
			_ = v.BindEnv(f.Name, "PROMPTBOX_"+strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), legacy)
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("promptbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
