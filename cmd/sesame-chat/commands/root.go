package commands

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	sesame "github.com/ijub/sesame-go/sdk"
)

var (
	// Global flags
	cfgFile     string
	tokenFile   string
	character   string
	verbose     bool
	insecureTLS bool

	// Global state set up by initConfig
	fileCfg *fileConfig
	logger  *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sesame-chat",
	Short: "Voice conversations with Sesame characters",
	Long: `sesame-chat - A command line client for the Sesame voice service.

Talk to Sesame's conversational characters (Miles, Maya) from your
terminal. Microphone capture runs through ffmpeg and playback through
ffplay, so both need to be on your PATH.

Accounts are anonymous: the first run registers one automatically and
caches its token in ~/.sesame/token.json for later sessions.

Examples:
  # Start talking to Miles (the default character)
  sesame-chat chat

  # Talk to Maya instead, with debug logging
  sesame-chat chat --character Maya -v

  # Inspect the cached token
  sesame-chat token info
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sesame/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "token cache file (default is ~/.sesame/token.json)")
	rootCmd.PersistentFlags().StringVar(&character, "character", "", "character to talk to: Miles or Maya (default: Miles)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVar(&insecureTLS, "insecure-tls", true, "skip TLS certificate verification; the voice endpoint serves a chain Go cannot verify, so this defaults to true")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var err error
	fileCfg, err = loadFileConfig(cfgFile)
	if err != nil {
		printError("initializing config: %v", err)
		os.Exit(1)
	}
}

// Effective settings resolve flag > config file > built-in default.

func resolvedCharacter() string {
	if character != "" {
		return character
	}
	if fileCfg.Character != "" {
		return fileCfg.Character
	}
	return sesame.DefaultCharacter
}

func resolvedClientName() string {
	if fileCfg.ClientName != "" {
		return fileCfg.ClientName
	}
	return sesame.DefaultClientName
}

// resolvedTokenFile returns the token cache path, empty meaning the
// store's default location.
func resolvedTokenFile() string {
	if tokenFile != "" {
		return tokenFile
	}
	return fileCfg.TokenFile
}

func resolvedTLSVerify() bool {
	if rootCmd.PersistentFlags().Changed("insecure-tls") {
		return !insecureTLS
	}
	if fileCfg.InsecureTLS != nil {
		return !*fileCfg.InsecureTLS
	}
	return !insecureTLS
}

func newClient() *sesame.Client {
	return sesame.NewClient(
		sesame.WithLogger(logger),
		sesame.WithTLSVerification(resolvedTLSVerify()),
	)
}

func newTokenManager(client *sesame.Client) (*sesame.TokenManager, *sesame.FileTokenStore) {
	store := sesame.NewFileTokenStore(resolvedTokenFile())
	return sesame.NewTokenManager(client, store), store
}
