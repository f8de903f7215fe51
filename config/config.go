package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/meysamhadeli/codegrep/constants/lipgloss"
	"github.com/meysamhadeli/codegrep/models"
	"github.com/meysamhadeli/codegrep/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config represents the structure of the configuration file. Every field can
// also come from flags or environment variables; flags win over env, env
// wins over file, file wins over defaults.
type Config struct {
	Workers        int      `mapstructure:"workers"`
	MemoryBudget   string   `mapstructure:"memory_budget"`
	MaxMatches     int      `mapstructure:"max_matches"`
	Timeout        string   `mapstructure:"timeout"`
	Hidden         bool     `mapstructure:"hidden"`
	Binary         bool     `mapstructure:"binary"`
	NoIgnore       bool     `mapstructure:"no_ignore"`
	Ignore         []string `mapstructure:"ignore"`
	Extensions     []string `mapstructure:"extensions"`
	Types          []string `mapstructure:"types"`
	MaxFileSize    string   `mapstructure:"max_file_size"`
	MaxDepth       int      `mapstructure:"max_depth"`
	ModifiedWithin string   `mapstructure:"modified_within"`
	Stable         bool     `mapstructure:"stable"`
	Fast           bool     `mapstructure:"fast"`
	CaseSensitive  bool     `mapstructure:"case_sensitive"`
	Word           bool     `mapstructure:"word"`
	Literal        bool     `mapstructure:"literal"`
	Format         string   `mapstructure:"format"`
	NoColor        bool     `mapstructure:"no_color"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Workers:     0, // logical core count
	MaxFileSize: "10m",
	Format:      "text",
}

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// LoadConfigs initializes the configuration from file, flags, and environment
// variables, and returns the final config.
func LoadConfigs(rootCmd *cobra.Command, cwd string) *Config {
	var config *Config

	setDefaults()

	viper.SetEnvPrefix("CODEGREP")
	viper.AutomaticEnv()
	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error reading config file: %v", err)))
			os.Exit(1)
		}
	} else {
		viper.SetConfigName("codegrep-config")
		viper.AddConfigPath(cwd)

		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			viper.SetConfigType("json")
			_ = viper.ReadInConfig() // defaults apply when neither exists
		}
	}

	bindFlags(rootCmd)

	if err := viper.Unmarshal(&config); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Unable to decode into struct: %v", err)))
		os.Exit(1)
	}

	return config
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("workers", DefaultConfig.Workers)
	viper.SetDefault("memory_budget", DefaultConfig.MemoryBudget)
	viper.SetDefault("max_matches", DefaultConfig.MaxMatches)
	viper.SetDefault("timeout", DefaultConfig.Timeout)
	viper.SetDefault("hidden", DefaultConfig.Hidden)
	viper.SetDefault("binary", DefaultConfig.Binary)
	viper.SetDefault("no_ignore", DefaultConfig.NoIgnore)
	viper.SetDefault("ignore", DefaultConfig.Ignore)
	viper.SetDefault("extensions", DefaultConfig.Extensions)
	viper.SetDefault("types", DefaultConfig.Types)
	viper.SetDefault("max_file_size", DefaultConfig.MaxFileSize)
	viper.SetDefault("max_depth", DefaultConfig.MaxDepth)
	viper.SetDefault("modified_within", DefaultConfig.ModifiedWithin)
	viper.SetDefault("stable", DefaultConfig.Stable)
	viper.SetDefault("fast", DefaultConfig.Fast)
	viper.SetDefault("case_sensitive", DefaultConfig.CaseSensitive)
	viper.SetDefault("word", DefaultConfig.Word)
	viper.SetDefault("literal", DefaultConfig.Literal)
	viper.SetDefault("format", DefaultConfig.Format)
	viper.SetDefault("no_color", DefaultConfig.NoColor)
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv() {
	_ = viper.BindEnv("workers", "CODEGREP_WORKERS")
	_ = viper.BindEnv("memory_budget", "CODEGREP_MEMORY_BUDGET")
	_ = viper.BindEnv("max_matches", "CODEGREP_MAX_MATCHES")
	_ = viper.BindEnv("timeout", "CODEGREP_TIMEOUT")
	_ = viper.BindEnv("hidden", "CODEGREP_HIDDEN")
	_ = viper.BindEnv("binary", "CODEGREP_BINARY")
	_ = viper.BindEnv("no_ignore", "CODEGREP_NO_IGNORE")
	_ = viper.BindEnv("max_file_size", "CODEGREP_MAX_FILE_SIZE")
	_ = viper.BindEnv("format", "CODEGREP_FORMAT")
	_ = viper.BindEnv("no_color", "CODEGREP_NO_COLOR")
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(rootCmd *cobra.Command) {
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("memory_budget", rootCmd.PersistentFlags().Lookup("memory_budget"))
	_ = viper.BindPFlag("max_matches", rootCmd.PersistentFlags().Lookup("max_matches"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("hidden", rootCmd.PersistentFlags().Lookup("hidden"))
	_ = viper.BindPFlag("binary", rootCmd.PersistentFlags().Lookup("binary"))
	_ = viper.BindPFlag("no_ignore", rootCmd.PersistentFlags().Lookup("no_ignore"))
	_ = viper.BindPFlag("ignore", rootCmd.PersistentFlags().Lookup("ignore"))
	_ = viper.BindPFlag("extensions", rootCmd.PersistentFlags().Lookup("ext"))
	_ = viper.BindPFlag("types", rootCmd.PersistentFlags().Lookup("type"))
	_ = viper.BindPFlag("max_file_size", rootCmd.PersistentFlags().Lookup("max_file_size"))
	_ = viper.BindPFlag("max_depth", rootCmd.PersistentFlags().Lookup("max_depth"))
	_ = viper.BindPFlag("modified_within", rootCmd.PersistentFlags().Lookup("modified_within"))
	_ = viper.BindPFlag("stable", rootCmd.PersistentFlags().Lookup("stable"))
	_ = viper.BindPFlag("fast", rootCmd.PersistentFlags().Lookup("fast"))
	_ = viper.BindPFlag("case_sensitive", rootCmd.PersistentFlags().Lookup("case_sensitive"))
	_ = viper.BindPFlag("word", rootCmd.PersistentFlags().Lookup("word"))
	_ = viper.BindPFlag("literal", rootCmd.PersistentFlags().Lookup("literal"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no_color"))
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	// Use PersistentFlags so that these flags are available in all subcommands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	rootCmd.PersistentFlags().IntP("workers", "j", DefaultConfig.Workers, "Number of concurrent workers (0 = logical core count)")
	rootCmd.PersistentFlags().String("memory_budget", DefaultConfig.MemoryBudget, "Total bytes reservable by in-flight files, with k/m/g suffixes (e.g., '512m')")
	rootCmd.PersistentFlags().Int("max_matches", DefaultConfig.MaxMatches, "Stop after this many matches across all files (0 = unbounded)")
	rootCmd.PersistentFlags().String("timeout", DefaultConfig.Timeout, "Abort the session after this long, with s/m/h/d suffixes (e.g., '30s')")
	rootCmd.PersistentFlags().Bool("hidden", DefaultConfig.Hidden, "Search hidden files and directories")
	rootCmd.PersistentFlags().Bool("binary", DefaultConfig.Binary, "Search binary files instead of skipping them")
	rootCmd.PersistentFlags().Bool("no_ignore", DefaultConfig.NoIgnore, "Ignore .gitignore and .codegrepignore files")
	rootCmd.PersistentFlags().StringSlice("ignore", DefaultConfig.Ignore, "Extra ignore patterns applied at every level")
	rootCmd.PersistentFlags().StringSlice("ext", DefaultConfig.Extensions, "Only search files with these extensions (e.g., 'go,rs')")
	rootCmd.PersistentFlags().StringSlice("type", DefaultConfig.Types, "Only search files of these named types (e.g., 'rust', 'web')")
	rootCmd.PersistentFlags().String("max_file_size", DefaultConfig.MaxFileSize, "Skip files larger than this, with k/m/g suffixes")
	rootCmd.PersistentFlags().Int("max_depth", DefaultConfig.MaxDepth, "Maximum directory depth below each root (0 = unbounded)")
	rootCmd.PersistentFlags().String("modified_within", DefaultConfig.ModifiedWithin, "Only search files modified within this window (e.g., '2d')")
	rootCmd.PersistentFlags().Bool("stable", DefaultConfig.Stable, "Deliver results in traversal order regardless of worker count")
	rootCmd.PersistentFlags().Bool("fast", DefaultConfig.Fast, "Skip string-literal escape analysis during scope resolution")
	rootCmd.PersistentFlags().BoolP("case_sensitive", "s", DefaultConfig.CaseSensitive, "Match case exactly instead of case-insensitively")
	rootCmd.PersistentFlags().BoolP("word", "w", DefaultConfig.Word, "Only match at word boundaries")
	rootCmd.PersistentFlags().Bool("literal", DefaultConfig.Literal, "Treat the pattern as plain text even when it contains regex metacharacters")
	rootCmd.PersistentFlags().StringP("format", "f", DefaultConfig.Format, "Output format: 'text', 'json', 'count' or 'files'")
	rootCmd.PersistentFlags().Bool("no_color", DefaultConfig.NoColor, "Disable colored output")

	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")
}

// BuildRequest resolves the config into the immutable request the
// coordinator owns. Pattern operands and scope filters are layered on by the
// command that parsed them.
func (c *Config) BuildRequest(pattern string, roots []string) (models.SearchRequest, error) {
	if len(roots) == 0 {
		roots = []string{"."}
	}

	req := models.SearchRequest{
		Pattern: models.PatternSpec{
			Pattern:       pattern,
			Literal:       c.Literal,
			CaseSensitive: c.CaseSensitive,
			WordBoundary:  c.Word,
		},
		Traversal: models.TraversalFilter{
			Roots:          roots,
			IncludeHidden:  c.Hidden,
			IncludeBinary:  c.Binary,
			RespectIgnores: !c.NoIgnore,
			IgnorePatterns: c.Ignore,
			Extensions:     c.Extensions,
			Types:          c.Types,
			MaxDepth:       c.MaxDepth,
		},
		Limits: models.Limits{
			Workers:    c.Workers,
			MaxMatches: c.MaxMatches,
		},
		Fast: c.Fast,
	}
	if req.Limits.Workers <= 0 {
		req.Limits.Workers = runtime.NumCPU()
	}
	if c.Stable {
		req.Ordering = models.OrderStable
	}

	if c.MaxFileSize != "" {
		size, err := utils.ParseSize(c.MaxFileSize)
		if err != nil {
			return req, fmt.Errorf("max_file_size: %w", err)
		}
		req.Traversal.MaxFileSize = size
	}
	if c.MemoryBudget != "" {
		budget, err := utils.ParseSize(c.MemoryBudget)
		if err != nil {
			return req, fmt.Errorf("memory_budget: %w", err)
		}
		req.Limits.MemoryBudget = budget
	}
	if c.Timeout != "" {
		d, err := utils.ParseDuration(c.Timeout)
		if err != nil {
			return req, fmt.Errorf("timeout: %w", err)
		}
		req.Limits.Timeout = d
	}
	if c.ModifiedWithin != "" {
		d, err := utils.ParseDuration(c.ModifiedWithin)
		if err != nil {
			return req, fmt.Errorf("modified_within: %w", err)
		}
		req.Traversal.ModifiedWithin = d
	}
	return req, nil
}
