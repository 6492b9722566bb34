package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/root39293/platon-discord-bot/platon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     = platon.DefaultConfig()
	envFile string
)

var rootCmd = &cobra.Command{
	Use: "platon [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

// LevelToStringHookFunc decodes log level strings ("DEBUG", "INFO", ...)
// into *slog.LevelVar fields during viper unmarshaling.
func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		if t.Elem() != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvlVar, err := levelStringToLevelVar(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if envFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("could not load env file %s: %v", envFile, err)
		}
	}

	viper.SetDefault("database", platon.DefaultDatabase)
	viper.SetDefault("database_log_level", platon.DefaultDatabaseLogLevel.String())

	viper.SetDefault("log_level", platon.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", platon.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", platon.DefaultShutdownTimeout)
	viper.SetDefault("http_timeout", platon.DefaultHTTPTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.log_level", platon.DefaultDiscordLogLevel.String())
	viper.SetDefault(
		"discord.discordgo_log_level",
		platon.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault("discord.gateway_intents", platon.DefaultDiscordGatewayIntent)
	viper.SetDefault("discord.startup_message", platon.DefaultDiscordStartupMessage)
	viper.SetDefault("discord.custom_status", platon.DefaultDiscordCustomStatus)

	// OpenAI config
	viper.SetDefault("openai.token", "")
	viper.SetDefault("openai.model", platon.DefaultOpenAIModel)
	viper.SetDefault("openai.log_level", platon.DefaultOpenAILogLevel.String())

	// Upstream data sources
	viper.SetDefault("upbit.base_url", platon.DefaultUpbitBaseURL)
	viper.SetDefault("news.url", platon.DefaultNewsURL)

	// Status API
	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.listen", platon.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.log_level", platon.DefaultAPILogLevel.String())
	viper.SetDefault("api.cors_allow_origins", []string{})
	viper.SetDefault("api.read_timeout", platon.DefaultReadTimeout)
	viper.SetDefault("api.write_timeout", platon.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", platon.DefaultIdleTimeout)

	viper.SetEnvPrefix(platon.DefaultEnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.Set(
		"api.cors_allow_origins",
		viper.GetStringSlice("api.cors_allow_origins"),
	)

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
		"openai.log_level",
		"api.log_level",
	} {
		lvlVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, lvlVar)
	}
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		"",
		"Env file to load before reading the environment",
	)
}
