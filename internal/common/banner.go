package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(config *Config, logger arbor.ILogger) {
	version := GetVersion()
	build := GetBuild()

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("FOCUSEDCRAWL")
	b.PrintCenteredText("Focused Web Crawler and Content Pipeline")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Build", build, 15)
	b.PrintKeyValue("Environment", config.Environment, 15)
	b.PrintKeyValue("Spool Dir", config.Storage.SpoolDir, 15)
	b.PrintKeyValue("Train Dir", config.Storage.TrainDir, 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	logger.Info().
		Str("version", version).
		Str("build", build).
		Str("environment", config.Environment).
		Str("spool_dir", config.Storage.SpoolDir).
		Str("train_dir", config.Storage.TrainDir).
		Msg("Application started")

	fmt.Printf("📋 Configuration:\n")
	fmt.Printf("   • Spool Dir: %s\n", config.Storage.SpoolDir)
	fmt.Printf("   • Train Dir: %s\n", config.Storage.TrainDir)
	fmt.Printf("   • LLM Provider: %s\n", config.LLM.DefaultProvider)

	logFilePath := ""
	if loggerWithPath, ok := interface{}(logger).(interface{ GetLogFilePath() string }); ok {
		logFilePath = loggerWithPath.GetLogFilePath()
		if logFilePath != "" {
			fmt.Printf("   • Log File: %s\n", logFilePath)
		}
	}
	fmt.Printf("\n")

	logger.Info().
		Str("log_file", logFilePath).
		Str("llm_default_provider", string(config.LLM.DefaultProvider)).
		Int64("crawler_max_memory_bytes", config.Crawler.MaxMemoryBytes).
		Bool("crawler_auto_enabled", config.Crawler.AutoEnabled).
		Msg("Configuration loaded")

	printCapabilities(config, logger)
	fmt.Printf("\n")
}

// printCapabilities displays the system capabilities
func printCapabilities(config *Config, logger arbor.ILogger) {
	fmt.Printf("🎯 Enabled Features:\n")
	fmt.Printf("   • Headless rendering pool (%d tabs)\n", config.Crawler.BrowserPoolSize)

	if config.Crawler.AutoEnabled {
		fmt.Printf("   • Automatic seed crawling (%d workers)\n", config.Crawler.AutoWorkers)
	} else {
		fmt.Printf("   • Automatic seed crawling disabled\n")
	}

	fmt.Printf("   • User-submitted crawl jobs (%d workers, %d concurrent)\n",
		config.Crawler.UserWorkers, config.Crawler.UserMaxConcurrent)

	if config.WordPress.URL != "" {
		fmt.Printf("   • Publisher enabled (posting to %s)\n", config.WordPress.URL)
	} else {
		fmt.Printf("   • Publisher disabled (no external poster configured)\n")
	}

	logger.Info().
		Int("browser_pool_size", config.Crawler.BrowserPoolSize).
		Bool("auto_crawl_enabled", config.Crawler.AutoEnabled).
		Int("auto_workers", config.Crawler.AutoWorkers).
		Int("user_workers", config.Crawler.UserWorkers).
		Bool("publisher_enabled", config.WordPress.URL != "").
		Msg("System capabilities")
}

// PrintShutdownBanner displays the application shutdown banner
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText("FOCUSEDCRAWL")
	b.PrintBottomLine()
	fmt.Println()

	logger.Info().Msg("Application shutting down")
}

// PrintColorizedMessage prints a message with specified color. It does not
// log; the logger argument is unused and callers log separately.
func PrintColorizedMessage(color, message string, logger arbor.ILogger) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green and logs it
func PrintSuccess(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("✓ %s", message), logger)
	logger.Info().Str("type", "success").Msg(message)
}

// PrintError prints an error message in red and logs it
func PrintError(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("✗ %s", message), logger)
	logger.Error().Str("type", "error").Msg(message)
}

// PrintWarning prints a warning message in yellow and logs it
func PrintWarning(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("⚠ %s", message), logger)
	logger.Warn().Str("type", "warning").Msg(message)
}

// PrintInfo prints an info message in cyan and logs it
func PrintInfo(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("ℹ %s", message), logger)
	logger.Info().Str("type", "info").Msg(message)
}
