package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/sentipulse/sentipulse-go/internal/config"
)

func main() {
	fmt.Println("🔧 Validating Telegram bot configuration...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Telegram.Enabled {
		fmt.Println("⚠️  Telegram notifications are disabled in configuration")
	}

	if cfg.Telegram.BotToken == "" {
		fmt.Println("❌ telegram.bot_token is not configured")
		os.Exit(1)
	}
	fmt.Printf("✅ Bot token is configured (length: %d)\n", len(cfg.Telegram.BotToken))

	if cfg.Telegram.ChatID == "" {
		fmt.Println("❌ telegram.chat_id is not configured")
		os.Exit(1)
	}
	chatID, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64)
	if err != nil {
		fmt.Printf("❌ telegram.chat_id is not numeric: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Chat id is configured: %d\n", chatID)

	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		fmt.Printf("❌ Failed to create Telegram bot: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Telegram bot created successfully")

	fmt.Println("🔍 Testing bot API connection...")
	botInfo, err := b.GetMe(context.Background())
	if err != nil {
		fmt.Printf("❌ Failed to get bot info: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Bot API connection successful!")
	fmt.Printf("   Bot name: %s\n", botInfo.FirstName)
	fmt.Printf("   Bot username: @%s\n", botInfo.Username)
	fmt.Printf("   Bot id: %d\n", botInfo.ID)

	fmt.Println("\n🎉 All Telegram configuration checks passed.")
}
