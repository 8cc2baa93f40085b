package main

import (
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"hush/server"
)

func main() {
	cfg := server.Cfg{
		Host:         getEnv("HOST", "http://localhost:3000"),
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		Env:          getEnv("ENV", "dev"),
		DBPath:       getEnv("DB_PATH", "./hush.db"),
	}

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
