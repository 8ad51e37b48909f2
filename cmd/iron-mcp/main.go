// Package main runs the progression MCP server over stdio (for local assistant use).
// The same tools are also mounted on the sync backend at /mcp over HTTP.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/BaptisteLac/Zeus-sub000/internal/auth"
	"github.com/BaptisteLac/Zeus-sub000/internal/config"
	"github.com/BaptisteLac/Zeus-sub000/internal/db"
	ironmcp "github.com/BaptisteLac/Zeus-sub000/internal/mcp"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncapi"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path to TOML config file")
	username := flag.String("user", "", "user whose state the tools read (default: mcp_username from config)")
	flag.Parse()

	// stdout carries the protocol, the std logger writes to stderr
	_ = godotenv.Load()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *username == "" {
		*username = cfg.MCPUsername
	}
	if *username == "" {
		log.Fatal("no user given: use -user or mcp_username")
	}

	ctx := context.Background()
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		ConnString:     cfg.PostgresURL(),
		TracingEnabled: false,
	})
	if err != nil {
		log.Fatalf("db pool: %v", err)
	}
	defer dbPool.Close()

	user, err := auth.NewUsersRepo(dbPool).GetByUsername(ctx, *username)
	if err != nil {
		log.Fatalf("user [%s]: %v", *username, err)
	}

	source := ironmcp.NewRepoSource(syncapi.NewRepo(dbPool), user.ID)
	server := ironmcp.NewServer(source)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatal(err)
	}
}
