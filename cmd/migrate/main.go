package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/decode-labs/decode-api/migrations"
	"github.com/decode-labs/decode-api/pkg/config"
	"github.com/decode-labs/decode-api/pkg/database"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	switch command {
	case "up":
		err = goose.Up(db.DB, ".")
	case "down":
		err = goose.Down(db.DB, ".")
	case "status":
		err = goose.Status(db.DB, ".")
	case "version":
		err = goose.Version(db.DB, ".")
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status|version]")
	flag.PrintDefaults()
}
