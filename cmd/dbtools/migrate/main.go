// cmd/dbtools/migrate/main.go
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtside/internal/db"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		dbPath  = flag.String("db", "", "Path to SQLite database")
		command = flag.String("command", "", "Command to run (up, down, version, force)")
		version = flag.Int("version", -1, "Target version for force")
	)
	flag.Parse()

	if *dbPath == "" || *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database directory")
	}

	sqlDB, err := sql.Open("sqlite3", *dbPath+"?_fk=1")
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
	}
	defer sqlDB.Close()

	m, err := db.Migrator(sqlDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration init failed")
	}

	switch *command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Migration up failed")
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Migration down failed")
		}
	case "force":
		if *version < 0 {
			log.Fatal().Msg("force requires -version")
		}
		if err := m.Force(*version); err != nil {
			log.Fatal().Err(err).Int("version", *version).Msg("Migration force failed")
		}
	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("Get version failed")
		}
		fmt.Printf("Version: %d, Dirty: %v\n", v, dirty)
		return
	default:
		log.Fatal().Str("command", *command).Msg("Unknown command")
	}

	log.Info().Str("command", *command).Str("db", *dbPath).Msg("Migration complete")
}
