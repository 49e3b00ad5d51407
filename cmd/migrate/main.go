package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [up|drop|seed]")
		os.Exit(1)
	}
	command := os.Args[1]

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ performances table created")

	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ performances table dropped")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ demo performances seeded")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS performances (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			uploader_name TEXT NOT NULL,
			photo_url TEXT,
			votes BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_performances_votes
			ON performances (votes DESC, created_at ASC);
	`)
	return err
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `DROP TABLE IF EXISTS performances`)
	return err
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	seed := []struct {
		id, title, url, uploader string
	}{
		{"1", "Electric Slide Karaoke Performance", "https://example.com/video1.mp4", "Jane123"},
		{"2", "Single Ladies Cover", "https://example.com/video2.mp4", "John456"},
		{"3", "YMCA Group Performance", "https://example.com/video3.mp4", "DanceTeam"},
		{"4", "Macarena Cover", "https://example.com/video4.mp4", "Party789"},
	}

	for _, p := range seed {
		_, err := conn.Exec(ctx, `
			INSERT INTO performances (id, title, url, uploader_name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, p.id, p.title, p.url, p.uploader)
		if err != nil {
			return fmt.Errorf("insert performance %s: %w", p.id, err)
		}
	}
	return nil
}
