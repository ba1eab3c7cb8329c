package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"profilehub/models"
	"profilehub/pkg/storage"
)

func usage() {
	fmt.Println("usage: go run ./cmd/manage_city add|on|off <name>")
	fmt.Println("       go run ./cmd/manage_city list")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	action := os.Args[1]

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DATABASE_URL not set in environment")
	}
	db, err := storage.OpenPostgres(dsn, false)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.City{}); err != nil {
		log.Fatalf("migrate cities: %v", err)
	}
	gw := storage.New(db)
	ctx := context.Background()

	if action == "list" {
		cities, err := gw.AllCities(ctx)
		if err != nil {
			log.Fatal(err)
		}
		for _, c := range cities {
			fmt.Printf("%d|%s|%s\n", c.ID, c.Name, c.Status)
		}
		return
	}

	if len(os.Args) < 3 || strings.TrimSpace(os.Args[2]) == "" {
		usage()
	}
	name := os.Args[2]
	status := models.CityOn
	switch action {
	case "add", "on":
	case "off":
		status = models.CityOff
	default:
		usage()
	}
	city, err := gw.UpsertCity(ctx, name, status)
	if err != nil {
		log.Fatalf("failed to save city: %v", err)
	}
	fmt.Printf("city %s id=%d status=%s\n", city.Name, city.ID, status)
}
