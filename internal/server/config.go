package server

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything the process reads from the environment.
// DATABASE_URL and KAFKA_BROKER are optional: without them the server
// runs on in-memory rows with no event journal.
type Config struct {
	Port        int
	DatabaseURL string
	KafkaBroker string
	WordsCSV    string
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[LoadConfig] no .env file, using environment")
	}

	port := 8080
	if raw := os.Getenv("PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			log.Printf("[LoadConfig] invalid PORT %q, using %d", raw, port)
		} else {
			port = p
		}
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		KafkaBroker: os.Getenv("KAFKA_BROKER"),
		WordsCSV:    os.Getenv("WORDS_CSV"),
	}
}
