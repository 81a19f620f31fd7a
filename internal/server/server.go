package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sketchduel/sketchduel-backend/internal/backend"
	"github.com/sketchduel/sketchduel-backend/internal/game"
	"github.com/sketchduel/sketchduel-backend/internal/utils"
)

type Server struct {
	cfg  Config
	svc  *backend.Service
	ctrl *game.Controller
}

// NewServer wires the stack: postgres rows when DATABASE_URL is set,
// in-memory rows otherwise; a kafka journal when KAFKA_BROKER is set.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	var rows backend.RowStore
	if cfg.DatabaseURL != "" {
		pg, err := backend.NewPostgresRows(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rows = pg
		log.Println("[NewServer] using postgres row store")
	} else {
		rows = backend.NewMemoryRows()
		log.Println("[NewServer] using in-memory row store")
	}

	var journal backend.Journal
	if cfg.KafkaBroker != "" {
		journal = backend.NewKafkaJournal(cfg.KafkaBroker)
		log.Printf("[NewServer] journaling room events to kafka at %s", cfg.KafkaBroker)
	}

	words := utils.NewWordPool()
	if cfg.WordsCSV != "" {
		if err := words.LoadCSV(cfg.WordsCSV); err != nil {
			log.Printf("[NewServer] words csv %s: %v, using built-in words", cfg.WordsCSV, err)
		}
	}

	svc := backend.NewService(rows, journal)
	ctrl := game.NewController(svc, words)

	return &Server{
		cfg:  cfg,
		svc:  svc,
		ctrl: ctrl,
	}, nil
}

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *Server) Close() {
	s.svc.Close()
}
