package utils

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/sketchduel/sketchduel-backend/internal"
)

// =============================================================================
// WORD POOL
// =============================================================================

// WordPool hands out secret words by difficulty. The built-in pools
// cover a bare install; LoadCSV replaces them with a curated list.
type WordPool struct {
	mu    sync.Mutex
	words map[internal.WordDifficulty][]string
}

var defaultWords = map[internal.WordDifficulty][]string{
	internal.DifficultyEasy: {
		"cat", "sun", "fish", "tree", "house", "ball", "star", "moon",
		"car", "boat", "apple", "dog", "hat", "cup", "book",
	},
	internal.DifficultyMedium: {
		"elephant", "giraffe", "sandwich", "umbrella", "mountain",
		"guitar", "dolphin", "rainbow", "campfire", "penguin",
		"tractor", "volcano", "octopus", "lighthouse",
	},
	internal.DifficultyHard: {
		"trampoline", "helicopter", "stethoscope", "kaleidoscope",
		"procrastination", "photosynthesis", "ventriloquist",
		"archaeologist", "constellation",
	},
}

func NewWordPool() *WordPool {
	words := make(map[internal.WordDifficulty][]string, len(defaultWords))
	for diff, list := range defaultWords {
		words[diff] = append([]string(nil), list...)
	}
	return &WordPool{words: words}
}

// Pick returns a random word of the given difficulty, falling back to
// medium when the requested pool is empty or unknown.
func (wp *WordPool) Pick(difficulty internal.WordDifficulty) string {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	pool := wp.words[difficulty]
	if len(pool) == 0 {
		pool = wp.words[internal.DifficultyMedium]
	}
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.Intn(len(pool))]
}

// LoadCSV replaces the pools from a word,difficulty CSV file. Records
// with an unknown difficulty are skipped.
func (wp *WordPool) LoadCSV(filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open word list %s: %w", filePath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows, they are skipped below
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("parse word list %s: %w", filePath, err)
	}

	loaded := make(map[internal.WordDifficulty][]string)
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		diff := internal.WordDifficulty(record[1])
		switch diff {
		case internal.DifficultyEasy, internal.DifficultyMedium, internal.DifficultyHard:
			loaded[diff] = append(loaded[diff], record[0])
		}
	}
	if len(loaded) == 0 {
		return fmt.Errorf("word list %s contained no usable records", filePath)
	}

	wp.mu.Lock()
	wp.words = loaded
	wp.mu.Unlock()
	return nil
}
