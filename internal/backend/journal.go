package backend

import (
	"context"
	"log"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Journal receives a plain-text feed of room lifecycle and chat
// events, one topic per room. Purely observational: game flow never
// depends on it, and a broken broker only costs the feed.
type Journal interface {
	RoomCreated(code string)
	RoomClosed(code string)
	Event(code string, text string)
}

// KafkaJournal journals rooms to a Kafka broker. The broker is
// expected to allow automatic topic creation; DialLeader on the room
// topic creates it.
type KafkaJournal struct {
	addr string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaJournal(addr string) *KafkaJournal {
	return &KafkaJournal{
		addr:    addr,
		writers: make(map[string]*kafka.Writer),
	}
}

func (j *KafkaJournal) RoomCreated(code string) {
	if _, err := kafka.DialLeader(context.Background(), "tcp", j.addr, code, 0); err != nil {
		log.Printf("[KafkaJournal] failed to create topic %s: %v", code, err)
		return
	}

	j.mu.Lock()
	j.writers[code] = &kafka.Writer{
		Addr:         kafka.TCP(j.addr),
		Topic:        code,
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchSize:    1,
	}
	j.mu.Unlock()
}

func (j *KafkaJournal) RoomClosed(code string) {
	j.mu.Lock()
	writer := j.writers[code]
	delete(j.writers, code)
	j.mu.Unlock()

	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Printf("[KafkaJournal] failed to close writer for %s: %v", code, err)
		}
	}

	conn, err := kafka.Dial("tcp", j.addr)
	if err != nil {
		log.Printf("[KafkaJournal] failed to dial to remove topic %s: %v", code, err)
		return
	}
	defer conn.Close()

	if err := conn.DeleteTopics(code); err != nil {
		log.Printf("[KafkaJournal] failed to delete topic %s: %v", code, err)
	}
}

func (j *KafkaJournal) Event(code string, text string) {
	j.mu.Lock()
	writer := j.writers[code]
	j.mu.Unlock()

	if writer == nil {
		return
	}
	if err := writer.WriteMessages(context.Background(),
		kafka.Message{Value: []byte(text)}); err != nil {
		log.Printf("[KafkaJournal] failed to journal event for %s: %v", code, err)
	}
}
