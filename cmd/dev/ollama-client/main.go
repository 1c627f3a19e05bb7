package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/garnizeh/mockinterview/internal/coach"
	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/ollama"
)

const (
	uri   = "http://localhost:11434"
	model = "llama3.1"
)

// streams one interviewer reply from a local Ollama; useful to smoke-test prompts
func main() {
	base := flag.String("host", uri, "ollama base URL")
	m := flag.String("model", model, "chat model")
	role := flag.String("role", "Backend Engineer", "interview role")
	answer := flag.String("answer", "", "candidate answer to reply to; empty starts the interview")
	flag.Parse()

	ctx := context.Background()

	client, err := ollama.NewDefaultClient(config.OllamaConfig{
		BaseURL:                 *base,
		Retries:                 1,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 3,
		CircuitReset:            30 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if err := client.Health(ctx); err != nil {
		log.Fatalf("ollama not reachable at %s: %v", *base, err)
	}

	c := coach.New(client, config.ChatConfig{Model: *m, Timeout: 2 * time.Minute})
	iv := models.Interview{Role: *role, Difficulty: models.DifficultyIntermediate}

	var turns []coach.Turn
	if *answer != "" {
		turns = append(turns, coach.Turn{Role: coach.RoleUser, Content: *answer})
	}

	err = c.Interview(ctx, iv, nil, turns, func(chunk string) error {
		_, err := fmt.Fprint(os.Stdout, chunk)
		return err
	})
	fmt.Println()
	if err != nil {
		log.Fatal(err)
	}
}
