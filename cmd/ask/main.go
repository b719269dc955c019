// Package main provides a CLI tool that sends one question through the
// streaming relay and prints the reply as it arrives.
// Usage:
//
//	GEMINI_API_KEY=xxx go run ./cmd/ask "When does the library open?"
//	OPENAI_API_KEY=sk-xxx go run ./cmd/ask -provider=openai "Hostel fees?"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"clarifyai/config"
	"clarifyai/internal/core"
	"clarifyai/internal/httpclient"
	"clarifyai/internal/logging"
	"clarifyai/internal/providers"
	"clarifyai/internal/providers/gemini"
	"clarifyai/internal/providers/openai"
	"clarifyai/internal/relay"
)

func main() {
	provider := flag.String("provider", "", "vendor to use (gemini, openai); defaults to LLM_PROVIDER")
	model := flag.String("model", "", "model override")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for the reply")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-provider=gemini|openai] [-model=name] <question>")
		os.Exit(2)
	}

	result, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := result.Config
	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}
	logger := logging.New(os.Stderr, logging.Options{Format: "text", Level: cfg.Logging.Level})

	factory := providers.NewProviderFactory()
	factory.Add(openai.Registration)
	factory.Add(gemini.Registration)

	vendor := providers.ResolveConfig(cfg.LLM)
	client := httpclient.NewHTTPClient(nil)
	adapter, err := factory.Create(vendor, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provider: %v\n", err)
		os.Exit(1)
	}

	r := relay.New(adapter, relay.Config{
		Model:        vendor.Model,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, relay.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	exitCode := 0
	r.StreamChat(ctx, []core.Message{{Role: core.RoleUser, Content: question}}, core.StreamCallbacks{
		OnDelta: func(text string) { fmt.Print(text) },
		OnDone:  func() { fmt.Println() },
		OnError: func(message string) {
			fmt.Println()
			fmt.Fprintf(os.Stderr, "error: %s\n", message)
			exitCode = 1
		},
	})
	if exitCode != 0 {
		stop()
		cancel()
		os.Exit(exitCode)
	}
}
