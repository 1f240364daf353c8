package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		UserID:     getEnv("CASE_USER_ID", "console"),
		UserName:   getEnv("CASE_USER_NAME", ""),
		CaseID:     getEnv("CASE_ID", "blackwood-manor-mystery"),
		Timeout:    30 * time.Second,
	}

	client := newAPIClient(cfg)

	if !client.health() {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	if _, err := client.acceptCase(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to accept case: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, client),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
