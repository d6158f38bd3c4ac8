package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// issue-token mints a bearer token for a quiz taker. Identity lives
// upstream; this is for local runs of the server and the attempt runner.
func main() {
	var userID, role string
	flag.StringVar(&userID, "user", "", "User ID to embed as the token subject")
	flag.StringVar(&role, "role", "", "Role: student or tutor")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	if userID == "" {
		fmt.Print("Enter User ID: ")
		userID, _ = reader.ReadString('\n')
		userID = strings.TrimSpace(userID)
	}
	if userID == "" {
		fmt.Println("Error: User ID is required")
		os.Exit(1)
	}

	if role == "" {
		fmt.Print("Enter Role (student/tutor, default student): ")
		role, _ = reader.ReadString('\n')
		role = strings.TrimSpace(role)
	}
	if role == "" {
		role = string(service.RoleStudent)
	}
	if role != string(service.RoleStudent) && role != string(service.RoleTutor) {
		fmt.Println("Error: Role must be student or tutor")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	token, err := authService.GenerateToken(userID, service.Role(role))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Fprintf(os.Stderr, "Issued %s token for %q, valid for %s\n", role, userID, cfg.JWTExpiry)
	fmt.Println(token)
}
