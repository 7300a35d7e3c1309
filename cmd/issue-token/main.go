package main

import (
	"flag"
	"fmt"
	"os"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/config"
	"brillprime/internal/shared/utils"
)

func main() {
	userID := flag.String("user", "", "User ID (UUID, generated when empty)")
	email := flag.String("email", "driver@example.com", "Email address")
	role := flag.String("role", auth.RoleDriver, "Role (CONSUMER|MERCHANT|DRIVER|ADMIN)")
	flag.Parse()

	if !auth.ValidRole(*role) {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}
	if *userID == "" {
		*userID = utils.NewUUID()
	}

	cfg := config.Load()
	token, err := auth.NewJWTService(cfg.JWT).GenerateToken(*userID, *email, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User ID: %s\n", *userID)
	fmt.Printf("Role:    %s\n\n", *role)
	fmt.Printf("%s\n\n", token)
	fmt.Printf("Tracker: TRACKER_TOKEN=%s\n", token)
	fmt.Printf("API:     curl -X PUT http://localhost:%d/location/live \\\n", cfg.Services.APIPort)
	fmt.Printf("  -H 'Authorization: Bearer %s' \\\n", token)
	fmt.Printf("  -H 'Content-Type: application/json' \\\n")
	fmt.Printf("  -d '{\"latitude\": 6.5244, \"longitude\": 3.3792}'\n")
}
