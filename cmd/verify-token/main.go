package main

import (
	"flag"
	"fmt"
	"os"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/config"
)

func main() {
	token := flag.String("token", "", "JWT token to verify")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "usage: verify-token -token=<JWT>")
		os.Exit(2)
	}

	cfg := config.Load()
	claims, err := auth.NewJWTService(cfg.JWT).ValidateToken(*token)
	if err != nil {
		fmt.Printf("invalid: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("valid")
	fmt.Printf("  user_id:    %s\n", claims.UserID)
	fmt.Printf("  email:      %s\n", claims.Email)
	fmt.Printf("  role:       %s\n", claims.Role)
	fmt.Printf("  issuer:     %s\n", claims.Issuer)
	fmt.Printf("  expires_at: %s\n", claims.ExpiresAt.Time)
}
