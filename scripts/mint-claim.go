package main

import (
	"fmt"
	"os"

	"github.com/duochat/duochat-server/internal/token"
)

// Mints a room claim for local testing against a running server.
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: CLAIM_SECRET=... go run scripts/mint-claim.go <deviceId> <roomId>\n")
		os.Exit(1)
	}

	secret := os.Getenv("CLAIM_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: CLAIM_SECRET is not set\n")
		os.Exit(1)
	}

	claim, err := token.NewIssuer(secret).Issue(os.Args[1], os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(claim)
}
