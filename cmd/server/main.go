package main

import (
	"context"
	"log"

	"github.com/carmarket/marketauth/internal/server"
)

func main() {
	if err := server.Main(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
