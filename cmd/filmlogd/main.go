// Command filmlogd runs the filmlog daemon without the CLI wrapper. It is
// intended for service managers; `filmlog serve` is equivalent.
package main

import (
	"context"
	"flag"
	"log"

	"filmlog/internal/config"
	"filmlog/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("filmlogd: %v", err)
	}
}
