package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainforensics/sigharvest/blockstore"
	"github.com/chainforensics/sigharvest/emitter"
	"github.com/chainforensics/sigharvest/extract"
	"github.com/chainforensics/sigharvest/logger"
	"github.com/chainforensics/sigharvest/oracle"

	"github.com/kelseyhightower/envconfig"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
	buildUser    = "unknown"
)

func main() {
	// -------------------------------------------------------------------------
	// Logging
	logConfig := logger.NewDevelopmentConfig()
	logConfig.Main.AddFile("./tmp/main.log")
	logConfig.EnableSubSystem(extract.SubSystem)
	logConfig.EnableSubSystem(oracle.SubSystem)
	logConfig.EnableSubSystem(emitter.SubSystem)
	ctx := logger.ContextWithLogConfig(context.Background(), logConfig)

	// -------------------------------------------------------------------------
	// Config

	var cfg struct {
		Node struct {
			Host       string `envconfig:"NODE_HOST"`
			Username   string `envconfig:"NODE_USERNAME"`
			Password   string `envconfig:"NODE_PASSWORD"`
			MaxRetries int    `default:"3" envconfig:"NODE_MAX_RETRIES"`
			RetryDelay int    `default:"500" envconfig:"NODE_RETRY_DELAY_MS"`
		}
	}

	if err := envconfig.Process("SigHarvest", &cfg); err != nil {
		logger.Info(ctx, "Parsing config : %v", err)
	}

	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <output_directory> <block_store_path>\n", os.Args[0])
		os.Exit(1)
	}
	outputDir := os.Args[1]
	blockStorePath := os.Args[2]

	logger.Info(ctx, "Started : Application Initializing")
	defer log.Println("Completed")

	cfgJSON, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		logger.Fatal(ctx, "Marshalling config to JSON : %v", err)
	}

	logger.Info(ctx, "Build %v (%v on %v)", buildVersion, buildUser, buildDate)
	logger.Info(ctx, "Config : %v", string(cfgJSON))

	// -------------------------------------------------------------------------
	// Oracle

	source, err := oracle.NewRPCNode(oracle.RPCNodeConfig{
		Host:       cfg.Node.Host,
		Username:   cfg.Node.Username,
		Password:   cfg.Node.Password,
		MaxRetries: cfg.Node.MaxRetries,
		RetryDelay: cfg.Node.RetryDelay,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to create node oracle : %s", err)
	}

	// -------------------------------------------------------------------------
	// Sink

	sink, err := emitter.NewFilesystem(ctx, outputDir)
	if err != nil {
		logger.Fatal(ctx, "Failed to open output directory %s : %s", outputDir, err)
	}

	// -------------------------------------------------------------------------
	// Block store

	blocks, err := blockstore.NewReader(blockStorePath)
	if err != nil {
		logger.Fatal(ctx, "Failed to open block store %s : %s", blockStorePath, err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	stop := make(chan struct{})
	go func() {
		sig := <-signals
		logger.Info(ctx, "Received signal : %s", sig)
		close(stop)
	}()

	// -------------------------------------------------------------------------
	// Run

	driver := extract.NewDriver(source, sink)

	startHeight := blocks.StartHeight()
	driver.Start(ctx, startHeight)

	endHeight := startHeight
	for {
		select {
		case <-stop:
			logger.Info(ctx, "Stopping before height %d", endHeight)
			goto done
		default:
		}

		block, height, ok, err := blocks.Next(ctx)
		if err != nil {
			logger.Fatal(ctx, "Failed to read block : %s", err)
		}
		if !ok {
			break
		}

		if err := driver.Block(ctx, block, height); err != nil {
			logger.Fatal(ctx, "Failed to process block %d : %s", height, err)
		}
		endHeight = height
	}

done:
	counters, err := driver.Complete(ctx, startHeight, endHeight)
	if err != nil {
		logger.Fatal(ctx, "Failed to complete run : %s", err)
	}

	logger.Info(ctx, "Final counters : %+v", counters)
}
