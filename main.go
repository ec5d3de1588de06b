package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabfab/profai/api"
	"github.com/fabfab/profai/config"
	"github.com/fabfab/profai/corpus"
	"github.com/fabfab/profai/database"
	"github.com/fabfab/profai/embeddings"
	"github.com/fabfab/profai/ingestion"
	"github.com/fabfab/profai/knowledge"
	"github.com/fabfab/profai/llm"
	"github.com/fabfab/profai/sessions"
	"github.com/fabfab/profai/store"
	"github.com/fabfab/profai/tutor"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "chunk":
		chunkCmd(cfg, logger, os.Args[2:])
	case "index":
		indexCmd(cfg, logger, os.Args[2:])
	case "retrieve":
		retrieveCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.HTTPAddr, "listen address for the HTTP API")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	if err := database.EnsureSchema(ctx, pgPool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("schema bootstrap: %v", err)
	}

	// The graph and session stores are optional at runtime; the tutor engine
	// and API degrade without them.
	var graph tutor.ConceptGraph
	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Printf("neo4j unavailable, concept graph disabled: %v", err)
	} else {
		defer neo4jDriver.Close(ctx)
		graph = knowledge.NewGraph(neo4jDriver)
	}

	var sessionManager *sessions.Manager
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass)
	if err != nil {
		logger.Printf("redis unavailable, sessions disabled: %v", err)
	} else {
		defer redisClient.Close()
		sessionManager = sessions.NewManager(redisClient, sessions.DefaultTTL)
	}

	model, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	index, err := corpus.Load(cfg.CorpusPaths...)
	if err != nil {
		logger.Printf("corpus load failed, serving with empty index: %v", err)
		index = corpus.NewIndex()
	}
	logger.Printf("corpus loaded: %d chunks from %d sources", index.Len(), len(index.Sources()))
	ranker := corpus.NewKeywordRanker(index)

	engine := tutor.NewEngine(tutor.Deps{
		Ranker: ranker,
		LLM:    model,
		Store:  store.NewPostgresStore(pgPool),
		Graph:  graph,
		Logger: logger,
	}, tutor.Params{
		RetrievalTopK:       cfg.RetrievalTopK,
		LessonChunks:        cfg.LessonChunks,
		AssessmentQuestions: cfg.AssessmentQuestions,
	})

	server := api.NewServer(engine, store.NewPostgresStore(pgPool), sessionManager, ranker, logger)
	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server: %v", err)
	}
}

func chunkCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chunk", flag.ExitOnError)
	dir := flags.String("dir", "data/pdfs", "folder containing source documents")
	output := flags.String("output", "data/pdf_chunks.json", "output corpus JSON file")
	size := flags.Int("chunk-size", 1000, "max chunk size in characters")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chunk flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := ingestion.NewService(*size, logger)
	if err := svc.ProcessFolder(ctx, *dir, *output); err != nil {
		logger.Fatalf("chunking failed: %v", err)
	}
}

func indexCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("index", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse index flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	index, err := corpus.Load(cfg.CorpusPaths...)
	if err != nil {
		logger.Fatalf("corpus load: %v", err)
	}

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	if err := database.EnsureSchema(ctx, pgPool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("schema bootstrap: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	logger.Printf("indexing %d chunks with %s embeddings", index.Len(), cfg.Embeddings.Model)
	if err := corpus.IndexChunks(ctx, pgPool, embedder, index); err != nil {
		logger.Fatalf("indexing failed: %v", err)
	}
	logger.Printf("indexing complete")
}

func retrieveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("retrieve", flag.ExitOnError)
	query := flags.String("query", "", "retrieval query")
	k := flags.Int("k", cfg.RetrievalTopK, "number of chunks to retrieve")
	vector := flags.Bool("vector", false, "use the pgvector index instead of keyword ranking")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse retrieve flags: %v", err)
	}
	if *query == "" {
		logger.Fatal("retrieve requires -query")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var ranker corpus.Ranker
	if *vector {
		pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("postgres connection: %v", err)
		}
		defer pgPool.Close()

		embedder, err := embeddings.NewEmbedder(cfg)
		if err != nil {
			logger.Fatalf("embedder setup: %v", err)
		}
		ranker = corpus.NewVectorRanker(pgPool, embedder)
	} else {
		index, err := corpus.Load(cfg.CorpusPaths...)
		if err != nil {
			logger.Fatalf("corpus load: %v", err)
		}
		ranker = corpus.NewKeywordRanker(index)
	}

	chunks, err := ranker.Rank(ctx, *query, *k)
	if err != nil {
		logger.Fatalf("retrieval failed: %v", err)
	}
	for i, chunk := range chunks {
		fmt.Printf("%d. [%s] %s\n\n", i+1, chunk.Source, chunk.Text)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirm := flags.Bool("confirm", false, "confirm deletion of indexed corpus data")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}
	if !*confirm {
		logger.Fatal("clear requires -confirm")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	if _, err := pgPool.Exec(ctx, "DELETE FROM corpus_chunks"); err != nil {
		logger.Fatalf("clear corpus: %v", err)
	}
	logger.Printf("indexed corpus cleared")
}

func printUsage() {
	fmt.Println("Usage: profai <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve     Run the tutoring HTTP API")
	fmt.Println("  chunk     Chunk source documents into a corpus JSON file")
	fmt.Println("  index     Embed the corpus into the pgvector index")
	fmt.Println("  retrieve  Query the corpus from the command line")
	fmt.Println("  clear     Remove indexed corpus data from Postgres")
}
