package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"jsonimport/internal/config"
	"jsonimport/internal/importer"
	"jsonimport/internal/metrics"
	"jsonimport/internal/metrics/datadog"
	"jsonimport/internal/storage"

	// register all storage backends with the factory; config picks one
	// at runtime.
	_ "jsonimport/internal/storage/all"
)

// main defers no cleanup itself; run owns every deferred Close so that
// failure exits still flush buffered metrics and release the repository.
func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath           string
		dirFlg            string
		fileFlg           string
		backendFlg        string
		dsnFlg            string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "job config JSON path")
	flag.StringVar(&dirFlg, "dir", "", "directory of JSON files to import (overrides config)")
	flag.StringVar(&fileFlg, "file", "", "single JSON file to import (overrides config)")
	flag.StringVar(&backendFlg, "backend", "", "storage backend: mysql, postgres, sqlite, mssql (overrides config)")
	flag.StringVar(&dsnFlg, "dsn", "", "storage DSN (overrides config)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none; default env METRICS_BACKEND)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Credentials commonly live in a .env next to the binary; a missing
	// file is fine.
	_ = godotenv.Load()

	job, err := loadJob(cfgPath)
	if err != nil {
		return fail("%v", err)
	}
	if dirFlg != "" {
		job.Input.Dir = dirFlg
		job.Input.File = ""
	}
	if fileFlg != "" {
		job.Input.File = fileFlg
		job.Input.Dir = ""
	}
	if backendFlg != "" {
		job.Storage.Kind = backendFlg
	}
	if dsnFlg != "" {
		job.Storage.DSN = dsnFlg
	}
	if job.Storage.DSN == "" && job.Storage.Connection == nil {
		job.Storage.DSN = os.Getenv("IMPORT_DSN")
	}

	issues := config.Validate(job)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid")
		return 1
	}
	if validate {
		log.Printf("configuration is valid")
		return 0
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		jobName := job.Name
		if jobName == "" {
			jobName = "jsonimport"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: jobName,
			Tags:    extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)

			// Close stops the periodic flush loop and performs a final Flush.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	dsn, err := job.Storage.ResolveDSN()
	if err != nil {
		return fail("resolve dsn: %v", err)
	}
	repo, err := storage.New(ctx, storage.Config{Kind: job.Storage.Kind, DSN: dsn})
	if err != nil {
		return fail("open storage: %v", err)
	}
	defer repo.Close()
	log.Printf("database connection established (%s)", job.Storage.Kind)

	im := &importer.Importer{
		Repo:      repo,
		Extension: job.Input.Extension,
		Report:    func(msg string) { log.Print(msg) },
	}

	if job.Input.File != "" {
		out := im.ImportFile(ctx, job.Input.File)
		if *verbose {
			log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
		}
		if !out.Succeeded() {
			return fail("%s: %s (%s)", out.FileName, out.State, out.Message)
		}
		return 0
	}

	sum, err := im.ImportDirectory(ctx, job.Input.Dir)
	if err != nil {
		return fail("%v", err)
	}

	if sum.TotalFiles == 0 {
		ext := job.Input.Extension
		if ext == "" {
			ext = ".json"
		}
		log.Printf("no %s files found in %s", ext, job.Input.Dir)
	} else {
		log.Printf("imported %d/%d files", sum.Succeeded, sum.TotalFiles)
		for _, f := range sum.FailedFiles {
			log.Printf("failed: %s", f)
		}
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if sum.Failed > 0 {
		return 1
	}
	return 0
}

func loadJob(path string) (config.Job, error) {
	if path == "" {
		return config.Job{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return config.Job{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var j config.Job
	if err := json.NewDecoder(f).Decode(&j); err != nil {
		return config.Job{}, fmt.Errorf("decode config: %w", err)
	}
	return j, nil
}

// fail prints to stderr and returns the process exit code, letting run's
// deferred cleanup execute before the process exits.
func fail(format string, a ...any) int {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	return 1
}
