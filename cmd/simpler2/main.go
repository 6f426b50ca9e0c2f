package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/abhishekgoyaldev/SimpleR2/pkg/r2"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: simpler2 [flags] <get|put|delete|exists> <bucket> <key> [file...]

Credentials are read from R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and the
optional R2_SESSION_TOKEN. The endpoint comes from -endpoint or R2_ENDPOINT.

  get     write the object body to stdout
  put     upload stdin, or each named file concurrently under <key> as prefix
  delete  remove the object
  exists  report whether the object exists

Flags:
`)
	flag.PrintDefaults()
}

func Run(ctx context.Context) error {

	endpoint := flag.String("endpoint", os.Getenv("R2_ENDPOINT"), "R2 endpoint URL, e.g. https://<account>.r2.cloudflarestorage.com")
	timeout := flag.Duration("timeout", r2.DefaultTimeout, "per-request timeout")

	flag.Usage = usage
	flag.Parse()

	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.InfoLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})

	slog.SetDefault(slog.New(handler))

	args := flag.Args()
	if len(args) < 3 {
		flag.Usage()
		return errors.New("expected <operation> <bucket> <key>")
	}
	op, bucket, key := args[0], args[1], args[2]

	creds, err := r2.CredentialsFromEnv()
	if err != nil {
		return err
	}

	client, err := r2.New(*endpoint, creds, r2.WithTimeout(*timeout))
	if err != nil {
		return err
	}

	switch op {
	case "get":
		resp, err := client.Get(ctx, bucket, key, nil)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(resp.Body)
		return err

	case "exists":
		resp, err := client.GetIfExists(ctx, bucket, key, nil)
		if err != nil {
			return err
		}
		if resp.StatusCode == 404 {
			fmt.Println("not found")
		} else {
			fmt.Println("found")
		}
		return nil

	case "delete":
		if _, err := client.Delete(ctx, bucket, key, nil); err != nil {
			return err
		}
		slog.Info("Deleted object", "bucket", bucket, "key", key)
		return nil

	case "put":
		files := args[3:]
		if len(files) == 0 {
			body, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			if _, err := client.Put(ctx, bucket, key, body, nil); err != nil {
				return err
			}
			slog.Info("Uploaded object", "bucket", bucket, "key", key, "size", len(body))
			return nil
		}

		// With multiple sources, key acts as a prefix and uploads run
		// concurrently. Each call owns its own header set and body.
		eg, ctx := errgroup.WithContext(ctx)
		for _, file := range files {
			eg.Go(func() error {
				body, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				objectKey := path.Join(key, filepath.Base(file))
				if _, err := client.Put(ctx, bucket, objectKey, body, nil); err != nil {
					return fmt.Errorf("put %s: %w", objectKey, err)
				}
				slog.Info("Uploaded object", "bucket", bucket, "key", objectKey, "size", len(body))
				return nil
			})
		}
		return eg.Wait()

	default:
		flag.Usage()
		return fmt.Errorf("unknown operation %q", op)
	}
}

func main() {
	if err := Run(context.Background()); err != nil {
		slog.Error("simpler2 exited with error", "error", err)
		os.Exit(1)
	}
}
