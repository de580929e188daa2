// Command s3pipe streams data between standard input/output and an object store.
//
//	s3pipe [--config file] put <key>        upload stdin to key
//	s3pipe [--config file] get <key>        write the object under key to stdout
//	s3pipe [--config file] cleanup <prefix> abort incomplete multipart uploads under prefix
//
// Settings are read from the config file and S3PIPE_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Clarilab/s3-stream"
	"github.com/Clarilab/s3-stream/awsstore"
	"github.com/Clarilab/s3-stream/internal/config"
	"github.com/Clarilab/s3-stream/stream"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var (
	errUsage          = errors.New("usage: s3pipe [--config file] put|get|cleanup <key>")
	errUnknownCommand = errors.New("unknown command")
	errMinioOnly      = errors.New("command requires the minio backend")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("s3pipe", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	contentType := flags.String("content-type", "", "content type of uploaded objects, detected when empty")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(stderr, err)

		return exitUsage
	}

	if flags.NArg() != 2 { //nolint:mnd // command and key
		fmt.Fprintln(stderr, errUsage)

		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)

		return exitError
	}

	if *contentType != "" {
		cfg.Upload.ContentType = *contentType
	}

	logger := config.NewLogger(cfg.Log, stderr)

	command, key := flags.Arg(0), flags.Arg(1)

	switch command {
	case "put":
		err = put(ctx, cfg, logger, key, stdin, stdout)
	case "get":
		err = get(ctx, cfg, logger, key, stdout)
	case "cleanup":
		err = cleanup(ctx, cfg, logger, key, stdout)
	default:
		fmt.Fprintf(stderr, "%v: %s\n%v\n", errUnknownCommand, command, errUsage)

		return exitUsage
	}

	if err != nil {
		logger.Error("command failed", "command", command, "key", key, "error", err)

		return exitError
	}

	return exitOK
}

func put(ctx context.Context, cfg *config.Config, logger *slog.Logger, key string, stdin io.Reader, stdout io.Writer) error {
	const errMessage = "failed to put object: %w"

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	options := append(cfg.StreamOptions(), stream.WithLogger(logger))

	w, err := stream.Open(ctx, store, cfg.Bucket, key, options...)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	if _, err = io.Copy(w, stdin); err != nil {
		if abortErr := w.Abort(); abortErr != nil && !errors.Is(abortErr, stream.ErrClosed) {
			err = errors.Join(err, abortErr)
		}

		return fmt.Errorf(errMessage, err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf(errMessage, err)
	}

	fmt.Fprintf(stdout, "%s/%s size=%d parts=%d\n", cfg.Bucket, key, w.Size(), w.Parts())

	return nil
}

func get(ctx context.Context, cfg *config.Config, logger *slog.Logger, key string, stdout io.Writer) error {
	const errMessage = "failed to get object: %w"

	client, err := newMinioClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	defer client.Close()

	file, err := client.GetFile(ctx, key)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	defer file.Close()

	if _, err = io.Copy(stdout, file); err != nil {
		return fmt.Errorf(errMessage, err)
	}

	return nil
}

func cleanup(ctx context.Context, cfg *config.Config, logger *slog.Logger, prefix string, stdout io.Writer) error {
	const errMessage = "failed to clean up incomplete uploads: %w"

	client, err := newMinioClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	defer client.Close()

	aborted, err := client.AbortIncompleteUploads(ctx, prefix)
	if err != nil {
		return fmt.Errorf(errMessage, err)
	}

	fmt.Fprintf(stdout, "aborted %d incomplete uploads\n", aborted)

	return nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stream.Store, error) {
	if cfg.Backend == config.BackendAWS {
		store, err := awsstore.NewFromConfig(ctx, awsstore.Config{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			UsePathStyle: cfg.PathStyle,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		return store, nil
	}

	client, err := newMinioClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return client.Store(), nil
}

func newMinioClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (s3.Client, error) {
	if cfg.Backend != config.BackendMinio {
		return nil, errMinioOnly
	}

	return s3.NewClient(ctx, &s3.ClientDetails{ //nolint:wrapcheck
		Host:         cfg.Endpoint,
		AccessKey:    cfg.AccessKey,
		AccessSecret: cfg.SecretKey,
		BucketName:   cfg.Bucket,
		Region:       cfg.Region,
		Secure:       cfg.Secure,
	}, s3.WithLogger(logger))
}
