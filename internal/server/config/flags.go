package config

import (
	"flag"
	"io"
	"time"

	"github.com/xxiimcha/lk-web/internal/flagx"
)

var knownFlags = []string{"-a", "-g", "-d", "-m", "-s", "-t", "-o", "-r", "-l", "-b", "-e", "-n"}

// parseFlags overlays command-line flags onto cfg.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC health bind address, empty disables it
//	-d string   PostgreSQL DSN
//	-m string   store: postgres or memory
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-o int      one-time code validity, minutes
//	-r string   redis address for the one-time code limiter
//	-l string   log level
//	-b string   S3 bucket for request images
//	-e string   S3 endpoint
//	-n string   notifier: log or smtp
//
// Only the flags above are picked out of args, so flags meant for other
// components do not make parsing fail.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the http server")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "address and port of the grpc health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Store, "m", config.Store, "store kind (postgres|memory)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenTTL := fs.Int("t", int(config.TokenTTL.Minutes()), "session token validity (in minutes)")
	otpTTL := fs.Int("o", int(config.OTPTTL.Minutes()), "one-time code validity (in minutes)")

	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "S3 endpoint")
	fs.StringVar(&config.Notifier, "n", config.Notifier, "notifier (log|smtp)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// sub-minute values from earlier layers survive unless the flag is given
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenTTL = time.Duration(*tokenTTL) * time.Minute
		case "o":
			config.OTPTTL = time.Duration(*otpTTL) * time.Minute
		}
	})
	return nil
}
