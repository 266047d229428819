package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/mvoronin/promptstash/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      session validity, minutes
//	-l int      login-as token validity, minutes
//	-j int      API token validity, minutes
//	-w int      trial duration, hours
//	-r string   comma-separated lapsed-membership allow-list
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-l", "-j", "-w", "-r", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session validity (in minutes)")
	loginTokenValidity := fs.Int("l", int(config.LoginTokenValidityDuration.Minutes()), "login-as token validity (in minutes)")
	apiTokenValidity := fs.Int("j", int(config.APITokenValidityDuration.Minutes()), "api token validity (in minutes)")
	trialDuration := fs.Int("w", int(config.TrialDuration.Hours()), "trial duration (in hours)")

	lapsedRoutes := fs.String("r", strings.Join(config.LapsedAllowedRoutes, ","), "routes allowed while membership lapsed (comma-separated)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
	config.LoginTokenValidityDuration = time.Duration(*loginTokenValidity) * time.Minute
	config.APITokenValidityDuration = time.Duration(*apiTokenValidity) * time.Minute
	config.TrialDuration = time.Duration(*trialDuration) * time.Hour

	if *lapsedRoutes == "" {
		config.LapsedAllowedRoutes = nil
	} else {
		config.LapsedAllowedRoutes = strings.Split(*lapsedRoutes, ",")
	}
}
