// Package config loads the scan API's process configuration from
// environment variables via koanf's env provider, narrowed to env-only
// since this service has no config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
)

// Config holds every value required at process startup.
type Config struct {
	// PublicBaseURL is prefixed onto worker-fetch image URLs (PAM_BASE_URL).
	PublicBaseURL string `koanf:"pam_base_url" validate:"required,url"`

	// DBAPIURL is the base URL of the external Database API (DB_API_URL).
	DBAPIURL string `koanf:"db_api_url" validate:"required,url"`

	// DBAPIKey is the long-lived key used to mint bearer tokens (PAM_AUTH_TOKEN).
	DBAPIKey string `koanf:"pam_auth_token" validate:"required"`

	S3AccessKeyID string `koanf:"s3accesskeyid" validate:"required"`
	S3AccessKey   string `koanf:"s3accesskey" validate:"required"`
	S3Bucket      string `koanf:"s3bucket" validate:"required"`
	S3URL         string `koanf:"s3url" validate:"required"`
	// S3Region is the only variable allowed to be empty (warning only).
	S3Region string `koanf:"s3region"`

	AWSAccessKeyID     string `koanf:"aws_access_key_id" validate:"required"`
	AWSSecretAccessKey string `koanf:"aws_secret_access_key" validate:"required"`
	AWSDefaultRegion   string `koanf:"aws_default_region" validate:"required"`
	SQSQueueURL        string `koanf:"aws_sqs_queue_url_0" validate:"required"`

	// Port is the HTTP listen port (SCAN_API_PORT), default 8080.
	Port int `koanf:"scan_api_port"`

	// CredentialRefreshInterval is how often the credential cache refresh
	// loop re-logs-in against the Database API. Defaults to about an hour.
	CredentialRefreshInterval time.Duration

	// CoordinatorPollAttempts/PollInterval are the coordinator's bounded
	// wait-for-result budget. Defaults to 10 attempts, 450ms apart.
	CoordinatorPollAttempts int
	CoordinatorPollInterval time.Duration

	// WorkerLeaseAttempts/LeaseInterval bound get_work's queue-drain loop.
	// Defaults to 50 attempts, 100ms apart.
	WorkerLeaseAttempts  int
	WorkerLeaseInterval  time.Duration
	CredentialRetryTries int
	CredentialRetryDelay time.Duration
}

// envNameByField maps each validated struct field to the environment
// variable name an operator sets it with, so a validation failure can be
// reported in terms the operator actually typed.
var envNameByField = map[string]string{
	"PublicBaseURL":      "PAM_BASE_URL",
	"DBAPIURL":           "DB_API_URL",
	"DBAPIKey":           "PAM_AUTH_TOKEN",
	"S3AccessKeyID":      "S3AccessKeyId",
	"S3AccessKey":        "S3AccessKey",
	"S3Bucket":           "S3Bucket",
	"S3URL":              "S3Url",
	"AWSAccessKeyID":     "AWS_ACCESS_KEY_ID",
	"AWSSecretAccessKey": "AWS_SECRET_ACCESS_KEY",
	"AWSDefaultRegion":   "AWS_DEFAULT_REGION",
	"SQSQueueURL":        "AWS_SQS_QUEUE_URL_0",
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Load reads configuration from the process environment. It returns an
// error naming every invalid or missing required variable; it never
// partially populates Config on failure.
func Load() (*Config, error) {
	k := koanf.New(".")

	// koanf's env provider lower-cases keys as it loads them, so struct
	// tags above are lowercase to match.
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	if k.String("s3region") == "" {
		logging.Warn().Msg("S3Region is not set; falling back to the object store client's default region resolution")
	}

	cfg := &Config{
		PublicBaseURL:             k.String("pam_base_url"),
		DBAPIURL:                  k.String("db_api_url"),
		DBAPIKey:                  k.String("pam_auth_token"),
		S3AccessKeyID:             k.String("s3accesskeyid"),
		S3AccessKey:               k.String("s3accesskey"),
		S3Bucket:                  k.String("s3bucket"),
		S3URL:                     k.String("s3url"),
		S3Region:                  k.String("s3region"),
		AWSAccessKeyID:            k.String("aws_access_key_id"),
		AWSSecretAccessKey:        k.String("aws_secret_access_key"),
		AWSDefaultRegion:          k.String("aws_default_region"),
		SQSQueueURL:               k.String("aws_sqs_queue_url_0"),
		Port:                      k.Int("scan_api_port"),
		CredentialRefreshInterval: time.Hour,
		CoordinatorPollAttempts:   10,
		CoordinatorPollInterval:   450 * time.Millisecond,
		WorkerLeaseAttempts:       50,
		WorkerLeaseInterval:       100 * time.Millisecond,
		CredentialRetryTries:      100,
		CredentialRetryDelay:      30 * time.Millisecond,
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	if err := getValidator().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("config: validating: %w", err)
		}
		names := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			if name, ok := envNameByField[fe.Field()]; ok {
				names = append(names, name)
			} else {
				names = append(names, fe.Field())
			}
		}
		return nil, fmt.Errorf("config: invalid or missing environment variables: %s", strings.Join(names, ", "))
	}

	return cfg, nil
}
