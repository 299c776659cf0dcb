package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrorType classifies configuration failures.
type ErrorType string

const (
	ErrDotenv     ErrorType = "DOTENV"
	ErrParsing    ErrorType = "PARSING"
	ErrValidation ErrorType = "VALIDATION"
)

// Error describes why configuration could not be loaded.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads dotenv files (".env" when none are given), then the
// environment, and validates the result. Variables already set in the
// environment win over dotenv values. A missing dotenv file is not an error.
func Load(dotenvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &Error{Type: ErrDotenv, Message: "failed to read dotenv file", Err: err}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &Error{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &Error{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	return &cfg, nil
}
