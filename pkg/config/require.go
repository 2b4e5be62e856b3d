package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, missing("DATABASE_URL"))
	}
	if len(c.JWTAccessSecret) == 0 {
		errs = append(errs, missing("JWT_SECRET"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort))
	}
	if c.ESURL != "" && strings.TrimSpace(c.ESIndex) == "" {
		errs = append(errs, missing("ES_INDEX"))
	}
	return errors.Join(errs...)
}

func missing(envName string) error {
	return fmt.Errorf("missing required env %s", envName)
}
