package config

import (
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/md-rashed-zaman/slotbook/libs/errs"
)

// Load fills spec from the environment using its envconfig tags.
// Values shared by every environment belong in `default` tags; values that
// differ per deployment (DSNs, secrets) should be `required`.
func Load(spec any) error {
	if err := envconfig.Process("", spec); err != nil {
		return errs.Wrap(err, "process env config")
	}
	return nil
}

// ValidatePort checks that v is a usable TCP port; key is only used in the error.
func ValidatePort(key, v string) error {
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || p < 1 || p > 65535 {
		return errs.Newf("%s must be a valid TCP port (got %q)", key, v)
	}
	return nil
}
