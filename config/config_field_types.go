package config

import (
	"crypto/tls"
	"fmt"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// OptLogLevel represents an optional log level parameter. It must match one of the level names "debug",
// "info", "warn", "error", or "none" (case-insensitive).
//
// The zero value OptLogLevel{} is valid and undefined (IsDefined() is false).
type OptLogLevel struct {
	level ldlog.LogLevel
}

// NewOptLogLevel creates an OptLogLevel that wraps the given value.
func NewOptLogLevel(level ldlog.LogLevel) OptLogLevel {
	return OptLogLevel{level: level}
}

// NewOptLogLevelFromString creates an OptLogLevel from a string that must either be a valid log level
// name or an empty string.
func NewOptLogLevelFromString(levelName string) (OptLogLevel, error) {
	if levelName == "" {
		return OptLogLevel{}, nil
	}
	for _, level := range []ldlog.LogLevel{ldlog.Debug, ldlog.Info, ldlog.Warn, ldlog.Error, ldlog.None} {
		if strings.EqualFold(level.Name(), levelName) {
			return NewOptLogLevel(level), nil
		}
	}
	return OptLogLevel{}, errBadLogLevel(levelName)
}

// IsDefined returns true if the instance contains a value.
func (o OptLogLevel) IsDefined() bool {
	return o.level != 0
}

// GetOrElse returns the wrapped value, or the alternative value if there is no value.
func (o OptLogLevel) GetOrElse(orElseValue ldlog.LogLevel) ldlog.LogLevel {
	if o.level == 0 {
		return orElseValue
	}
	return o.level
}

// String returns the level name, or "" if undefined.
func (o OptLogLevel) String() string {
	if o.level == 0 {
		return ""
	}
	return o.level.Name()
}

// UnmarshalText attempts to parse the value from a byte string, using the same logic as
// NewOptLogLevelFromString.
func (o *OptLogLevel) UnmarshalText(data []byte) error {
	opt, err := NewOptLogLevelFromString(string(data))
	if err == nil {
		*o = opt
	}
	return err
}

func errBadLogLevel(s string) error {
	return fmt.Errorf("%q is not a valid log level", s)
}

// OptTLSVersion represents an optional minimum TLS version: "1.0", "1.1", "1.2", or "1.3".
//
// The zero value OptTLSVersion{} is valid and undefined (IsDefined() is false).
type OptTLSVersion struct {
	value uint16
}

var tlsVersionNames = map[uint16]string{ //nolint:gochecknoglobals
	tls.VersionTLS10: "1.0",
	tls.VersionTLS11: "1.1",
	tls.VersionTLS12: "1.2",
	tls.VersionTLS13: "1.3",
}

// NewOptTLSVersion creates an OptTLSVersion that wraps one of the crypto/tls version constants.
func NewOptTLSVersion(value uint16) OptTLSVersion {
	return OptTLSVersion{value: value}
}

// NewOptTLSVersionFromString creates an OptTLSVersion from a version name, or an empty string.
func NewOptTLSVersionFromString(name string) (OptTLSVersion, error) {
	if name == "" {
		return OptTLSVersion{}, nil
	}
	for value, n := range tlsVersionNames {
		if n == name {
			return NewOptTLSVersion(value), nil
		}
	}
	return OptTLSVersion{}, errBadTLSVersion(name)
}

// IsDefined returns true if the instance contains a value.
func (o OptTLSVersion) IsDefined() bool {
	return o.value != 0
}

// Get returns the wrapped value, or zero if undefined.
func (o OptTLSVersion) Get() uint16 {
	return o.value
}

// String returns the version name, or "" if undefined.
func (o OptTLSVersion) String() string {
	return tlsVersionNames[o.value]
}

// UnmarshalText attempts to parse the value from a byte string, using the same logic as
// NewOptTLSVersionFromString.
func (o *OptTLSVersion) UnmarshalText(data []byte) error {
	opt, err := NewOptTLSVersionFromString(string(data))
	if err == nil {
		*o = opt
	}
	return err
}

func errBadTLSVersion(s string) error {
	return fmt.Errorf("%q is not a valid TLS version", s)
}

func mustOptIntGreaterThanZero(n int) ct.OptIntGreaterThanZero {
	o, err := ct.NewOptIntGreaterThanZero(n)
	if err != nil {
		panic(err)
	}
	return o
}
