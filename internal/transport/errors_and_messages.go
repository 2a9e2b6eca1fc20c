package transport

import (
	"errors"
	"fmt"
)

const (
	logMsgUsingProxy     = "Using proxy server at %s"
	logMsgNTLMEnabled    = "NTLM proxy authentication enabled"
	logMsgUsingOriginDir = "Serving origin content from directory %s"
	logMsgUsingOriginURI = "Using origin at %s"
)

var (
	errNoOrigin               = errors.New("no origin URI or directory was configured")
	errNTLMWithoutProxyURL    = errors.New("cannot specify proxy authentication without a proxy URL")
	errNTLMWithoutCredentials = errors.New("NTLM proxy authentication requires username and password")
)

func errCannotConfigureTransport(err error) error {
	return fmt.Errorf("unable to configure origin transport: %w", err)
}

func errBadOriginDir(dir string, err error) error {
	return fmt.Errorf("origin directory %s is not usable: %w", dir, err)
}
