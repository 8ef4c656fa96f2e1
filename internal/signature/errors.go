package signature

import "fmt"

type schemeError struct {
	scheme string
}

func (e *schemeError) Error() string {
	return fmt.Sprintf("signature: unsupported scheme %q", e.scheme)
}

func unknownScheme(scheme any) error {
	return &schemeError{scheme: fmt.Sprintf("%v", scheme)}
}
