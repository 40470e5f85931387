package session

import "fmt"

// ConfigError reports a session that can't be set up with the given options or engine
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Msg, e.Err)
	}
	return "config error: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RegistrationError reports a failed virtual table registration
type RegistrationError struct {
	Table string
	Err   error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("can't register virtual table %q: %v", e.Table, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// QueryError reports a failed statement
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.SQL, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
