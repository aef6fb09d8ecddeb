// Package config defines the import job configuration and its
// validation rules.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding with a JSON-path-ish locator.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// Job is the top-level configuration decoded from a JSON file.
type Job struct {
	// Name tags logs and metrics for this run.
	Name string `json:"name"`

	Input   Input   `json:"input"`
	Storage Storage `json:"storage"`
}

// Input selects what gets imported.
type Input struct {
	// Dir is scanned non-recursively for candidate files.
	Dir string `json:"dir"`

	// File imports a single file instead of a directory. Exactly one
	// of Dir or File must be set.
	File string `json:"file"`

	// Extension filters directory entries; defaults to ".json".
	Extension string `json:"extension"`
}

// Storage selects the backend and how to reach it. DSN wins when both
// DSN and Connection are present.
type Storage struct {
	// Kind is a registered backend name: mysql, postgres, sqlite, mssql.
	Kind string `json:"kind"`

	DSN        string      `json:"dsn"`
	Connection *Connection `json:"connection"`
}

// Connection holds discrete connection parameters for callers that do
// not want to hand-build a DSN.
type Connection struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`

	// ConnectTimeoutSeconds bounds the initial dial. Zero means the
	// driver default.
	ConnectTimeoutSeconds int `json:"connect_timeout_seconds"`
}

var defaultPorts = map[string]int{
	"mysql":    3306,
	"postgres": 5432,
	"mssql":    1433,
}

// ResolveDSN returns the DSN for the configured backend, building one
// from Connection parameters when no explicit DSN is given.
func (s Storage) ResolveDSN() (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}
	if s.Connection == nil {
		return "", fmt.Errorf("storage: neither dsn nor connection set")
	}
	return s.Connection.DSN(s.Kind)
}

// DSN renders the parameters in the form the backend's driver expects.
func (c Connection) DSN(kind string) (string, error) {
	port := c.Port
	if port == 0 {
		port = defaultPorts[kind]
	}

	switch kind {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, port, c.Database)
		if c.ConnectTimeoutSeconds > 0 {
			dsn += fmt.Sprintf("&timeout=%s", time.Duration(c.ConnectTimeoutSeconds)*time.Second)
		}
		return dsn, nil

	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, port),
			Path:   "/" + c.Database,
		}
		q := url.Values{}
		if c.ConnectTimeoutSeconds > 0 {
			q.Set("connect_timeout", fmt.Sprintf("%d", c.ConnectTimeoutSeconds))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil

	case "mssql":
		u := url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, port),
		}
		q := url.Values{}
		q.Set("database", c.Database)
		if c.ConnectTimeoutSeconds > 0 {
			q.Set("dial timeout", fmt.Sprintf("%d", c.ConnectTimeoutSeconds))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil

	case "sqlite":
		// sqlite takes a file path, not host parameters.
		if c.Database == "" {
			return "", fmt.Errorf("sqlite: connection.database must be the database file path")
		}
		return c.Database, nil

	default:
		return "", fmt.Errorf("unknown storage kind %q", kind)
	}
}

var knownKinds = map[string]bool{
	"mysql":    true,
	"postgres": true,
	"sqlite":   true,
	"mssql":    true,
}

// Validate reports configuration problems. Callers treat any
// SeverityError issue as fatal; warnings are advisory.
func Validate(j Job) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if j.Name == "" {
		add(SeverityWarning, "name", "empty job name; logs and metrics use the default")
	}

	switch {
	case j.Input.Dir == "" && j.Input.File == "":
		add(SeverityError, "input", "one of dir or file must be set")
	case j.Input.Dir != "" && j.Input.File != "":
		add(SeverityError, "input", "dir and file are mutually exclusive")
	}
	if ext := j.Input.Extension; ext != "" && !strings.HasPrefix(ext, ".") {
		add(SeverityError, "input.extension", "extension must start with a dot, got %q", ext)
	}

	if j.Storage.Kind == "" {
		add(SeverityError, "storage.kind", "storage kind is required")
	} else if !knownKinds[j.Storage.Kind] {
		add(SeverityError, "storage.kind", "unknown storage kind %q", j.Storage.Kind)
	}

	if j.Storage.DSN == "" && j.Storage.Connection == nil {
		add(SeverityError, "storage", "one of dsn or connection must be set")
	}
	if j.Storage.DSN != "" && j.Storage.Connection != nil {
		add(SeverityWarning, "storage", "both dsn and connection set; dsn wins")
	}
	if c := j.Storage.Connection; c != nil && j.Storage.DSN == "" {
		if j.Storage.Kind == "sqlite" {
			if c.Database == "" {
				add(SeverityError, "storage.connection.database", "sqlite requires the database file path")
			}
		} else {
			if c.Host == "" {
				add(SeverityError, "storage.connection.host", "host is required")
			}
			if c.Database == "" {
				add(SeverityError, "storage.connection.database", "database is required")
			}
			if c.Port < 0 || c.Port > 65535 {
				add(SeverityError, "storage.connection.port", "port %d out of range", c.Port)
			}
		}
	}

	return issues
}
