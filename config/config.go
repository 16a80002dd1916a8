package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"markmailer/core/sheet"
)

// Config is the validated form of the configuration document.
type Config struct {
	// Assignment names the assessed work; it prefixes every output filename.
	Assignment  string      `json:"assignment"`
	Coordinator Coordinator `json:"coordinator"`
	// Header and Footer are content lines placed above and below the
	// document body.
	Header []string `json:"header"`
	Footer []string `json:"footer"`
	// MaxMarksRow is the 1-based spreadsheet row holding the denominator
	// for each scored criterion.
	MaxMarksRow int        `json:"maxMarksRow"`
	Columns     Columns    `json:"columns"`
	SMTP        SMTPConfig `json:"smtp"`
	Mail        MailConfig `json:"mail"`
}

// Coordinator identifies the person responsible for the assignment.
type Coordinator struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Columns maps logical fields to spreadsheet column references ("A", "AB").
type Columns struct {
	StudentNumber string `json:"studentNumber"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	// Email is required only when mailing is enabled.
	Email    string      `json:"email"`
	Criteria []Criterion `json:"criteria"`
	Total    string      `json:"total"`
	Feedback string      `json:"feedback"`
}

// Criterion is one scored section of the assignment.
type Criterion struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

// SMTPConfig holds the outbound transport parameters.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// MailConfig holds the message template.
type MailConfig struct {
	Subject string   `json:"subject"`
	Body    []string `json:"body"`
}

// Load reads the configuration document at path. JSON and YAML are accepted,
// selected by extension, with optional MM_ environment overrides. Validation
// is separate because the required key set depends on the mail mode, which
// comes from the command line.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, mainly for the SMTP password.
	if err := k.Load(env.Provider("MM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "mm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every required key is present. Mail-related keys are
// required only when mailing is enabled. All missing keys are reported at
// once.
func (c *Config) Validate(mailEnabled bool) error {
	var missing []string
	require := func(ok bool, key string) {
		if !ok {
			missing = append(missing, key)
		}
	}
	require(c.Assignment != "", "assignment")
	require(c.Coordinator.Name != "", "coordinator.name")
	require(len(c.Header) > 0, "header")
	require(len(c.Footer) > 0, "footer")
	require(c.MaxMarksRow >= 1, "maxMarksRow")
	require(c.Columns.StudentNumber != "", "columns.studentNumber")
	require(c.Columns.FirstName != "", "columns.firstName")
	require(c.Columns.LastName != "", "columns.lastName")
	require(len(c.Columns.Criteria) > 0, "columns.criteria")
	require(c.Columns.Total != "", "columns.total")
	require(c.Columns.Feedback != "", "columns.feedback")
	for i, crit := range c.Columns.Criteria {
		require(crit.Name != "", fmt.Sprintf("columns.criteria[%d].name", i))
		require(crit.Column != "", fmt.Sprintf("columns.criteria[%d].column", i))
	}
	if mailEnabled {
		require(c.Coordinator.Email != "", "coordinator.email")
		require(c.Columns.Email != "", "columns.email")
		require(c.SMTP.Host != "", "smtp.host")
		require(c.SMTP.Port != 0, "smtp.port")
		require(c.SMTP.Username != "", "smtp.username")
		require(c.SMTP.Password != "", "smtp.password")
		require(c.Mail.Subject != "", "mail.subject")
		require(len(c.Mail.Body) > 0, "mail.body")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ResolveColumns converts every configured column reference to a cell index.
// A malformed reference is a configuration defect and fails the whole run.
func (c *Config) ResolveColumns(mailEnabled bool) (sheet.ColumnMap, error) {
	cols := sheet.ColumnMap{Email: -1}
	resolve := func(key, ref string, dst *int) error {
		idx, err := sheet.ColumnIndex(ref)
		if err != nil {
			return fmt.Errorf("columns.%s: %w", key, err)
		}
		*dst = idx
		return nil
	}
	if err := resolve("studentNumber", c.Columns.StudentNumber, &cols.StudentNumber); err != nil {
		return cols, err
	}
	if err := resolve("firstName", c.Columns.FirstName, &cols.FirstName); err != nil {
		return cols, err
	}
	if err := resolve("lastName", c.Columns.LastName, &cols.LastName); err != nil {
		return cols, err
	}
	if err := resolve("total", c.Columns.Total, &cols.Total); err != nil {
		return cols, err
	}
	if err := resolve("feedback", c.Columns.Feedback, &cols.Feedback); err != nil {
		return cols, err
	}
	if mailEnabled {
		if err := resolve("email", c.Columns.Email, &cols.Email); err != nil {
			return cols, err
		}
	}
	cols.Criteria = make([]int, len(c.Columns.Criteria))
	for i, crit := range c.Columns.Criteria {
		idx, err := sheet.ColumnIndex(crit.Column)
		if err != nil {
			return cols, fmt.Errorf("columns.criteria[%d]: %w", i, err)
		}
		cols.Criteria[i] = idx
	}
	return cols, nil
}
