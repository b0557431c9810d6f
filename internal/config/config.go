package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds everything the pipeline needs from the environment:
// collaborator endpoints/credentials, the remote table field ids for the two
// line-item channels, object-type ids for reference enrichment, and the
// dispatch settings.
type Config struct {
	APIBaseURL string
	APIToken   string

	TableFieldIDInternal string
	TableFieldIDExternal string

	Objects ObjectIDs

	SMTP SMTPConfig

	// BaseRecipients always receive the rendered document, in addition to
	// recipients resolved from the record itself.
	BaseRecipients []string

	// MappingFile optionally overrides the built-in channel field mappings.
	MappingFile string

	// LogoPath is the logo asset drawn on rendered documents; rendering
	// falls back to a text title when the asset is missing.
	LogoPath string
}

// ObjectIDs are the directory object-type ids used to scope enrichment
// lookups.
type ObjectIDs struct {
	Department string
	Project    string
	Supplier   string
	Receiving  string
	BillTo     string
}

// SMTPConfig is the dispatch transport configuration. A missing Host means
// dispatch is skipped.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
}

func New() (*Config, error) {
	baseURL := os.Getenv("ACE_API_BASE_URL")
	token := os.Getenv("ACE_API_TOKEN")
	if baseURL == "" || token == "" {
		return nil, fmt.Errorf("ACE_API_BASE_URL and ACE_API_TOKEN environment variables must be set")
	}

	internalID := os.Getenv("TABLE_FIELD_ID_INTERNAL")
	externalID := os.Getenv("TABLE_FIELD_ID_EXTERNAL")
	if internalID == "" || externalID == "" {
		return nil, fmt.Errorf("TABLE_FIELD_ID_INTERNAL and TABLE_FIELD_ID_EXTERNAL environment variables must be set")
	}

	cfg := &Config{
		APIBaseURL:           strings.TrimRight(baseURL, "/"),
		APIToken:             token,
		TableFieldIDInternal: internalID,
		TableFieldIDExternal: externalID,
		Objects: ObjectIDs{
			Department: getEnv("OBJECT_ID_DEPARTMENT", "37"),
			Project:    getEnv("OBJECT_ID_PROJECT", "54"),
			Supplier:   getEnv("OBJECT_ID_SUPPLIER", "50"),
			Receiving:  getEnv("OBJECT_ID_RECEIVING", "51"),
			BillTo:     getEnv("OBJECT_ID_BILL_TO", "52"),
		},
		BaseRecipients: getEnvList("PO_RECIPIENTS"),
		MappingFile:    os.Getenv("FIELD_MAPPING_FILE"),
		LogoPath:       getEnv("LOGO_PATH", "logo.png"),
	}

	port, err := getEnvAsInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	cfg.SMTP = SMTPConfig{
		Host: os.Getenv("SMTP_HOST"),
		Port: port,
		User: os.Getenv("SMTP_USER"),
		Pass: os.Getenv("SMTP_PASS"),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}
