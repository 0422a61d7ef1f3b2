package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/viper"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry represents a single configuration default.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// Released app ids on the generation service.
var defaultOperationIDs = map[string]string{
	OpCompendio:     "ac114c48-be3a-4ab5-98ee-02a7d11c8dd7",
	OpProjectBrief:  "b198e35c-9089-4dc4-a281-92bbb04d7528",
	OpReferences:    "da1c1988-c58f-4574-be2c-822cd743179c",
	OpCitations:     "d5202c5b-316c-466e-a85a-3d2e3d7fe405",
	OpTables:        "3311cdd6-39ed-47bc-9173-c2de11afe82a",
	OpMappingLogic:  "c36eb029-1b08-4337-af35-4df4be3bef38",
	OpThemeSelector: "a9ba5428-5286-46f3-b3ca-1ba824c686d9",
	OpChapter:       "75ad4354-dd42-406e-be67-67073b3b82a2",
	OpAssembly:      "660116bf-1f90-496b-aa12-d357044867ef",
}

// DefaultEntries returns the default configuration entries.
// They seed viper defaults and back `config show`.
func DefaultEntries() []Entry {
	entries := []Entry{
		// ===================
		// Generation service
		// ===================
		{
			Key:         "service.base_url",
			Value:       "https://app.wordware.ai/api/released-app",
			Description: "Base URL of the released-app API; jobs POST to {base_url}/{id}/run",
		},
		{
			Key:         "service.api_key",
			Value:       "${WORDWARE_API_KEY}",
			Description: "Bearer token for the generation service (uses environment variable)",
		},
		{
			Key:         "service.read_timeout_seconds",
			Value:       300,
			Description: "Maximum silence on an event stream before the job fails",
		},

		// ===================
		// Upload chain
		// ===================
		{
			Key:         "upload.timeout_seconds",
			Value:       60,
			Description: "HTTP timeout in seconds for a single upload attempt",
		},
		{
			Key:         "upload.backends",
			Value:       []string{"0x0", "catbox", "tmpfiles"},
			Description: "Upload backends in fallback order (0x0, catbox, tmpfiles, s3)",
		},
		{
			Key:         "upload.endpoints.0x0",
			Value:       "https://0x0.st",
			Description: "Upload URL for 0x0.st",
		},
		{
			Key:         "upload.endpoints.catbox",
			Value:       "https://catbox.moe/user/api.php",
			Description: "Upload URL for catbox.moe",
		},
		{
			Key:         "upload.endpoints.tmpfiles",
			Value:       "https://tmpfiles.org/api/v1/upload",
			Description: "Upload URL for tmpfiles.org",
		},
		{
			Key:         "upload.s3.endpoint",
			Value:       "",
			Description: "S3-compatible endpoint host (enables the s3 backend when listed)",
		},
		{
			Key:         "upload.s3.bucket",
			Value:       "",
			Description: "Bucket receiving uploaded source documents",
		},
		{
			Key:         "upload.s3.region",
			Value:       "",
			Description: "Bucket region",
		},
		{
			Key:         "upload.s3.access_key",
			Value:       "${S3_ACCESS_KEY}",
			Description: "S3 access key (uses environment variable)",
		},
		{
			Key:         "upload.s3.secret_key",
			Value:       "${S3_SECRET_KEY}",
			Description: "S3 secret key (uses environment variable)",
		},
		{
			Key:         "upload.s3.use_ssl",
			Value:       true,
			Description: "Use TLS when talking to the S3 endpoint",
		},
		{
			Key:         "upload.s3.public_url",
			Value:       "",
			Description: "Public base URL for objects; presigned URLs are used when empty",
		},
		{
			Key:         "upload.s3.presign_seconds",
			Value:       3600,
			Description: "Lifetime of presigned object URLs",
		},

		// ===================
		// Run defaults
		// ===================
		{
			Key:         "defaults.max_concurrency",
			Value:       3,
			Description: "Concurrent extraction jobs during ingestion",
		},
		{
			Key:         "defaults.reference_count",
			Value:       25,
			Description: "Default number of references requested for the skeleton (1-50)",
		},
		{
			Key:         "defaults.page_count",
			Value:       "40-50",
			Description: "Default page count range for the skeleton",
		},
	}

	for _, name := range OperationNames {
		entries = append(entries, Entry{
			Key:         "operations." + name + ".id",
			Value:       defaultOperationIDs[name],
			Description: "Released app id for " + name,
		})
	}
	return entries
}

// seedDefaults registers every default entry with v.
func seedDefaults(v *viper.Viper) {
	for _, entry := range DefaultEntries() {
		v.SetDefault(entry.Key, entry.Value)
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// KeysWithPrefix returns the sorted default keys under prefix.
func KeysWithPrefix(prefix string) []string {
	var keys []string
	for _, entry := range DefaultEntries() {
		if strings.HasPrefix(entry.Key, prefix) {
			keys = append(keys, entry.Key)
		}
	}
	sort.Strings(keys)
	return keys
}
