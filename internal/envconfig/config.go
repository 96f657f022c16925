package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bpetok/internal/logutil"
)

const (
	defaultVocabSize = 1000
	defaultModel     = "bpe_model.txt"
)

var (
	// Set via BPETOK_DEBUG in the environment
	LogLevel slog.Level
	// Set via BPETOK_VOCAB_SIZE in the environment
	VocabSize int
	// Set via BPETOK_MODEL in the environment
	Model string
	// Set via BPETOK_OOV in the environment
	OOV string
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"BPETOK_DEBUG":      {"BPETOK_DEBUG", LogLevel, "Show additional debug information (e.g. BPETOK_DEBUG=1, BPETOK_DEBUG=2 for per-merge traces)"},
		"BPETOK_VOCAB_SIZE": {"BPETOK_VOCAB_SIZE", VocabSize, fmt.Sprintf("Target vocabulary size for training (default %d)", defaultVocabSize)},
		"BPETOK_MODEL":      {"BPETOK_MODEL", Model, fmt.Sprintf("Model file to write or read (default %q)", defaultModel)},
		"BPETOK_OOV":        {"BPETOK_OOV", OOV, "Encoder policy for unseen characters: extend or reject (default \"extend\")"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

// LoadConfig (re)reads every BPETOK_* variable. Invalid values are logged and replaced by the default.
func LoadConfig() {
	LogLevel = slog.LevelInfo
	VocabSize = defaultVocabSize
	Model = defaultModel
	OOV = "extend"

	if debug := clean("BPETOK_DEBUG"); debug != "" {
		switch n, err := strconv.Atoi(debug); {
		case err == nil && n >= 2:
			LogLevel = logutil.LevelTrace
		case err == nil && n == 1:
			LogLevel = slog.LevelDebug
		case err == nil:
		default:
			if b, err := strconv.ParseBool(debug); err != nil || b {
				LogLevel = slog.LevelDebug
			}
		}
	}

	if vs := clean("BPETOK_VOCAB_SIZE"); vs != "" {
		n, err := strconv.Atoi(vs)
		if err != nil || n <= 0 {
			slog.Error("invalid setting must be greater than zero", "BPETOK_VOCAB_SIZE", vs, "error", err)
		} else {
			VocabSize = n
		}
	}

	if m := clean("BPETOK_MODEL"); m != "" {
		Model = m
	}

	if oov := clean("BPETOK_OOV"); oov != "" {
		switch strings.ToLower(oov) {
		case "extend", "reject":
			OOV = strings.ToLower(oov)
		default:
			slog.Error("invalid setting, ignoring", "BPETOK_OOV", oov)
		}
	}
}
