package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// chunkNamespace scopes the UUIDs derived from chunk ids.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pdf-rag/chunk"))

// InitLogger configures the global zerolog logger for the CLIs.
func InitLogger(level string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// UUIDFromKey derives a stable UUID string from an arbitrary key
func UUIDFromKey(key string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// pretty print
func PrettyPrint(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// CreateFolder creates the folder and any missing parents
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}
