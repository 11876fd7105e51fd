package tools

import (
	"fmt"
	"io"
	"os"

	"github.com/firebase/genkit/go/ai"
)

// MaxReadFileSize caps read_file at 256 KB so a stray binary or log file
// cannot blow out the model context.
const MaxReadFileSize = 256 * 1024

// ReadFileInput identifies the file to read.
type ReadFileInput struct {
	Path string `json:"path" jsonschema_description:"Absolute or relative path to the file"`
}

// ReadFile reads one text file after path validation. Expected failures
// (missing file, denied path, oversized file) come back as error payloads
// the model can act on.
func (k *Kit) ReadFile(_ *ai.ToolContext, input ReadFileInput) (string, error) {
	safePath, err := k.pathVal.Validate(input.Path)
	if err != nil {
		k.logger.Warn("read_file path rejected", "path", input.Path, "error", err)
		return toJSON(map[string]string{
			"error": fmt.Sprintf("Path not allowed: %s", input.Path),
		}), nil
	}

	file, err := os.Open(safePath) // #nosec G304 -- validated above
	if err != nil {
		if os.IsNotExist(err) {
			return toJSON(map[string]string{
				"error": fmt.Sprintf("File does not exist: %s", safePath),
			}), nil
		}
		return toJSON(map[string]string{
			"error": fmt.Sprintf("Could not open file: %v", err),
		}), nil
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		return toJSON(map[string]string{
			"error": fmt.Sprintf("Could not stat file: %v", err),
		}), nil
	}
	if info.IsDir() {
		return toJSON(map[string]string{
			"error": fmt.Sprintf("Path is not a file: %s", safePath),
		}), nil
	}
	if info.Size() > MaxReadFileSize {
		return toJSON(map[string]any{
			"error":      fmt.Sprintf("File too large (%d bytes). Max allowed: %d bytes.", info.Size(), MaxReadFileSize),
			"suggestion": "Try reading a specific section or a smaller file.",
		}), nil
	}

	content, err := io.ReadAll(io.LimitReader(file, MaxReadFileSize))
	if err != nil {
		return toJSON(map[string]string{
			"error": fmt.Sprintf("Could not read file: %v", err),
		}), nil
	}

	return toJSON(map[string]any{
		"file":    safePath,
		"size":    info.Size(),
		"content": string(content),
	}), nil
}
