package ai

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed prompts/*.txt
var embedded embed.FS

// Prompt file names, shared by the embedded set and override directories.
const (
	SummaryPromptFile = "transcript-summary.txt"
	ScoresPromptFile  = "detailed-scores.txt"
	NaivePromptFile   = "naive-score.txt"
)

// Prompts are the system instructions of the three analyses.
type Prompts struct {
	Summary string
	Scores  string
	Naive   string
}

// LoadPrompts reads the prompts from dir, or the built-in set when dir is
// empty. A file missing from dir falls back to its built-in version.
func LoadPrompts(dir string) (Prompts, error) {
	var p Prompts
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{SummaryPromptFile, &p.Summary},
		{ScoresPromptFile, &p.Scores},
		{NaivePromptFile, &p.Naive},
	} {
		text, err := readPrompt(dir, f.name)
		if err != nil {
			return Prompts{}, err
		}
		*f.dst = text
	}
	return p, nil
}

func readPrompt(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}
	data, err := embedded.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("read built-in prompt %s: %w", name, err)
	}
	return string(data), nil
}
