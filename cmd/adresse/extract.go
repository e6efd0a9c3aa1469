package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"adresse/internal/chunker"
	"adresse/internal/domain"
)

var (
	extractFile  string
	extractLines bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [sentence...]",
	Short: "Extract the address of one or more sentences",
	Long: `Extract the address of each sentence and print one JSON object per line.

Examples:
  # A single sentence
  adresse extract "J'habite au 39 place des martyrs à Lyon"

  # Every sentence of a text file
  adresse extract --file notes.txt

  # One sentence per line, from stdin
  cat phrases.txt | adresse extract --file - --lines`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "read sentences from a file (- for stdin)")
	extractCmd.Flags().BoolVar(&extractLines, "lines", false, "treat each line of --file as one sentence")
}

type extractOutput struct {
	Sentence string                   `json:"sentence"`
	Result   *domain.ExtractionResult `json:"result,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	sentences, err := collectSentences(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if len(sentences) == 0 {
		return errors.New("no sentence given")
	}

	a, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	failed := 0
	for _, item := range a.Service.ExtractBatch(cmd.Context(), sentences) {
		out := extractOutput{Sentence: item.Sentence}
		if item.Err != nil {
			out.Error = item.Err.Error()
			failed++
		} else {
			res := item.Result
			out.Result = &res
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(sentences))
	}
	return nil
}

func collectSentences(stdin io.Reader, args []string) ([]string, error) {
	if extractFile == "" {
		if len(args) == 0 {
			return nil, nil
		}
		return []string{strings.Join(args, " ")}, nil
	}
	var (
		data []byte
		err  error
	)
	if extractFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(extractFile)
	}
	if err != nil {
		return nil, fmt.Errorf("read sentences: %w", err)
	}
	if extractLines {
		return chunker.Lines(string(data)), nil
	}
	return chunker.NewSentenceSplitter().Split(string(data)), nil
}
