package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpetok/bpetok"
	"github.com/bpetok/internal/config"
)

// trainSettings resolves flags against an optional profile. A flag the user set wins over the
// profile, and the profile wins over the flag default (which already reflects the environment).
func trainSettings(cmd *cobra.Command) (corpus, output string, opts bpetok.TrainOptions, err error) {
	flags := cmd.Flags()
	corpus, _ = flags.GetString("corpus")
	output, _ = flags.GetString("output")
	opts.VocabSize, _ = flags.GetInt("vocab-size")
	opts.MaxMerges, _ = flags.GetInt("max-merges")
	opts.AttachEndOfWord, _ = flags.GetBool("attach-eow")
	opts.Normalize, _ = flags.GetBool("normalize")

	path, _ := flags.GetString("config")
	if path == "" {
		return corpus, output, opts, nil
	}

	profile, err := config.Load(path)
	if err != nil {
		return "", "", opts, err
	}

	if profile.Corpus != "" && !flags.Changed("corpus") {
		corpus = profile.Corpus
	}
	if profile.Output != "" && !flags.Changed("output") {
		output = profile.Output
	}
	if profile.VocabSize > 0 && !flags.Changed("vocab-size") {
		opts.VocabSize = profile.VocabSize
	}
	if profile.MaxMerges > 0 && !flags.Changed("max-merges") {
		opts.MaxMerges = profile.MaxMerges
	}
	if profile.AttachEndOfWord && !flags.Changed("attach-eow") {
		opts.AttachEndOfWord = true
	}
	if profile.Normalize && !flags.Changed("normalize") {
		opts.Normalize = true
	}

	return corpus, output, opts, nil
}

func TrainHandler(cmd *cobra.Command, args []string) error {
	corpus, output, opts, err := trainSettings(cmd)
	if err != nil {
		return err
	}
	if corpus == "" {
		return errors.New("no training corpus: use --corpus or set corpus in the --config profile")
	}
	if opts.VocabSize <= 0 {
		return fmt.Errorf("vocab size must be greater than zero, got %d", opts.VocabSize)
	}
	if opts.MaxMerges < 0 {
		return fmt.Errorf("max merges must not be negative, got %d", opts.MaxMerges)
	}

	slog.Debug("training", "corpus", corpus, "output", output, "vocab_size", opts.VocabSize,
		"max_merges", opts.MaxMerges, "attach_eow", opts.AttachEndOfWord, "normalize", opts.Normalize)

	start := time.Now()
	tok, res, err := bpetok.TrainFile(cmd.Context(), corpus, opts)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := tok.SaveFile(output); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model saved to %s\n", output)
	fmt.Fprintf(out, "Final vocabulary size: %d (requested %d)\n", res.VocabSize, res.Requested)
	fmt.Fprintf(out, "Number of merges learned: %d\n", res.Merges)
	if res.State == bpetok.StateExhausted {
		fmt.Fprintf(out, "No more valid merges available; stopped short of the requested size\n")
	}
	fmt.Fprintf(out, "Training took %s\n", elapsed.Round(time.Millisecond))

	return nil
}
