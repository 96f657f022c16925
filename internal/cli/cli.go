package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bpetok/internal/envconfig"
	"github.com/bpetok/internal/logutil"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bpetok",
		Short: "Byte pair encoding tokenizer trainer",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			level := envconfig.LogLevel
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && level > slog.LevelDebug {
				level = slog.LevelDebug
			}
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), level))
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug logs")

	cobra.EnableCommandSorting = false

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Learn a merge list from a corpus",
		Args:  cobra.NoArgs,
		RunE:  TrainHandler,
	}

	trainCmd.Flags().String("corpus", "", "Training corpus, whitespace-separated words")
	trainCmd.Flags().StringP("output", "o", envconfig.Model, "Where to write the model")
	trainCmd.Flags().Int("vocab-size", envconfig.VocabSize, "Target vocabulary size, sentinels included")
	trainCmd.Flags().Int("max-merges", 0, "Stop after this many merges (0 for no limit)")
	trainCmd.Flags().Bool("attach-eow", false, "Allow merging a word's last piece with the end-of-word marker")
	trainCmd.Flags().Bool("normalize", false, "Apply Unicode NFC before splitting into characters")
	trainCmd.Flags().StringP("config", "c", "", "YAML training profile")

	encodeCmd := &cobra.Command{
		Use:   "encode [TEXT...]",
		Short: "Split text into tokens",
		Long:  "Split text into tokens. Reads standard input when no text is given.",
		RunE:  EncodeHandler,
	}

	encodeCmd.Flags().StringP("model", "m", envconfig.Model, "Model file")
	encodeCmd.Flags().String("oov", envconfig.OOV, "Policy for characters the model never saw: extend or reject")
	encodeCmd.Flags().Bool("ids", false, "Print token ids instead of pieces")
	encodeCmd.Flags().Bool("normalize", false, "Apply Unicode NFC before encoding (defaults to the setting the model was trained with)")

	decodeCmd := &cobra.Command{
		Use:   "decode ID...",
		Short: "Turn token ids back into text",
		Args:  cobra.MinimumNArgs(1),
		RunE:  DecodeHandler,
	}

	decodeCmd.Flags().StringP("model", "m", envconfig.Model, "Model file")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a model summary and its first merges",
		Args:  cobra.NoArgs,
		RunE:  InspectHandler,
	}

	inspectCmd.Flags().StringP("model", "m", envconfig.Model, "Model file")
	inspectCmd.Flags().IntP("merges", "n", 10, "Number of merges to list")

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "List environment configuration",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}

	rootCmd.AddCommand(
		trainCmd,
		encodeCmd,
		decodeCmd,
		inspectCmd,
		envCmd,
	)

	return rootCmd
}
