package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bpetok/bpetok"
	"github.com/bpetok/internal/tokenizer"
)

func loadTokenizer(cmd *cobra.Command) (*bpetok.Tokenizer, error) {
	path, _ := cmd.Flags().GetString("model")
	return bpetok.LoadTokenizerFromFile(path)
}

func EncodeHandler(cmd *cobra.Command, args []string) error {
	tok, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}

	policy, _ := cmd.Flags().GetString("oov")
	oov, err := tokenizer.ParseOOVPolicy(policy)
	if err != nil {
		return err
	}
	tok.EncodeOptions.OOV = oov
	if cmd.Flags().Changed("normalize") {
		normalize, _ := cmd.Flags().GetBool("normalize")
		if normalize != tok.Normalized() {
			slog.Warn("normalization differs from training, encoding may not match the learned merges",
				"trained", tok.Normalized(), "encode", normalize)
		}
		tok.EncodeOptions.Normalize = normalize
	}

	out := cmd.OutOrStdout()
	if ids, _ := cmd.Flags().GetBool("ids"); ids {
		if len(args) > 0 {
			got, err := tok.EncodeIDs(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printIDs(out, got)
		}
		return streamIDs(cmd.InOrStdin(), out, tok.NewEncoder())
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		text = string(data)
	}

	pieces, err := tok.Encode(text)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, strings.Join(pieces, "_"))
	return nil
}

// streamIDs feeds r to enc chunk by chunk and prints ids as words complete.
func streamIDs(r io.Reader, w io.Writer, enc bpetok.Encoder) error {
	buf := make([]byte, 32*1024)
	var ids []int
	for {
		n, err := r.Read(buf)
		if n > 0 {
			got, ferr := enc.Feed(buf[:n])
			if ferr != nil {
				return ferr
			}
			ids = append(ids, got...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	rest, err := enc.Flush()
	if err != nil {
		return err
	}
	return printIDs(w, append(ids, rest...))
}

func printIDs(w io.Writer, ids []int) error {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	_, err := fmt.Fprintln(w, strings.Join(strs, " "))
	return err
}

func DecodeHandler(cmd *cobra.Command, args []string) error {
	tok, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid token id %q", arg)
		}
		ids = append(ids, id)
	}

	text, err := tok.Decode(ids)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
