package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bpetok/bpetok"
	"github.com/bpetok/internal/envconfig"
	"github.com/bpetok/internal/tokenizer"
)

func InspectHandler(cmd *cobra.Command, args []string) error {
	tok, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}

	n, _ := cmd.Flags().GetInt("merges")
	out := cmd.OutOrStdout()

	prettyPrintSummary(out, tok)
	fmt.Fprint(out, "\n")
	prettyPrintMerges(out, tok, n)
	return nil
}

func prettyPrintSummary(out io.Writer, tok *bpetok.Tokenizer) {
	vocab := tok.Vocabulary()

	chars, wordFinal, longest := 0, 0, ""
	for _, text := range vocab {
		if text == tokenizer.EndOfWord || text == tokenizer.EndOfText {
			continue
		}
		if strings.HasSuffix(text, tokenizer.EndOfWord) {
			wordFinal++
		}
		if len([]rune(text)) == 1 {
			chars++
		}
		if len(text) > len(longest) {
			longest = text
		}
	}

	table := tablewriter.NewWriter(out)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding(" ")
	indent := ""
	normalization := "none"
	if tok.Normalized() {
		normalization = "NFC"
	}

	data := [][]string{
		{indent, "Vocabulary:", strconv.Itoa(len(vocab))},
		{indent, "Merges:", strconv.Itoa(len(tok.Merges()))},
		{indent, "Characters:", strconv.Itoa(chars)},
		{indent, "Word-final tokens:", strconv.Itoa(wordFinal)},
		{indent, "Longest token:", strconv.Quote(longest)},
		{indent, "Normalization:", normalization},
	}
	fmt.Fprint(out, "Model:\n")
	table.AppendBulk(data)
	table.Render()
}

func prettyPrintMerges(out io.Writer, tok *bpetok.Tokenizer, n int) {
	merges := tok.Merges()
	if n >= 0 && n < len(merges) {
		merges = merges[:n]
	}

	var data [][]string
	for rank, mg := range merges {
		data = append(data, []string{strconv.Itoa(rank), mg[0], mg[1], mg[0] + mg[1]})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"RANK", "LEFT", "RIGHT", "MERGED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func EnvHandler(cmd *cobra.Command, args []string) error {
	vars := envconfig.AsMap()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	var data [][]string
	for _, name := range names {
		v := vars[name]
		data = append(data, []string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}
