package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dgnsrekt/listen/internal/chunker"
	"github.com/dgnsrekt/listen/internal/config"
	"github.com/spf13/cobra"
)

var chunksCmd = &cobra.Command{
	Use:     "chunks [FILE|-]",
	Short:   "Print how text will be split for synthesis",
	Long:    paragraph(fmt.Sprintf("\n%s the chunks a file or stdin is spoken in. The first chunk is kept short so audio starts quickly.", keyword("Print"))),
	Example: paragraph("listen chunks post.md\ncat post.md | listen chunks"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args, os.Stdin)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printChunks(cmd.OutOrStdout(), newChunker(cfg.Chunker), text)
	},
}

func newChunker(cfg config.ChunkerConfig) *chunker.Chunker {
	return chunker.New(chunker.Options{
		MaxChars:      cfg.MaxChars,
		MaxWords:      cfg.MaxWords,
		MinWords:      cfg.MinWords,
		FirstMaxWords: cfg.FirstMaxWords,
	})
}

func printChunks(w io.Writer, c *chunker.Chunker, text string) error {
	chunks := c.Split(text)
	for _, ch := range chunks {
		if _, err := fmt.Fprintf(w, "%s %s\n%s\n\n",
			keyword(fmt.Sprintf("%d/%d", ch.Index+1, len(chunks))),
			fmt.Sprintf("(%d words)", ch.Words),
			ch.Text,
		); err != nil {
			return fmt.Errorf("unable to write chunks: %w", err)
		}
	}
	return nil
}
