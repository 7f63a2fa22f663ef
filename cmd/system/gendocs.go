package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func NewGenDocsCommand() *cobra.Command {
	var (
		outDir string
		format string
	)

	cmd := &cobra.Command{
		Use:   "gendocs",
		Short: "Generate reference docs for the estacao CLI",
		Long: `Write one page per estacao command, as Markdown (default) or as man pages.

Markdown goes to ./docs/cli and man pages to ./docs/man unless --outdir is set.`,
		Example: "  estacao system gendocs --format man --outdir /usr/local/share/man/man1",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = defaultDocsDir(format)
			}
			dir, err := filepath.Abs(outDir)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", outDir, err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %q: %w", dir, err)
			}

			root := cmd.Root()
			root.DisableAutoGenTag = true

			switch format {
			case "markdown", "md":
				err = doc.GenMarkdownTree(root, dir)
			case "man":
				err = doc.GenManTree(root, &doc.GenManHeader{
					Title:   "ESTACAO",
					Section: "1",
					Source:  "Estação Terapia",
					Manual:  "estacao manual",
				}, dir)
			default:
				return fmt.Errorf("unknown format %q (want markdown or man)", format)
			}
			if err != nil {
				return fmt.Errorf("generate %s docs: %w", format, err)
			}

			cmd.Printf("%s docs written to %s\n", format, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "outdir", "", "output directory (defaults per format)")
	cmd.Flags().StringVar(&format, "format", "markdown", "markdown or man")

	return cmd
}

func defaultDocsDir(format string) string {
	if format == "man" {
		return "docs/man"
	}
	return "docs/cli"
}
