package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ChuLiYu/labqueue/internal/codec"
	"github.com/ChuLiYu/labqueue/internal/storage"
	"github.com/spf13/cobra"
)

func (a *app) buildExportCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the book as YAML or JSON",
		Long:  `Write the whole book to FILE ("-" for stdout). The format follows the file extension unless --format is given.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := pickCodec(args[0], format)
			if err != nil {
				return err
			}
			rec := storage.ToPersisted(a.manager().AddressBook())

			if args[0] == "-" {
				return c.Export(rec, cmd.OutOrStdout())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			if err := c.Export(rec, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close export file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d machines, %d persons, %d jobs to %s\n",
				len(rec.Machines), len(rec.Persons), len(rec.Jobs), args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "yaml or json")
	return cmd
}

func (a *app) buildImportCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the book with the content of a YAML or JSON file",
		Long: `Replace the whole book with FILE ("-" for stdin). The file is fully
validated first; on any error the book is left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := pickCodec(args[0], format)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				defer f.Close()
				r = f
			}

			rec, err := c.Parse(r)
			if err != nil {
				return err
			}
			book, err := storage.FromPersisted(rec)
			if err != nil {
				return err
			}
			if err := a.manager().ResetData(book); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d machines, %d persons, %d jobs\n",
				len(book.Machines()), len(book.Persons()), len(book.Jobs()))
			return a.commit(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "yaml or json")
	return cmd
}

func pickCodec(path, format string) (codec.Codec, error) {
	if format != "" {
		return codec.ForFormat(format)
	}
	if path == "-" {
		return codec.ForFormat("yaml")
	}
	return codec.ForPath(path)
}
