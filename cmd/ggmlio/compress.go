package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/ggmlio/internal/serialization"
)

func newCompressCmd(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "compress <in> <out>",
		Short: "Re-frame a model file with zstd, lz4 or no compression",
		Long: `The compress command copies the records of a model file into a new file
with the chosen framing. The input may itself be compressed; record bytes are
preserved exactly.

Example:
  ggmlio compress model.bin model.bin.zst --format zstd
  ggmlio compress model.bin.zst model.bin --format none`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd.OutOrStdout(), g, args[0], args[1], format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "zstd", "Output framing: zstd, lz4, none")

	return cmd
}

func runCompress(w io.Writer, g *globalOptions, in, out, format string) error {
	c, err := serialization.ParseCompression(format)
	if err != nil {
		return err
	}
	if filepath.Clean(in) == filepath.Clean(out) {
		return errors.New("input and output must differ")
	}

	f, err := serialization.OpenFile(in)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := f.Stream()
	if err != nil {
		return err
	}
	defer src.Close()

	//nolint:gosec // G304: output path is supplied on the command line
	dst, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "create output")
	}

	n, err := copyFramed(dst, src, c)
	if closeErr := dst.Close(); closeErr != nil && err == nil {
		err = errors.Wrap(closeErr, "close output")
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}

	stat, err := os.Stat(out)
	if err != nil {
		return errors.Wrap(err, "stat output")
	}

	g.log.WithField("records_bytes", n).Debug("model re-framed")
	g.printInfo(w, "%s (%s, %s) -> %s (%s, %s)\n",
		in, src.Compression(), humanize.IBytes(uint64(f.Size())),
		out, c, humanize.IBytes(uint64(stat.Size())))
	return nil
}

func copyFramed(dst io.Writer, src io.Reader, c serialization.Compression) (int64, error) {
	sw, err := serialization.NewStreamWriter(dst, c)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(sw, src)
	if err != nil {
		_ = sw.Close()
		return n, errors.Wrap(err, "copy records")
	}
	return n, sw.Close()
}
